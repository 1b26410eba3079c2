// Package delivery defines the contract shared by every serving surface
// (HTTP API, background workers) so main can start them uniformly.
package delivery

import "context"

// Delivery is a long-running serving loop. Serve blocks until the context is
// cancelled or the underlying listener stops.
type Delivery interface {
	Serve(ctx context.Context) error
}
