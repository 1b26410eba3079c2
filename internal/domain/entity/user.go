// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the core identity record of the system. It carries only the
// fields needed for authentication and account display; ledger data
// (accounts, transactions, budgets) hangs off the user id elsewhere.
type User struct {
	ID           uuid.UUID // The unique identifier for the user account.
	Email        string    // Login identifier; unique across all users, compared case-sensitively.
	Name         string    // Display name chosen at signup.
	PasswordHash string    // bcrypt hash of the user's password. Never exposed outside the auth core.
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public returns a copy of the user with credential material stripped,
// safe to hand to delivery layers and serialize into responses.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}

	copied := *u
	copied.PasswordHash = ""

	return &copied
}
