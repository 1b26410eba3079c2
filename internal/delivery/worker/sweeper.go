// Package worker contains background deliveries that run next to the HTTP
// server.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"tally/internal/delivery"
	"tally/internal/usecase"
	"tally/internal/util"

	"go.uber.org/fx"
)

// SweeperParams holds dependencies for the session sweeper.
type SweeperParams struct {
	fx.In

	Lc             fx.Lifecycle
	Logger         *slog.Logger
	SessionUsecase usecase.SessionUsecase
}

// sessionSweeper removes expired sessions once a day at midnight. A sweep
// that is still running when the next tick fires is not stacked, the tick
// is skipped instead.
type sessionSweeper struct {
	logger         *slog.Logger
	sessionUsecase usecase.SessionUsecase

	running atomic.Bool
	now     func() time.Time
	stopped chan struct{}
}

// NewSweeper creates the session sweeper delivery.
func NewSweeper(params SweeperParams) (delivery.Delivery, error) {
	sweeper := &sessionSweeper{
		logger:         params.Logger,
		sessionUsecase: params.SessionUsecase,
		now:            time.Now,
		stopped:        make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: sweeper.stop,
	})

	return sweeper, nil
}

// Serve blocks until the context is cancelled or the sweeper is stopped,
// firing a sweep at every local midnight.
func (s *sessionSweeper) Serve(ctx context.Context) error {
	s.logger.Info("Starting session sweeper")

	for {
		timer := time.NewTimer(s.untilNextMidnight())

		select {
		case <-timer.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.stopped:
			timer.Stop()
			return nil
		}
	}
}

// RunOnce performs a single sweep. If a previous sweep is still in flight
// the call is a no-op.
func (s *sessionSweeper) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Session sweep still running, skipping this run")
		return
	}
	defer s.running.Store(false)

	start := s.now()
	removed, err := s.sessionUsecase.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("Session sweep failed", slog.Any("error", err))
		return
	}

	s.logger.Info("Session sweep finished",
		slog.Int64("removed", removed),
		slog.String("elapsed", util.FormatDuration(s.now().Sub(start))))
}

// untilNextMidnight returns the wait until the next local midnight. The
// timer is re-armed after every sweep so drift does not accumulate.
func (s *sessionSweeper) untilNextMidnight() time.Duration {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	return next.Sub(now)
}

func (s *sessionSweeper) stop(ctx context.Context) error {
	s.logger.Info("Shutting down session sweeper")
	close(s.stopped)

	return nil
}
