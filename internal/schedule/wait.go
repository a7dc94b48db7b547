package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is how often the waiter re-checks control ownership.
const DefaultPollInterval = 60 * time.Second

// heartbeatEvery controls the "minutes left" debug record.
const heartbeatEvery = 5

// ErrCancelled is returned by Wait when the control lock stopped being
// owned by the waiter. It is a hand-off signal, not a failure: another
// process now drives the resource.
var ErrCancelled = errors.New("wait cancelled: control passed to another process")

// OwnershipChecker is the part of a lock the waiter needs.
type OwnershipChecker interface {
	IsOwnedBySelf() (bool, error)
}

// Config holds the waiter's inputs.
type Config struct {
	Window       Window
	IdleTimeout  time.Duration
	PollInterval time.Duration   // defaults to DefaultPollInterval
	Clock        clockwork.Clock // defaults to the wall clock
}

// Waiter blocks until a deferred deadline passes, giving up early when the
// control lock changes hands.
type Waiter struct {
	window Window
	idle   time.Duration
	poll   time.Duration
	clock  clockwork.Clock
	logger *logging.Logger
}

// NewWaiter creates a Waiter. A nil logger discards output.
func NewWaiter(cfg Config, logger *logging.Logger) *Waiter {
	w := &Waiter{
		window: cfg.Window,
		idle:   cfg.IdleTimeout,
		poll:   cfg.PollInterval,
		clock:  cfg.Clock,
		logger: logger,
	}
	if w.poll <= 0 {
		w.poll = DefaultPollInterval
	}
	if w.clock == nil {
		w.clock = clockwork.NewRealClock()
	}
	if w.logger == nil {
		w.logger = logging.NopLogger()
	}
	return w
}

// Deadline returns the deadline a wait starting now would use.
func (w *Waiter) Deadline(now time.Time) time.Time {
	return w.window.Deadline(now, w.idle)
}

// Wait blocks until the deadline computed from the current time.
//
// Ownership of lock is checked before every sleep; once it is no longer
// owned by the caller Wait returns ErrCancelled. Context cancellation is
// observed at the same boundaries and returns ctx.Err(). A nil return means
// the deadline passed and the caller should carry out the deferred action.
// Errors reading the lock (for example a corrupt record) are returned as is.
func (w *Waiter) Wait(ctx context.Context, lock OwnershipChecker) error {
	now := w.clock.Now()
	deadline := w.Deadline(now)

	if deadline.After(now) {
		w.logger.Info("waiting before suspend", "until", deadline.Format("15:04:05"), "window", w.window.String())
	} else {
		w.logger.Debug("outside active window, no wait")
	}

	for now.Before(deadline) {
		owned, err := lock.IsOwnedBySelf()
		if err != nil {
			return fmt.Errorf("failed to check control lock: %w", err)
		}
		if !owned {
			w.logger.Info("waiting cancelled")
			return ErrCancelled
		}

		timer := w.clock.NewTimer(w.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}

		now = w.clock.Now()
		if left := int(deadline.Sub(now) / time.Minute); left > 0 && left%heartbeatEvery == 0 {
			w.logger.Debug("waiting", "minutes_left", left)
		}
	}
	return nil
}
