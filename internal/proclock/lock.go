package proclock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/deskvm/internal/logging"
)

// guardSuffix names the sidecar file whose flock serializes mutations.
const guardSuffix = ".guard"

// DefaultRetryDelay is how often a blocked mutation retries the guard.
const DefaultRetryDelay = 20 * time.Millisecond

// Identity identifies a lock owner. deskvm uses the process id; tests
// inject synthetic values.
type Identity int64

// State is the ownership state of a lock as seen by its holder.
type State int

const (
	// Free means no record exists.
	Free State = iota
	// OwnedBySelf means the record holds the caller's identity.
	OwnedBySelf
	// OwnedByOther means the record holds a different identity.
	OwnedByOther
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case OwnedBySelf:
		return "owned_by_self"
	case OwnedByOther:
		return "owned_by_other"
	default:
		return "unknown"
	}
}

// Option configures a Lock.
type Option func(*Lock)

// WithLogger attaches a logger. The lock logs every ownership change.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Lock) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRetryDelay sets how often a blocked mutation polls the guard.
func WithRetryDelay(d time.Duration) Option {
	return func(l *Lock) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// Lock is a named ownership record persisted at a filesystem path.
//
// Mutations (Acquire, Seize, Release, Clear) take an exclusive flock on
// <path>.guard for the whole read-decide-write, so two processes racing to
// Acquire a free lock cannot both succeed. The record itself is replaced by
// rename, so the lock-free observations (IsFree, IsOwnedBySelf, Owner)
// never see a partially written identity.
//
// A Lock value serializes its own calls; distinct Lock values over the same
// path coordinate through the guard exactly like distinct processes.
type Lock struct {
	mu         sync.Mutex
	path       string
	self       Identity
	guard      *flock.Flock
	retryDelay time.Duration
	logger     *logging.Logger
}

// New returns a Lock for the record at path held on behalf of self. The
// parent directory is created if needed; the record itself is not touched.
func New(path string, self Identity, opts ...Option) (*Lock, error) {
	if self <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIdentity, self)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lock path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	l := &Lock{
		path:       abs,
		self:       self,
		guard:      flock.New(abs + guardSuffix),
		retryDelay: DefaultRetryDelay,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("lock", filepath.Base(abs), "self", int64(self))
	return l, nil
}

// Path returns the absolute path of the lock record.
func (l *Lock) Path() string { return l.path }

// Self returns the identity this Lock acts for.
func (l *Lock) Self() Identity { return l.self }

// Acquire makes the caller the owner. It succeeds when the lock is free or
// already owned by the caller (leaving the record unchanged), and returns a
// *ConflictError naming the owner otherwise.
func (l *Lock) Acquire(ctx context.Context) error {
	return l.mutate(ctx, func() error {
		owner, held, err := readRecord(l.path)
		if err != nil {
			return err
		}
		if held && owner == l.self {
			l.logger.Debug("lock already owned")
			return nil
		}
		if held {
			l.logger.Debug("lock contended", "owner", int64(owner))
			return &ConflictError{Lock: l.path, Owner: owner}
		}
		if err := writeRecord(l.path, l.self); err != nil {
			return err
		}
		l.logger.Debug("lock acquired")
		return nil
	})
}

// Seize makes the caller the owner regardless of the current record,
// including a corrupt one. Only I/O failures are reported.
func (l *Lock) Seize(ctx context.Context) error {
	return l.mutate(ctx, func() error {
		// The previous owner is read for diagnostics only.
		if prev, held, err := readRecord(l.path); err == nil && held && prev != l.self {
			l.logger.Info("taking over lock", "previous_owner", int64(prev))
		}
		if err := writeRecord(l.path, l.self); err != nil {
			return err
		}
		l.logger.Debug("lock seized")
		return nil
	})
}

// Release frees a lock owned by the caller. Releasing a free lock is a
// no-op; releasing a lock owned by someone else returns a *ConflictError
// and leaves the record untouched.
func (l *Lock) Release(ctx context.Context) error {
	return l.mutate(ctx, func() error {
		owner, held, err := readRecord(l.path)
		if err != nil {
			return err
		}
		if !held {
			return nil
		}
		if owner != l.self {
			return &ConflictError{Lock: l.path, Owner: owner}
		}
		if err := removeRecord(l.path); err != nil {
			return err
		}
		l.logger.Debug("lock released")
		return nil
	})
}

// Clear removes the record whoever owns it. This is the administrative
// reset for orphaned or corrupt records.
func (l *Lock) Clear(ctx context.Context) error {
	return l.mutate(ctx, func() error {
		if err := removeRecord(l.path); err != nil {
			return err
		}
		l.logger.Info("lock cleared")
		return nil
	})
}

// IsFree reports whether no record exists.
func (l *Lock) IsFree() (bool, error) {
	_, held, err := readRecord(l.path)
	if err != nil {
		return false, err
	}
	return !held, nil
}

// IsOwnedBySelf reports whether the record holds the caller's identity.
func (l *Lock) IsOwnedBySelf() (bool, error) {
	owner, held, err := readRecord(l.path)
	if err != nil {
		return false, err
	}
	return held && owner == l.self, nil
}

// Owner returns the identity in the record; ok is false when the lock is free.
func (l *Lock) Owner() (owner Identity, ok bool, err error) {
	return readRecord(l.path)
}

// State classifies the record relative to the caller. The owner is zero
// for Free.
func (l *Lock) State() (State, Identity, error) {
	owner, held, err := readRecord(l.path)
	switch {
	case err != nil:
		return Free, 0, err
	case !held:
		return Free, 0, nil
	case owner == l.self:
		return OwnedBySelf, owner, nil
	default:
		return OwnedByOther, owner, nil
	}
}

// mutate runs fn while holding the cross-process guard.
func (l *Lock) mutate(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked, err := l.guard.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock guard %s: %w", l.guard.Path(), err)
	}
	if !locked {
		return fmt.Errorf("failed to lock guard %s", l.guard.Path())
	}
	defer func() {
		if err := l.guard.Unlock(); err != nil {
			l.logger.Warn("failed to unlock guard", "error", err)
		}
	}()

	return fn()
}
