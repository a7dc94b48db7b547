package proclock

import (
	"errors"
	"fmt"
)

// ErrConflict is matched (via errors.Is) by every *ConflictError.
var ErrConflict = errors.New("lock held by another owner")

// ErrInvalidRecord is returned when a lock record exists but does not hold
// exactly one positive decimal identity. Such a record is never repaired
// implicitly; an operator clears it with Clear.
var ErrInvalidRecord = errors.New("invalid lock record")

// ErrInvalidIdentity is returned by New for a non-positive identity.
var ErrInvalidIdentity = errors.New("identity must be positive")

// ConflictError reports that the lock is owned by a different identity.
type ConflictError struct {
	Lock  string   // path of the lock record
	Owner Identity // identity found in the record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lock %s is owned by %d", e.Lock, e.Owner)
}

// Is makes errors.Is(err, ErrConflict) true for any ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
