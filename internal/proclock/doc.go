// Package proclock implements named ownership records shared between
// independent deskvm processes.
//
// A record lives at a filesystem path and is either absent (the lock is
// free) or holds exactly one positive decimal identity, the owner. Two
// acquisition styles exist:
//
//   - Acquire/Release respect ownership and fail with a [*ConflictError]
//     when another identity holds the record.
//   - Seize/Clear overwrite or remove the record unconditionally. Seize is
//     how a process takes control away from another one; Clear is the
//     administrative reset.
//
// Records never expire. A record naming a dead process (an orphaned lock)
// stays until someone clears it; [Probe] lets callers report that
// condition.
//
// # Basic Usage
//
//	lock, err := proclock.New("/tmp/deskvm.rdp.lock", proclock.Identity(os.Getpid()))
//	if err != nil {
//	    return err
//	}
//	if err := lock.Acquire(ctx); errors.Is(err, proclock.ErrConflict) {
//	    // someone else holds it
//	}
//	defer lock.Release(ctx)
package proclock
