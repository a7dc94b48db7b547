// Package schedule decides how long to keep the virtual machine running
// after a remote session ends, and waits for that long.
//
// A [Window] describes the recurring business hours (weekdays numbered
// 1 = Monday through 7 = Sunday, plus an inclusive HH:MM range). Inside the
// window the suspend is deferred by the idle timeout, capped at the
// window's end; outside it the suspend happens immediately.
//
// [Waiter.Wait] polls at a fixed interval and gives up with [ErrCancelled]
// as soon as the control lock is no longer owned by the waiting process.
package schedule
