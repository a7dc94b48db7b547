package desk

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/deskvm/internal/proclock"
	"github.com/Iron-Ham/deskvm/internal/rdp"
	"github.com/Iron-Ham/deskvm/internal/schedule"
	"github.com/Iron-Ham/deskvm/internal/vbox"
)

// journal records the order in which collaborators are called.
type journal struct{ events []string }

func (j *journal) add(e string) { j.events = append(j.events, e) }

type fakeMachine struct {
	j          *journal
	startErr   error
	suspendErr error
}

func (m *fakeMachine) Start(context.Context) error {
	m.j.add("start")
	return m.startErr
}

func (m *fakeMachine) Suspend(context.Context) error {
	m.j.add("suspend")
	return m.suspendErr
}

type fakeLauncher struct {
	j      *journal
	err    error
	params rdp.Params
	during func()
}

func (l *fakeLauncher) Connect(_ context.Context, p rdp.Params) error {
	l.j.add("connect")
	l.params = p
	if l.during != nil {
		l.during()
	}
	return l.err
}

type fakeLock struct {
	j          *journal
	name       string
	acquireErr error
	releaseErr error
	seizeErr   error
	owned      bool
	releaseCtx context.Context
}

func (l *fakeLock) Acquire(context.Context) error {
	l.j.add(l.name + ".acquire")
	return l.acquireErr
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.j.add(l.name + ".release")
	l.releaseCtx = ctx
	return l.releaseErr
}

func (l *fakeLock) Seize(context.Context) error {
	l.j.add(l.name + ".seize")
	if l.seizeErr == nil {
		l.owned = true
	}
	return l.seizeErr
}

func (l *fakeLock) IsOwnedBySelf() (bool, error) { return l.owned, nil }

type fakeWaiter struct {
	j   *journal
	err error
}

func (w *fakeWaiter) Wait(_ context.Context, lock schedule.OwnershipChecker) error {
	w.j.add("wait")
	if w.err != nil {
		return w.err
	}
	if owned, _ := lock.IsOwnedBySelf(); !owned {
		return schedule.ErrCancelled
	}
	return nil
}

type fixture struct {
	j        *journal
	machine  *fakeMachine
	launcher *fakeLauncher
	session  *fakeLock
	control  *fakeLock
	waiter   *fakeWaiter
}

func newFixture() *fixture {
	j := &journal{}
	return &fixture{
		j:        j,
		machine:  &fakeMachine{j: j},
		launcher: &fakeLauncher{j: j},
		session:  &fakeLock{j: j, name: "session"},
		control:  &fakeLock{j: j, name: "control"},
		waiter:   &fakeWaiter{j: j},
	}
}

func (f *fixture) desk(t *testing.T) *Desk {
	t.Helper()
	d, err := New(Config{
		Machine:     f.machine,
		Launcher:    f.launcher,
		Params:      rdp.Params{Host: "vm.local", Username: "me"},
		SessionLock: f.session,
		ControlLock: f.control,
		Waiter:      f.waiter,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func (f *fixture) expect(t *testing.T, want ...string) {
	t.Helper()
	if !slices.Equal(f.j.events, want) {
		t.Errorf("events = %v\nwant     %v", f.j.events, want)
	}
}

func TestRun_FullSequence(t *testing.T) {
	f := newFixture()
	if err := f.desk(t).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	f.expect(t, "start", "session.acquire", "control.seize", "connect", "session.release", "wait", "suspend")
	if f.launcher.params.Host != "vm.local" {
		t.Errorf("launcher params = %+v", f.launcher.params)
	}
}

func TestRun_StartStateMismatch(t *testing.T) {
	f := newFixture()
	f.machine.startErr = &vbox.StateError{VM: "office", Op: "start", Want: vbox.StateRunning, Got: vbox.StatePoweredOff}

	err := f.desk(t).Run(context.Background())
	if code := ExitCode(err, false); code != ExitStateMismatch {
		t.Errorf("ExitCode = %d, want %d (err %v)", code, ExitStateMismatch, err)
	}
	f.expect(t, "start")
}

func TestRun_SessionBusy(t *testing.T) {
	f := newFixture()
	f.session.acquireErr = &proclock.ConflictError{Lock: "rdp", Owner: 4242}

	err := f.desk(t).Run(context.Background())
	if !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("Run error = %v, want ErrSessionBusy", err)
	}
	var conflict *proclock.ConflictError
	if !errors.As(err, &conflict) || conflict.Owner != 4242 {
		t.Errorf("conflict owner not preserved: %v", err)
	}
	if code := ExitCode(err, false); code != ExitSessionBusy {
		t.Errorf("ExitCode = %d, want %d", code, ExitSessionBusy)
	}
	f.expect(t, "start", "session.acquire")
}

func TestRun_ClientErrorIsNotFatal(t *testing.T) {
	f := newFixture()
	f.launcher.err = errors.New("exit status 131")

	if err := f.desk(t).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	f.expect(t, "start", "session.acquire", "control.seize", "connect", "session.release", "wait", "suspend")
}

func TestRun_ReleaseFailureIsUnexpected(t *testing.T) {
	f := newFixture()
	f.session.releaseErr = &proclock.ConflictError{Lock: "rdp", Owner: 7}

	err := f.desk(t).Run(context.Background())
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("Run error = %v, want ErrUnexpected", err)
	}
	if errors.Is(err, ErrSessionBusy) {
		t.Error("release conflict must not be reported as a busy session")
	}
	if code := ExitCode(err, false); code != ExitInternal {
		t.Errorf("ExitCode = %d, want %d", code, ExitInternal)
	}
	f.expect(t, "start", "session.acquire", "control.seize", "connect", "session.release")
}

func TestRun_ControlTakenOverDuringWait(t *testing.T) {
	f := newFixture()
	// Another invocation seizes control while this session is open.
	f.launcher.during = func() { f.control.owned = false }

	err := f.desk(t).Run(context.Background())
	if !errors.Is(err, schedule.ErrCancelled) {
		t.Fatalf("Run error = %v, want ErrCancelled", err)
	}
	if code := ExitCode(err, false); code != ExitOK {
		t.Errorf("ExitCode = %d, want %d", code, ExitOK)
	}
	if code := ExitCode(err, true); code != ExitCancelled {
		t.Errorf("strict ExitCode = %d, want %d", code, ExitCancelled)
	}
	f.expect(t, "start", "session.acquire", "control.seize", "connect", "session.release", "wait")
}

func TestRun_SuspendStateMismatch(t *testing.T) {
	f := newFixture()
	f.machine.suspendErr = &vbox.StateError{VM: "office", Op: "suspend", Want: vbox.StateRunning, Got: vbox.StateSaved}

	err := f.desk(t).Run(context.Background())
	if code := ExitCode(err, false); code != ExitStateMismatch {
		t.Errorf("ExitCode = %d, want %d", code, ExitStateMismatch)
	}
}

func TestRun_InterruptedDuringSession(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.launcher.during = cancel
	f.launcher.err = context.Canceled

	err := f.desk(t).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if code := ExitCode(err, false); code != ExitInterrupted {
		t.Errorf("ExitCode = %d, want %d", code, ExitInterrupted)
	}
	f.expect(t, "start", "session.acquire", "control.seize", "connect", "session.release")
	if f.session.releaseCtx.Err() != nil {
		t.Error("session lock must be released with a live context")
	}
}

func TestRun_InterruptedDuringStart(t *testing.T) {
	f := newFixture()
	f.machine.startErr = errors.New("VBoxManage startvm: signal: killed")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.desk(t).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if code := ExitCode(err, false); code != ExitInterrupted {
		t.Errorf("ExitCode = %d, want %d", code, ExitInterrupted)
	}
	if !errors.Is(err, f.machine.startErr) {
		t.Errorf("Run error = %v, should keep the start failure", err)
	}
	f.expect(t, "start")
}

func TestSuspendNow_Interrupted(t *testing.T) {
	f := newFixture()
	f.machine.suspendErr = errors.New("VBoxManage controlvm: signal: killed")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.desk(t).SuspendNow(ctx)
	if code := ExitCode(err, false); code != ExitInterrupted {
		t.Errorf("ExitCode = %d, want %d (err %v)", code, ExitInterrupted, err)
	}
	f.expect(t, "control.seize", "suspend")
}

func TestRun_SeizeFailureReleasesSession(t *testing.T) {
	f := newFixture()
	f.control.seizeErr = errors.New("disk full")

	if err := f.desk(t).Run(context.Background()); err == nil {
		t.Fatal("Run should fail when control cannot be seized")
	}
	f.expect(t, "start", "session.acquire", "control.seize", "session.release")
}

func TestSuspendNow(t *testing.T) {
	f := newFixture()
	if err := f.desk(t).SuspendNow(context.Background()); err != nil {
		t.Fatalf("SuspendNow failed: %v", err)
	}
	f.expect(t, "control.seize", "suspend")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New with no collaborators should fail")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"internal", errors.New("boom"), ExitInternal},
		{"corrupt record", proclock.ErrInvalidRecord, ExitInternal},
		{"interrupted", context.Canceled, ExitInterrupted},
		{"busy", ErrSessionBusy, ExitSessionBusy},
		{"state", &vbox.StateError{}, ExitStateMismatch},
		{"cancelled", schedule.ErrCancelled, ExitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err, false); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// Two invocations against real lock files: the second one finds the
// session busy, then hands off control and the first one stops waiting.
func TestRun_TwoInvocationsShareLocks(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	newLocks := func(id proclock.Identity) (*proclock.Lock, *proclock.Lock) {
		t.Helper()
		s, err := proclock.New(filepath.Join(dir, "deskvm.rdp.lock"), id)
		if err != nil {
			t.Fatal(err)
		}
		c, err := proclock.New(filepath.Join(dir, "deskvm.con.lock"), id)
		if err != nil {
			t.Fatal(err)
		}
		return s, c
	}
	firstSession, firstControl := newLocks(100)
	secondSession, secondControl := newLocks(200)

	j := &journal{}
	var busyErr error
	second := func() {
		d, err := New(Config{
			Machine:     &fakeMachine{j: j},
			Launcher:    &fakeLauncher{j: j},
			Params:      rdp.Params{Host: "vm.local"},
			SessionLock: secondSession,
			ControlLock: secondControl,
			Waiter:      &fakeWaiter{j: j},
		})
		if err != nil {
			t.Fatal(err)
		}
		busyErr = d.Run(ctx)
		// The user reconnects once the first session closed: modelled by
		// seizing control as the second Run would after acquiring.
		if err := secondControl.Seize(ctx); err != nil {
			t.Fatal(err)
		}
	}

	d, err := New(Config{
		Machine:     &fakeMachine{j: j},
		Launcher:    &fakeLauncher{j: j, during: second},
		Params:      rdp.Params{Host: "vm.local"},
		SessionLock: firstSession,
		ControlLock: firstControl,
		Waiter: schedule.NewWaiter(schedule.Config{
			Window: schedule.Window{
				Days:  []int{1, 2, 3, 4, 5, 6, 7},
				Start: schedule.TimeOfDay{Hour: 0},
				End:   schedule.TimeOfDay{Hour: 23, Minute: 59},
			},
			IdleTimeout:  time.Hour,
			PollInterval: time.Millisecond,
		}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	err = d.Run(ctx)
	if !errors.Is(busyErr, ErrSessionBusy) {
		t.Errorf("second Run error = %v, want ErrSessionBusy", busyErr)
	}
	// The window may have closed between 23:59 and midnight; either way the
	// first invocation must not fail.
	if err != nil && !errors.Is(err, schedule.ErrCancelled) {
		t.Fatalf("first Run error = %v, want ErrCancelled", err)
	}
	if free, _ := firstSession.IsFree(); !free {
		t.Error("session lock should be free after the first session closed")
	}
}
