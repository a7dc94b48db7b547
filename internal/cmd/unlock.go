package cmd

import (
	"fmt"

	"github.com/Iron-Ham/deskvm/internal/proclock"
	"github.com/spf13/cobra"
)

var unlockForce bool

var unlockCmd = &cobra.Command{
	Use:   "unlock [session|control|all]",
	Short: "Remove lock files left behind by crashed invocations",
	Long: `Remove the session lock, the control lock, or both (the default).

Locks are never expired automatically. If a deskvm process was killed, its
lock stays behind and blocks new sessions; "deskvm status" reports such
locks as orphaned. unlock refuses to remove a lock whose owner is still
running unless --force is given.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"session", "control", "all"},
	RunE:      runUnlock,
}

func init() {
	unlockCmd.Flags().BoolVarP(&unlockForce, "force", "f", false, "remove locks even if their owner is still running")
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	which := "all"
	if len(args) == 1 {
		which = args[0]
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var locks []namedLock
	switch which {
	case "session":
		locks = []namedLock{{"session", a.session}}
	case "control":
		locks = []namedLock{{"control", a.control}}
	case "all":
		locks = []namedLock{{"session", a.session}, {"control", a.control}}
	default:
		return fmt.Errorf("unknown lock %q: expected session, control or all", which)
	}

	out := cmd.OutOrStdout()
	for _, l := range locks {
		owner, held, err := l.lock.Owner()
		if err != nil && !unlockForce {
			return fmt.Errorf("%s lock: %w (use --force to remove it anyway)", l.name, err)
		}
		if err == nil && !held {
			fmt.Fprintf(out, "%s lock is already free\n", l.name)
			continue
		}
		if held && !unlockForce && proclock.Probe(owner) == proclock.Alive {
			return fmt.Errorf("%s lock is held by running process %d (use --force to remove it anyway)", l.name, owner)
		}

		if err := l.lock.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear %s lock: %w", l.name, err)
		}
		a.logger.Info("lock cleared", "lock", l.name, "owner", int64(owner))
		fmt.Fprintf(out, "Removed %s lock (%s)\n", l.name, l.lock.Path())
	}
	return nil
}

type namedLock struct {
	name string
	lock *proclock.Lock
}
