package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/Iron-Ham/deskvm/internal/proclock"
	"github.com/Iron-Ham/deskvm/internal/vbox"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show VM state and lock owners",
	Long: `Display the VM state, which processes hold the session and control locks,
and whether the save timeout window is active right now.

A lock whose owner process no longer exists is reported as orphaned. It is
never removed automatically; use "deskvm unlock" once you are sure.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	st := newStatusStyles(out)

	fmt.Fprintln(out, st.title.Render("deskvm "+a.cfg.VirtualBox.VMName))

	state, err := a.machine.State(cmd.Context())
	switch {
	case err != nil:
		row(out, st, "VM", st.error.Render(err.Error()))
	case state == vbox.StateRunning:
		row(out, st, "VM", st.ok.Render(string(state)))
	default:
		row(out, st, "VM", st.muted.Render(string(state)))
	}

	row(out, st, "Session", lockStatus(st, a.session))
	row(out, st, "Control", lockStatus(st, a.control))

	window, err := a.cfg.SaveTimeout.Window()
	if err != nil {
		return err
	}
	now := time.Now()
	if window.Contains(now) {
		deadline := window.Deadline(now, a.cfg.SaveTimeout.IdleTimeout())
		row(out, st, "Window", st.ok.Render("active")+" "+window.String())
		row(out, st, "Save", fmt.Sprintf("at %s if a session closed now", deadline.Format("15:04")))
	} else {
		row(out, st, "Window", st.muted.Render("inactive")+" "+window.String())
		row(out, st, "Save", "immediately when a session closes")
	}
	return nil
}

func row(out io.Writer, st statusStyles, label, value string) {
	fmt.Fprintf(out, "%s %s\n", st.label.Render(label), value)
}

func lockStatus(st statusStyles, lock *proclock.Lock) string {
	state, owner, err := lock.State()
	if err != nil {
		return st.error.Render(err.Error())
	}
	switch state {
	case proclock.Free:
		return st.muted.Render("free")
	case proclock.OwnedBySelf:
		return st.ok.Render(fmt.Sprintf("held by this process (%d)", owner))
	}

	switch proclock.Probe(owner) {
	case proclock.Dead:
		return st.warning.Render(fmt.Sprintf("held by %d (orphaned: process not running)", owner))
	case proclock.Alive:
		return st.ok.Render(fmt.Sprintf("held by %d", owner))
	default:
		return fmt.Sprintf("held by %d", owner)
	}
}
