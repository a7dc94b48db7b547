package cmd

import (
	"github.com/spf13/cobra"
)

var noPrompt bool

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Start the VM, open an RDP session and save the VM when idle",
	Long: `Start the VM if needed, open an RDP session to it and wait for the session
to close. After that the VM is saved once the save timeout elapses, or at
the end of the working hours, whichever comes first. Outside the working
hours the VM is saved as soon as the session closes.

If another deskvm invocation connects while this one is waiting, the wait
is cancelled and the newer invocation takes over the decision to save.

Exit codes:
  0    success, or the wait was cancelled by another invocation
  1    unexpected error
  2    the VM was not in the expected state
  3    an RDP session is already open
  4    the wait was cancelled (only with --strict-exit)
  130  interrupted`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noPrompt, "no-prompt", false, "never prompt for the RDP password")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	params, err := a.sessionParams(cmd.ErrOrStderr(), !noPrompt)
	if err != nil {
		return err
	}
	d, err := a.desk(params)
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}
