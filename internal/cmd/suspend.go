package cmd

import (
	"github.com/spf13/cobra"
)

var suspendCmd = &cobra.Command{
	Use:   "suspend",
	Short: "Save the VM now and cancel any pending wait",
	Long: `Take over the control lock and save the VM immediately.

Any deskvm invocation that is waiting to save the VM notices that it lost
control at its next check and exits without saving.`,
	Args: cobra.NoArgs,
	RunE: runSuspend,
}

func init() {
	rootCmd.AddCommand(suspendCmd)
}

func runSuspend(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	d, err := a.desk(a.cfg.RDP.Params())
	if err != nil {
		return err
	}
	return d.SuspendNow(cmd.Context())
}
