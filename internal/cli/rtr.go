package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	rtrBatchID   string
	rtrHosts     []string
	rtrSessionID string
)

var rtrCmd = &cobra.Command{
	Use:   "rtr",
	Short: "Run Real Time Response commands",
}

var rtrInitCmd = &cobra.Command{
	Use:   "init HOST_ID...",
	Short: "Open a batch session on the given hosts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRTRInit,
}

var rtrRunCmd = &cobra.Command{
	Use:   "run --batch-id ID COMMAND [ARGS...]",
	Short: "Run a command against a batch session",
	Long: `Run a command against a batch session.

put, run and runscript go to the admin endpoint; cp, kill, rm, reg set and
the other write commands go to the active-responder endpoint; everything
else is a read-only command. Multi-word commands such as "reg delete" must
be quoted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRTRRun,
}

var rtrAdminCmd = &cobra.Command{
	Use:   "admin --session-id ID COMMAND [ARGS...]",
	Short: "Run an admin command against a single session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRTRAdmin,
}

func init() {
	rootCmd.AddCommand(rtrCmd)
	rtrCmd.AddCommand(rtrInitCmd, rtrRunCmd, rtrAdminCmd)

	rtrRunCmd.Flags().StringVar(&rtrBatchID, "batch-id", "", "batch session id from rtr init")
	rtrRunCmd.Flags().StringSliceVar(&rtrHosts, "hosts", nil, "limit the command to these host ids")
	_ = rtrRunCmd.MarkFlagRequired("batch-id")

	rtrAdminCmd.Flags().StringVar(&rtrSessionID, "session-id", "", "session id")
	_ = rtrAdminCmd.MarkFlagRequired("session-id")
}

func runRTRInit(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().InitBatchSession(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("initializing batch session: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func runRTRRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().RunCommand(cmd.Context(), rtrBatchID, args[0], strings.Join(args[1:], " "), rtrHosts)
	if err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func runRTRAdmin(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().RunSessionAdminCommand(cmd.Context(), rtrSessionID, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return printJSON(cmd.OutOrStdout(), resp)
}
