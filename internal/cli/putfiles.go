package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var putFilesCmd = &cobra.Command{
	Use:     "putfiles",
	Aliases: []string{"put-files"},
	Short:   "Browse the RTR put-file library",
}

var putFilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List put-file ids",
	Args:  cobra.NoArgs,
	RunE:  runPutFilesList,
}

var putFilesGetCmd = &cobra.Command{
	Use:   "get ID...",
	Short: "Show put-file metadata",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPutFilesGet,
}

func init() {
	rootCmd.AddCommand(putFilesCmd)
	putFilesCmd.AddCommand(putFilesListCmd, putFilesGetCmd)
}

func runPutFilesList(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().ListPutFiles(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing put-files: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), resp.Resources)
}

func runPutFilesGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().GetPutFiles(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("getting put-files: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), resp.Resources)
}
