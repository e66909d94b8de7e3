package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Browse the RTR custom script library",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List script ids",
	Args:  cobra.NoArgs,
	RunE:  runScriptsList,
}

var scriptsGetCmd = &cobra.Command{
	Use:   "get ID...",
	Short: "Show scripts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScriptsGet,
}

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.AddCommand(scriptsListCmd, scriptsGetCmd)
}

func runScriptsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().ListScripts(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing scripts: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), resp.Resources)
}

func runScriptsGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.client().GetScripts(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("getting scripts: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), resp.Resources)
}
