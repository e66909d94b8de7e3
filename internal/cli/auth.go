package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Check that the configured API credentials can obtain a token",
	Args:  cobra.NoArgs,
	RunE:  runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	client := a.client()
	if err := client.Authenticate(cmd.Context()); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"authenticated": client.Authenticated(),
		"base_url":      a.cfg.API.BaseURL,
	})
}
