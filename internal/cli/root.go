package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fgravato/falcon-rtr/internal/api"
	"github.com/fgravato/falcon-rtr/internal/config"
	"github.com/fgravato/falcon-rtr/internal/database"
	"github.com/fgravato/falcon-rtr/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

var (
	configFile string
	localMode  bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "falcon-rtr",
	Short: "CrowdStrike Falcon host inventory and Real Time Response client",
	Long: `falcon-rtr talks to the CrowdStrike Falcon API.

It lists hosts, keeps a local inventory, opens Real Time Response batch
sessions and runs commands on them, reads the put-file and script
libraries, and uploads custom IOCs.

Credentials come from FALCON_CLIENT_ID and FALCON_CLIENT_SECRET, a .env
file, or the file passed with --config.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.SetVersionTemplate("falcon-rtr version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVar(&localMode, "local", false, "use the local inventory only; no credentials needed")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// app bundles what a command needs once config is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// newApp loads configuration and builds the logger. Commands that never call
// the API pass needAPI=false so missing credentials are not an error.
func newApp(needAPI bool) (*app, error) {
	if needAPI && localMode {
		return nil, fmt.Errorf("this command calls the Falcon API and cannot run with --local")
	}

	cfg, err := config.Load(config.LoadOptions{
		File:      configFile,
		LocalMode: !needAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.App.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.App)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) client() *api.Client {
	return api.NewClientWithLogger(a.cfg.API, a.logger)
}

func (a *app) openStore() (*database.Store, error) {
	store, err := database.NewStore(database.Config{Path: a.cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("opening local inventory: %w", err)
	}
	return store, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
