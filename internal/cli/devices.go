package cli

import (
	"fmt"

	"github.com/fgravato/falcon-rtr/internal/analyzer"
	"github.com/fgravato/falcon-rtr/internal/device"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	devicesScroll   bool
	devicesPlatform string
	devicesStatus   string
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Query hosts and manage the local inventory",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List host ids seen in the last 24 hours",
	Long: `List host ids seen in the last 24 hours.

With --scroll, list every host id through the scroll endpoint instead.`,
	Args: cobra.NoArgs,
	RunE: runDevicesList,
}

var devicesGetCmd = &cobra.Command{
	Use:   "get HOST_ID...",
	Short: "Show host details",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDevicesGet,
}

var devicesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch hosts from Falcon into the local inventory",
	Args:  cobra.NoArgs,
	RunE:  runDevicesSync,
}

var devicesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the local inventory",
	Args:  cobra.NoArgs,
	RunE:  runDevicesStats,
}

var devicesAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report last-seen risk and sensor/OS versions from the local inventory",
	Args:  cobra.NoArgs,
	RunE:  runDevicesAnalyze,
}

var devicesLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "List hosts from the local inventory",
	Long: `List hosts from the local inventory.

--platform and --status filter on platform_name and status; both match
exactly, including case.`,
	Args: cobra.NoArgs,
	RunE: runDevicesLocal,
}

var devicesShowCmd = &cobra.Command{
	Use:   "show HOST_ID",
	Short: "Show one host from the local inventory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesShow,
}

var devicesDeleteCmd = &cobra.Command{
	Use:   "delete HOST_ID",
	Short: "Remove a host from the local inventory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesDelete,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.AddCommand(devicesListCmd, devicesGetCmd, devicesSyncCmd, devicesStatsCmd, devicesAnalyzeCmd,
		devicesLocalCmd, devicesShowCmd, devicesDeleteCmd)

	devicesListCmd.Flags().BoolVar(&devicesScroll, "scroll", false, "list all hosts through the scroll endpoint")
	devicesSyncCmd.Flags().BoolVar(&devicesScroll, "scroll", false, "sync all hosts instead of those seen in the last 24 hours")
	devicesLocalCmd.Flags().StringVar(&devicesPlatform, "platform", "", "only hosts with this platform_name, e.g. Windows")
	devicesLocalCmd.Flags().StringVar(&devicesStatus, "status", "", "only hosts with this status, e.g. contained")
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	client := a.client()
	list := client.ListDevices
	if devicesScroll {
		list = client.ListDevicesScroll
	}

	ids, err := list(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), ids)
}

func runDevicesGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	devices, err := a.client().GetDevices(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("getting devices: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), devices)
}

func runDevicesSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	svc := device.NewService(device.NewRepository(store), a.client(), device.Options{
		Workers:   a.cfg.App.WorkerCount,
		BatchSize: a.cfg.App.BatchSize,
		Logger:    a.logger,
	})

	run, err := svc.Sync(cmd.Context(), devicesScroll)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), run)
}

func localService(a *app) (*device.DeviceService, func(), error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	svc := device.NewService(device.NewRepository(store), nil, device.Options{Logger: a.logger})
	return svc, func() { store.Close() }, nil
}

func runDevicesStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	svc, closeStore, err := localService(a)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := svc.GetDeviceStatistics(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stats)
}

func runDevicesAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	svc, closeStore, err := localService(a)
	if err != nil {
		return err
	}
	defer closeStore()

	analysis, err := analyzer.NewAnalyzer(svc).AnalyzeDevices(cmd.Context())
	if err != nil {
		return fmt.Errorf("analyzing devices: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), analysis)
}

func runDevicesLocal(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	svc, closeStore, err := localService(a)
	if err != nil {
		return err
	}
	defer closeStore()

	devices, err := svc.FindDevices(cmd.Context(), devicesPlatform, devicesStatus)
	if err != nil {
		return err
	}
	if devices == nil {
		devices = []device.Device{}
	}
	return printJSON(cmd.OutOrStdout(), devices)
}

func runDevicesShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	svc, closeStore, err := localService(a)
	if err != nil {
		return err
	}
	defer closeStore()

	d, err := svc.GetDevice(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), d)
}

func runDevicesDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	svc, closeStore, err := localService(a)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := svc.DeleteDevice(cmd.Context(), args[0]); err != nil {
		return err
	}
	a.logger.Info("Deleted device from local inventory", zap.String("device_id", args[0]))
	return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
}
