package commands

import (
	"context"
	"fmt"
	"log/slog"

	"slotwatch/lib/serviceutil"
	"slotwatch/lib/telemetry"
	"slotwatch/services/control"
	"slotwatch/services/monitor"
	"slotwatch/services/targets"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs every enabled monitor until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), config)
	},
}

func serve(ctx context.Context, config Config) error {
	telemetry.InitSlog(debugLogging || config.Debug)

	tel, err := telemetry.SetupFromEnv(ctx, "slotwatch")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}()
	telemetry.InstrumentPerfStats(ctx)

	dump, err := config.dumpOutput()
	if err != nil {
		return err
	}
	monitors, err := targets.BuildAll(config.Monitors, config.sink(dump), dump)
	if err != nil {
		return err
	}
	if len(monitors) == 0 {
		return fmt.Errorf("no monitors are enabled")
	}
	supervisor, err := monitor.NewSupervisor(monitors...)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return supervisor.Run(ctx)
	})
	if config.Control.Port != 0 {
		addr := fmt.Sprintf("%s:%d", config.Control.Host, config.Control.Port)
		group.Go(func() error {
			return serviceutil.ServeHttp(ctx, addr, control.NewServer(supervisor).Handler())
		})
	}
	return group.Wait()
}
