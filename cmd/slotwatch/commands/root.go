package commands

import (
	"context"
	"errors"

	"slotwatch/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	debugLogging bool
)

var rootCmd = &cobra.Command{
	Use:           "slotwatch",
	Short:         "slotwatch polls booking sites for open appointment slots and reports changes.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file, defaults to the nearest slotwatch.json5")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
}

func Execute() {
	err := rootCmd.ExecuteContext(serviceutil.SignalContext())
	if err != nil && !errors.Is(err, context.Canceled) {
		serviceutil.Fatal("slotwatch failed", err)
	}
}
