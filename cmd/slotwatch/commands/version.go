package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints build information.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("slotwatch (unknown build)")
			return
		}
		version := info.Main.Version
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				version = fmt.Sprintf("%s (%s)", version, setting.Value)
			}
		}
		fmt.Printf("slotwatch %s %s\n", version, info.GoVersion)
	},
}
