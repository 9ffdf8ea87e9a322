package commands

import (
	"context"
	"fmt"
	"os"
	"sync"

	"slotwatch/lib/telemetry"
	"slotwatch/services/notify"
	"slotwatch/services/targets"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

// tableSink collects what a cycle would have sent.
type tableSink struct {
	mu   sync.Mutex
	rows []table.Row
}

func (s *tableSink) SendMessage(ctx context.Context, channel string, fields []notify.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fields {
		s.rows = append(s.rows, table.Row{channel, f.Name, f.Value})
	}
	return nil
}

func (s *tableSink) SendError(ctx context.Context, channel string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, table.Row{channel, notify.ErrorName(err), err.Error()})
	return nil
}

var checkCmd = &cobra.Command{
	Use:   "check <monitor>",
	Short: "Runs a single cycle of a monitor and prints the notifications it would send.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		telemetry.InitSlog(debugLogging || config.Debug)

		// check runs whatever is configured, enabled or paused
		monitors := config.Monitors
		monitors.USVisa.Enabled = args[0] == "usvisa"
		monitors.USVisa.Paused = false
		monitors.Cineplex.Enabled = args[0] == "cineplex"
		monitors.Cineplex.Paused = false
		monitors.Icbc.Enabled = args[0] == "icbc"
		monitors.Icbc.Paused = false

		dump, err := config.dumpOutput()
		if err != nil {
			return err
		}
		sink := &tableSink{}
		built, err := targets.BuildAll(monitors, sink, dump)
		if err != nil {
			return err
		}
		if len(built) == 0 {
			return fmt.Errorf("unknown monitor %q, expected usvisa, cineplex or icbc", args[0])
		}
		m := built[0]
		delay := m.RunCycle(cmd.Context())

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Channel", "Field", "Value"})
		t.AppendRows(sink.rows)
		t.AppendFooter(table.Row{"", "Next cycle in", delay.String()})
		t.Render()
		return nil
	},
}
