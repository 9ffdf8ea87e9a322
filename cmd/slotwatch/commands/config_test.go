package commands

import (
	"os"
	"path/filepath"
	"testing"

	"slotwatch/services/notify"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slotwatch.json5")
	err := os.WriteFile(path, []byte(`{
		hostname: "watcher",
		control: { port: 8230 },
		monitors: {
			icbc: { enabled: true, branch_id: "274", service_id: "da8488da", dates: ["2024-03-09"] },
		},
	}`), 0600)
	require.NoError(t, err)

	configPath = path
	t.Cleanup(func() { configPath = "" })

	config, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, "watcher", config.Hostname)
	require.Equal(t, "127.0.0.1", config.Control.Host)
	require.Equal(t, 8230, config.Control.Port)
	require.True(t, config.Monitors.Icbc.Enabled)
	require.Equal(t, []string{"2024-03-09"}, config.Monitors.Icbc.Dates)
}

func TestSinkFallsBackToLog(t *testing.T) {
	sink := Config{}.sink(nil)
	require.IsType(t, notify.LogSink{}, sink)
}

func TestSinkCombinesBackends(t *testing.T) {
	config := Config{
		Hostname: "watcher",
		Notify: NotifyConfig{
			Log: true,
			Webhook: WebhookConfig{
				Urls: map[string]string{"status": "https://example.com/hook"},
			},
			Email: EmailConfig{
				Server:     "smtp.example.com",
				Port:       587,
				Recipients: []string{"someone@example.com"},
			},
		},
	}
	sink, ok := config.sink(nil).(notify.Multi)
	require.True(t, ok)
	require.Len(t, sink, 3)
}
