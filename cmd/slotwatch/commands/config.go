package commands

import (
	"fmt"
	"os"
	"time"

	"slotwatch/lib/configutil"
	"slotwatch/lib/restyutil"
	"slotwatch/services/notify"
	"slotwatch/services/targets"
)

const defaultConfigName = "slotwatch.json5"

type WebhookConfig struct {
	// channel name -> webhook url
	Urls     map[string]string `json:"urls"`
	Username string            `json:"username"`
}

type EmailConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
	Channels     []string `json:"channels"`
	// defaults to 30
	TimeoutSeconds int `json:"timeout_seconds"`
}

type NotifyConfig struct {
	Log     bool          `json:"log"`
	Webhook WebhookConfig `json:"webhook"`
	Email   EmailConfig   `json:"email"`
}

type ControlConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type Config struct {
	Hostname string         `json:"hostname"`
	Debug    bool           `json:"debug"`
	DumpDir  string         `json:"dump_dir"`
	Control  ControlConfig  `json:"control"`
	Notify   NotifyConfig   `json:"notify"`
	Monitors targets.Config `json:"monitors"`
}

func loadConfig() (Config, error) {
	config, err := configutil.Load[Config](configPath, defaultConfigName)
	if configPath == "" && os.IsNotExist(err) {
		return Config{}, fmt.Errorf("no %s found, pass one with --config", defaultConfigName)
	}
	if err != nil {
		return Config{}, err
	}
	if config.Hostname == "" {
		config.Hostname, _ = os.Hostname()
	}
	if config.Control.Host == "" {
		config.Control.Host = "127.0.0.1"
	}
	return config, nil
}

func (c Config) dumpOutput() (restyutil.InstrumentOutput, error) {
	if c.DumpDir == "" {
		return nil, nil
	}
	output, err := restyutil.NewFilesystemOutput(c.DumpDir)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// sink combines every configured notification backend, logging is used
// when nothing else is.
func (c Config) sink(dump restyutil.InstrumentOutput) notify.Sink {
	var sinks notify.Multi
	if c.Notify.Log {
		sinks = append(sinks, notify.LogSink{})
	}
	if len(c.Notify.Webhook.Urls) > 0 {
		sinks = append(sinks, notify.NewWebhookSink(notify.WebhookOptions{
			Urls:     c.Notify.Webhook.Urls,
			Username: c.Notify.Webhook.Username,
			Hostname: c.Hostname,
			Dump:     dump,
		}))
	}
	if c.Notify.Email.Server != "" {
		sinks = append(sinks, notify.NewEmailSink(notify.EmailOptions{
			Server:       c.Notify.Email.Server,
			Port:         c.Notify.Email.Port,
			EmailAddress: c.Notify.Email.EmailAddress,
			Password:     c.Notify.Email.Password,
			Recipients:   c.Notify.Email.Recipients,
			Channels:     c.Notify.Email.Channels,
			Hostname:     c.Hostname,
			Timeout:      time.Duration(c.Notify.Email.TimeoutSeconds) * time.Second,
		}))
	}
	if len(sinks) == 0 {
		return notify.LogSink{}
	}
	return sinks
}
