// Package targets binds the site scrapers to the monitor loop and
// builds monitors from configuration.
package targets

import (
	"fmt"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/services/monitor"
	"slotwatch/services/notify"
)

type ChannelsConfig struct {
	Listing  string `json:"listing"`
	Earliest string `json:"earliest"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

// CommonConfig is shared by every monitor section.
type CommonConfig struct {
	Enabled                  bool           `json:"enabled"`
	Paused                   bool           `json:"paused"`
	BaseUrl                  string         `json:"base_url"`
	IntervalSeconds          int            `json:"interval_seconds"`
	EscalatedIntervalSeconds int            `json:"escalated_interval_seconds"`
	RequestTimeoutSeconds    int            `json:"request_timeout_seconds"`
	Constraint               string         `json:"constraint"`
	Channels                 ChannelsConfig `json:"channels"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c CommonConfig) timeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds)
}

func (c CommonConfig) options(name string, defaultInterval time.Duration) (monitor.Options, error) {
	constraint, err := monitor.ParseConstraint(c.Constraint)
	if err != nil {
		return monitor.Options{}, fmt.Errorf("%s: %w", name, err)
	}
	interval := seconds(c.IntervalSeconds)
	if interval <= 0 {
		interval = defaultInterval
	}
	return monitor.Options{
		Name: name,
		Channels: monitor.Channels{
			Listing:  c.Channels.Listing,
			Earliest: c.Channels.Earliest,
			Status:   c.Channels.Status,
			Error:    c.Channels.Error,
		},
		Constraint:        constraint,
		Interval:          interval,
		EscalatedInterval: seconds(c.EscalatedIntervalSeconds),
		Paused:            c.Paused,
	}, nil
}

type Config struct {
	USVisa   USVisaConfig   `json:"usvisa"`
	Cineplex CineplexConfig `json:"cineplex"`
	Icbc     IcbcConfig     `json:"icbc"`
}

// BuildAll creates a monitor for every enabled section.
func BuildAll(config Config, sink notify.Sink, dump restyutil.InstrumentOutput) ([]*monitor.Monitor, error) {
	var out []*monitor.Monitor
	if config.USVisa.Enabled {
		m, err := NewUSVisaMonitor(config.USVisa, sink, dump)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if config.Cineplex.Enabled {
		m, err := NewCineplexMonitor(config.Cineplex, sink, dump)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if config.Icbc.Enabled {
		m, err := NewIcbcMonitor(config.Icbc, sink, dump)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
