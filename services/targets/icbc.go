package targets

import (
	"context"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/scrapers/icbc"
	"slotwatch/services/monitor"
	"slotwatch/services/notify"
)

type IcbcConfig struct {
	CommonConfig
	BranchId   string `json:"branch_id"`
	ServiceId  string `json:"service_id"`
	SlotLength int    `json:"slot_length"`
	// "YYYY-MM-DD" or "YYYY-MM-DDTHH:MM,HH:MM"
	Dates []string `json:"dates"`
}

// Icbc reports configured dates that have an acceptable road test slot.
type Icbc struct {
	client *icbc.Client
}

func NewIcbc(config IcbcConfig, dump restyutil.InstrumentOutput) (*Icbc, error) {
	windows := make([]icbc.DateWindow, 0, len(config.Dates))
	for _, d := range config.Dates {
		w, err := icbc.ParseDateWindow(d)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	client, err := icbc.NewClient(icbc.ClientOptions{
		BaseUrl:    config.BaseUrl,
		BranchId:   config.BranchId,
		ServiceId:  config.ServiceId,
		SlotLength: config.SlotLength,
		Windows:    windows,
		Timeout:    config.timeout(),
		Dump:       dump,
	})
	if err != nil {
		return nil, err
	}
	return &Icbc{client: client}, nil
}

func (i *Icbc) Name() string { return "icbc" }

func (i *Icbc) FetchAvailability(ctx context.Context) monitor.PollResult {
	dates, err := i.client.AvailableDates(ctx)
	if err != nil {
		return monitor.Classify(nil, err)
	}
	slots := make([]monitor.Slot, 0, len(dates))
	for _, d := range dates {
		slots = append(slots, monitor.Slot{ID: d})
	}
	return monitor.Succeeded(slots)
}

func NewIcbcMonitor(config IcbcConfig, sink notify.Sink, dump restyutil.InstrumentOutput) (*monitor.Monitor, error) {
	endpoint, err := NewIcbc(config, dump)
	if err != nil {
		return nil, err
	}
	opts, err := config.options("icbc", time.Minute)
	if err != nil {
		return nil, err
	}
	opts.Endpoint = endpoint
	opts.Sink = sink
	return monitor.New(opts)
}
