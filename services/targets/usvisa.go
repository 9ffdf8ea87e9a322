package targets

import (
	"context"
	"strings"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/scrapers/usvisa"
	"slotwatch/lib/session"
	"slotwatch/services/monitor"
	"slotwatch/services/notify"
)

type USVisaConfig struct {
	CommonConfig
	Locale           string              `json:"locale"`
	ScheduleId       string              `json:"schedule_id"`
	FacilityId       string              `json:"facility_id"`
	Credentials      session.Credentials `json:"credentials"`
	FetchTimes       bool                `json:"fetch_times"`
	BypassCloudflare bool                `json:"bypass_cloudflare"`
}

// USVisa reports appointment days as slots.
type USVisa struct {
	client *usvisa.Client
}

func NewUSVisa(config USVisaConfig, dump restyutil.InstrumentOutput) (*USVisa, error) {
	client, err := usvisa.NewClient(usvisa.ClientOptions{
		BaseUrl:          config.BaseUrl,
		Locale:           config.Locale,
		ScheduleId:       config.ScheduleId,
		FacilityId:       config.FacilityId,
		Credentials:      config.Credentials,
		Timeout:          config.timeout(),
		BypassCloudflare: config.BypassCloudflare,
		Dump:             dump,
	})
	if err != nil {
		return nil, err
	}
	return &USVisa{client: client}, nil
}

func (u *USVisa) Name() string { return "usvisa" }

func (u *USVisa) FetchAvailability(ctx context.Context) monitor.PollResult {
	days, err := u.client.Days(ctx)
	if err != nil {
		return monitor.Classify(nil, err)
	}
	slots := make([]monitor.Slot, 0, len(days))
	for _, d := range days {
		meta := map[string]string{}
		if d.BusinessDay {
			meta["business_day"] = "true"
		}
		slots = append(slots, monitor.Slot{ID: d.Date, Meta: meta})
	}
	return monitor.Succeeded(slots)
}

func (u *USVisa) FetchDetail(ctx context.Context, date string) ([]notify.Field, error) {
	times, err := u.client.Times(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(times.AvailableTimes) == 0 {
		return nil, nil
	}
	return []notify.Field{{
		Name:  "Available times",
		Value: strings.Join(times.AvailableTimes, ", "),
	}}, nil
}

func (u *USVisa) Authenticate(ctx context.Context) error {
	return u.client.SignIn(ctx)
}

func (u *USVisa) SignOut(ctx context.Context) error {
	return u.client.SignOut(ctx)
}

func NewUSVisaMonitor(config USVisaConfig, sink notify.Sink, dump restyutil.InstrumentOutput) (*monitor.Monitor, error) {
	endpoint, err := NewUSVisa(config, dump)
	if err != nil {
		return nil, err
	}
	opts, err := config.options("usvisa", time.Minute)
	if err != nil {
		return nil, err
	}
	opts.Endpoint = endpoint
	opts.Auth = endpoint
	opts.Sink = sink
	opts.FetchDetail = config.FetchTimes
	return monitor.New(opts)
}
