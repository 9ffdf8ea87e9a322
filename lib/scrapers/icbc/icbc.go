package icbc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slotwatch/lib/scrapers/icbc")

const DefaultBaseUrl = "https://onlinebusiness.icbc.com/qmaticwebbooking/rest/schedule"

const DefaultSlotLength = 35

// DateWindow is a date to check together with the times that are
// acceptable on it. with no times, any slot on the date qualifies.
type DateWindow struct {
	Date  string
	Times []string
}

// ParseDateWindow reads "2024-03-09" or "2024-03-09T16:20,16:55".
func ParseDateWindow(s string) (DateWindow, error) {
	date, times, hasTimes := strings.Cut(strings.TrimSpace(s), "T")
	_, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return DateWindow{}, fmt.Errorf("invalid date window %q: %w", s, err)
	}
	window := DateWindow{Date: date}
	if !hasTimes {
		return window, nil
	}
	for _, t := range strings.Split(times, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			window.Times = append(window.Times, t)
		}
	}
	return window, nil
}

func (w DateWindow) accepts(slotTime string) bool {
	if len(w.Times) == 0 {
		return slotTime > "00:00"
	}
	return slices.Contains(w.Times, slotTime)
}

type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type ClientOptions struct {
	BaseUrl    string
	BranchId   string
	ServiceId  string
	SlotLength int
	Windows    []DateWindow
	Timeout    time.Duration
	Dump       restyutil.InstrumentOutput
}

type Client struct {
	session *session.Manager
	opts    ClientOptions
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.SlotLength <= 0 {
		opts.SlotLength = DefaultSlotLength
	}
	if opts.BranchId == "" || opts.ServiceId == "" {
		return nil, fmt.Errorf("branch id and service id are required")
	}

	manager, err := session.NewManager(session.Options{
		BaseUrl:    opts.BaseUrl,
		Headers:    map[string]string{"Accept": "application/json"},
		Timeout:    opts.Timeout,
		Dump:       opts.Dump,
		DumpPrefix: "icbc",
	})
	if err != nil {
		return nil, err
	}
	return &Client{session: manager, opts: opts}, nil
}

// Times lists every open slot on `date`.
func (c *Client) Times(ctx context.Context, date string) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "client:Times")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	// the schedule api takes matrix parameters on the last segment
	path := fmt.Sprintf(
		"/branches/%s/dates/%s/times;servicePublicId=%s;customSlotLength=%d",
		c.opts.BranchId, date, c.opts.ServiceId, c.opts.SlotLength,
	)
	res, err := c.session.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   path,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch times")
		return nil, err
	}

	var slots []Slot
	err = json.Unmarshal(res.Body, &slots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode times")
		return nil, &session.MalformedError{What: "times", Err: err}
	}
	return slots, nil
}

// AvailableDates checks every configured window and returns the dates
// with at least one acceptable slot. a window that fails is logged and
// skipped, an error is only returned when every window failed.
func (c *Client) AvailableDates(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:AvailableDates")
	defer span.End()

	var dates []string
	var errs []error
	for _, window := range c.opts.Windows {
		slots, err := c.Times(ctx, window.Date)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch icbc times", "date", window.Date, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", window.Date, err))
			continue
		}
		for _, slot := range slots {
			if window.accepts(slot.Time) {
				dates = append(dates, window.Date)
				break
			}
		}
	}

	if len(c.opts.Windows) > 0 && len(errs) == len(c.opts.Windows) {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "every date failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("dates", len(dates)))
	return dates, nil
}
