package usvisa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slotwatch/lib/scrapers/usvisa")

const DefaultBaseUrl = "https://ais.usvisa-info.com"

// the sign-in response carries these only when a session was created
var sessionHeaders = []string{"Session-Id", "X-Yatri-Email"}

type Day struct {
	Date        string `json:"date"`
	BusinessDay bool   `json:"business_day"`
}

type Times struct {
	AvailableTimes []string `json:"available_times"`
	BusinessTimes  []string `json:"business_times"`
}

type ClientOptions struct {
	BaseUrl          string
	Locale           string
	ScheduleId       string
	FacilityId       string
	Credentials      session.Credentials
	Timeout          time.Duration
	BypassCloudflare bool
	Dump             restyutil.InstrumentOutput
}

type Client struct {
	session *session.Manager
	opts    ClientOptions
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Locale == "" {
		opts.Locale = "en-ca"
	}
	if opts.ScheduleId == "" || opts.FacilityId == "" {
		return nil, fmt.Errorf("schedule id and facility id are required")
	}

	manager, err := session.NewManager(session.Options{
		BaseUrl:          opts.BaseUrl,
		SignInPath:       fmt.Sprintf("/%s/niv/users/sign_in", opts.Locale),
		SignOutPath:      fmt.Sprintf("/%s/niv/users/sign_out", opts.Locale),
		Credentials:      opts.Credentials,
		SessionHeaders:   sessionHeaders,
		Timeout:          opts.Timeout,
		BypassCloudflare: opts.BypassCloudflare,
		Dump:             opts.Dump,
		DumpPrefix:       "usvisa",
	})
	if err != nil {
		return nil, err
	}
	return &Client{session: manager, opts: opts}, nil
}

func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) appointmentPath(kind string) string {
	return fmt.Sprintf(
		"/%s/niv/schedule/%s/appointment/%s/%s.json",
		c.opts.Locale, c.opts.ScheduleId, kind, c.opts.FacilityId,
	)
}

// the data layer reports an expired session as {"error": "..."},
// sometimes with a 200
type errorBody struct {
	Error *string `json:"error"`
}

func errorMessage(body []byte) (string, bool) {
	var e errorBody
	if json.Unmarshal(body, &e) != nil || e.Error == nil {
		return "", false
	}
	return *e.Error, true
}

func (c *Client) fetchJSON(ctx context.Context, path string, query url.Values, out any) error {
	res, err := c.session.Do(ctx, session.Request{
		Method:     http.MethodGet,
		Path:       path,
		Query:      query,
		XHR:        true,
		AuthSignal: true,
		Headers: map[string]string{
			"Accept": "application/json, text/javascript, */*; q=0.01",
		},
	})
	if errors.Is(err, session.ErrAuthRequired) {
		if msg, ok := errorMessage(res.Body); ok {
			return fmt.Errorf("%w: %s", session.ErrAuthRequired, msg)
		}
		return err
	}
	if err != nil {
		return err
	}

	if msg, ok := errorMessage(res.Body); ok {
		c.session.Invalidate()
		return fmt.Errorf("%w: %s", session.ErrAuthRequired, msg)
	}
	err = json.Unmarshal(res.Body, out)
	if err != nil {
		return &session.MalformedError{What: path, Err: err}
	}
	return nil
}

// Days lists the dates that currently have appointments.
func (c *Client) Days(ctx context.Context) ([]Day, error) {
	ctx, span := tracer.Start(ctx, "client:Days")
	defer span.End()

	query := url.Values{}
	query.Set("appointments[expedite]", "false")

	var days []Day
	err := c.fetchJSON(ctx, c.appointmentPath("days"), query, &days)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch days")
		return nil, err
	}
	span.SetAttributes(attribute.Int("days", len(days)))
	return days, nil
}

// Times lists the open times on `date`.
func (c *Client) Times(ctx context.Context, date string) (Times, error) {
	ctx, span := tracer.Start(ctx, "client:Times")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	query := url.Values{}
	query.Set("date", date)
	query.Set("appointments[expedite]", "false")

	var times Times
	err := c.fetchJSON(ctx, c.appointmentPath("times"), query, &times)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch times")
		return Times{}, err
	}
	return times, nil
}

func (c *Client) SignIn(ctx context.Context) error {
	return c.session.Authenticate(ctx)
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.session.SignOut(ctx)
}
