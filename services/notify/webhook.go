package notify

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"slotwatch/lib/restyutil"
	"slotwatch/lib/telemetry"
	"slotwatch/lib/timezone"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("slotwatch/services/notify")

// discord embed limits
const (
	maxFieldName  = 256
	maxFieldValue = 1024
	maxFields     = 25
)

const errorColor = 0xE74C3C

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Color     int          `json:"color,omitempty"`
	Fields    []embedField `json:"fields"`
	Footer    embedFooter  `json:"footer"`
	Timestamp string       `json:"timestamp"`
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type WebhookOptions struct {
	// channel name -> webhook url
	Urls     map[string]string
	Username string
	Hostname string
	Timeout  time.Duration
	Dump     restyutil.InstrumentOutput
}

// WebhookSink posts each notification as a single embed to the webhook
// configured for its channel.
type WebhookSink struct {
	http *resty.Client
	opts WebhookOptions
	now  func() time.Time
}

func NewWebhookSink(opts WebhookOptions) *WebhookSink {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 15
	}
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")
	telemetry.InstrumentResty(client, "slotwatch/services/notify/http")
	restyutil.DumpExchanges(client, "webhook", opts.Dump)

	return &WebhookSink{
		http: client,
		opts: opts,
		now:  timezone.Now,
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func (s *WebhookSink) buildEmbed(fields []Field, color int) embed {
	now := s.now()
	out := embed{
		Color:     color,
		Footer:    embedFooter{Text: Footer(s.opts.Hostname, now)},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	for i, f := range fields {
		if i == maxFields {
			break
		}
		value := f.Value
		// empty values are refused by the api
		if value == "" {
			value = "-"
		}
		out.Fields = append(out.Fields, embedField{
			Name:  truncate(f.Name, maxFieldName),
			Value: truncate(value, maxFieldValue),
		})
	}
	return out
}

func (s *WebhookSink) post(ctx context.Context, channel string, e embed) error {
	ctx, span := tracer.Start(ctx, "webhook:post")
	defer span.End()
	span.SetAttributes(attribute.String("channel", channel))

	url, ok := s.opts.Urls[channel]
	if !ok {
		span.SetStatus(codes.Error, "unknown channel")
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			Username: s.opts.Username,
			Embeds:   []embed{e},
		}).
		Post(url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post webhook")
		return err
	}
	if res.IsError() {
		err := fmt.Errorf("webhook for %s responded with %s", channel, res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *WebhookSink) SendMessage(ctx context.Context, channel string, fields []Field) error {
	return s.post(ctx, channel, s.buildEmbed(fields, 0))
}

func (s *WebhookSink) SendError(ctx context.Context, channel string, err error) error {
	return s.post(ctx, channel, s.buildEmbed(ErrorFields(err), errorColor))
}
