package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"slices"
	"strings"
	"time"

	"slotwatch/lib/timezone"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type EmailOptions struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
	Recipients   []string
	// channels that are mailed, all channels when empty
	Channels []string
	Hostname string
	// deadline for a single send, defaults to DefaultEmailTimeout
	Timeout time.Duration
}

const DefaultEmailTimeout = time.Second * 30

// EmailSink mails notifications for the configured channels, other
// channels are silently skipped.
type EmailSink struct {
	opts EmailOptions
	now  func() time.Time
}

func NewEmailSink(opts EmailOptions) *EmailSink {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultEmailTimeout
	}
	return &EmailSink{opts: opts, now: timezone.Now}
}

func (s *EmailSink) wants(channel string) bool {
	return len(s.opts.Channels) == 0 || slices.Contains(s.opts.Channels, channel)
}

func (s *EmailSink) body(fields []Field) string {
	var out strings.Builder
	for _, f := range fields {
		out.WriteString(fmt.Sprintf("%s:\n%s\n\n", f.Name, f.Value))
	}
	out.WriteString(Footer(s.opts.Hostname, s.now()))
	return out.String()
}

func (s *EmailSink) send(ctx context.Context, subject, body string) error {
	ctx, span := tracer.Start(ctx, "email:send")
	defer span.End()
	span.SetAttributes(attribute.String("subject", subject))

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("slotwatch <%s>", s.opts.EmailAddress)
	mail.To = s.opts.Recipients
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", s.opts.Server, s.opts.Port)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	err := deliver(ctx, mail, addr, smtp.PlainAuth("", s.opts.EmailAddress, s.opts.Password, s.opts.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = deliver(ctx, mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// deliver gives up on a send once ctx is done. the smtp exchange itself
// keeps running in the background until the server answers or drops.
func deliver(ctx context.Context, mail *email.Email, addr string, auth smtp.Auth) error {
	done := make(chan error, 1)
	go func() {
		done <- mail.Send(addr, auth)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send email via %s: %w", addr, ctx.Err())
	}
}

func (s *EmailSink) SendMessage(ctx context.Context, channel string, fields []Field) error {
	if !s.wants(channel) || len(s.opts.Recipients) == 0 {
		return nil
	}
	subject := channel
	if len(fields) > 0 {
		subject = fmt.Sprintf("%s: %s", channel, fields[0].Name)
	}
	return s.send(ctx, subject, s.body(fields))
}

func (s *EmailSink) SendError(ctx context.Context, channel string, err error) error {
	if !s.wants(channel) || len(s.opts.Recipients) == 0 {
		return nil
	}
	subject := fmt.Sprintf("%s: %s", channel, ErrorName(err))
	return s.send(ctx, subject, s.body(ErrorFields(err)))
}
