package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotwatch/lib/timezone"
)

type Field struct {
	Name  string
	Value string
}

// Sink delivers notifications to named channels. implementations are
// safe for concurrent use since every monitor shares the same sink.
type Sink interface {
	SendMessage(ctx context.Context, channel string, fields []Field) error
	SendError(ctx context.Context, channel string, err error) error
}

var ErrUnknownChannel = errors.New("unknown channel")

// ErrorName returns the short name of err when it carries one, errors
// without a name are reported as "Error".
func ErrorName(err error) string {
	var named interface{ Name() string }
	if errors.As(err, &named) {
		return named.Name()
	}
	return "Error"
}

func ErrorFields(err error) []Field {
	return []Field{{Name: ErrorName(err), Value: err.Error()}}
}

func Footer(hostname string, at time.Time) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", hostname, timezone.Stamp(at)))
}

// Render flattens fields into a single "Name: Value, ..." line.
func Render(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Value)
	}
	return strings.Join(parts, ", ")
}

// Multi fans a notification out to every sink, a failing sink does not
// stop the others.
type Multi []Sink

func (m Multi) SendMessage(ctx context.Context, channel string, fields []Field) error {
	var errs []error
	for _, s := range m {
		err := s.SendMessage(ctx, channel, fields)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendError(ctx context.Context, channel string, err error) error {
	var errs []error
	for _, s := range m {
		sendErr := s.SendError(ctx, channel, err)
		if sendErr != nil {
			errs = append(errs, sendErr)
		}
	}
	return errors.Join(errs...)
}
