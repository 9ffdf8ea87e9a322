package notify

import (
	"context"
	"log/slog"
)

type LogSink struct{}

func (LogSink) SendMessage(ctx context.Context, channel string, fields []Field) error {
	slog.InfoContext(ctx, "notification", "channel", channel, "fields", Render(fields))
	return nil
}

func (LogSink) SendError(ctx context.Context, channel string, err error) error {
	slog.ErrorContext(ctx, "notification", "channel", channel, "name", ErrorName(err), "err", err)
	return nil
}
