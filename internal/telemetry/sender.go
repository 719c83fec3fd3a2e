package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// Sender delivers one telemetry event. Any error is treated as a failed delivery.
type Sender interface {
	Send(ctx context.Context, ev model.PendingEvent) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, ev model.PendingEvent) error

// Send implements Sender
func (f SenderFunc) Send(ctx context.Context, ev model.PendingEvent) error {
	return f(ctx, ev)
}

// LogSender writes events to a logger instead of a collector
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender for local runs and replays
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("telemetry")}
}

// Send implements Sender
func (s *LogSender) Send(ctx context.Context, ev model.PendingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Payload.Type)),
		zap.String("dedup_key", ev.DedupKey),
		zap.String("session_id", ev.Payload.SessionID),
		zap.Int("attempt", ev.Attempts),
	}
	if ev.Payload.Answers != nil {
		fields = append(fields, zap.String("answers", *ev.Payload.Answers))
	}
	s.logger.Info("telemetry event", fields...)
	return nil
}
