package notify

import (
	"context"
	"log/slog"
)

// Publisher is the queue side used by QueueNotifier.
type Publisher interface {
	PublishJSON(ctx context.Context, v any, attributes map[string]string) error
}

// QueueNotifier hands purchases to the notification worker through SQS.
type QueueNotifier struct {
	pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (q *QueueNotifier) Notify(ctx context.Context, p Purchase) error {
	return q.pub.PublishJSON(ctx, p, map[string]string{
		"kind":     KindPurchaseConfirmation,
		"order_id": p.OrderID,
	})
}

// LogNotifier only records that a notification would have been sent.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, p Purchase) error {
	l.log.InfoContext(ctx, "notification skipped, no mail provider configured",
		"order_id", p.OrderID,
		"track", p.TrackTitle,
	)
	return nil
}
