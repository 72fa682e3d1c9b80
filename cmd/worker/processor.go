package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/notify"
)

// Sender delivers a purchase notification.
type Sender interface {
	Notify(ctx context.Context, p notify.Purchase) error
}

// Processor drains purchase notifications queued by the API.
type Processor struct {
	sender Sender
	log    *slog.Logger
}

// NewProcessor creates a worker processor around sender.
func NewProcessor(sender Sender, log *slog.Logger) *Processor {
	return &Processor{sender: sender, log: log}
}

// Handle processes a batch and reports only the failed messages, so SQS
// redelivers those and not the whole batch.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("notification failed", "message_id", rec.MessageId, "err", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	kind := attribute(rec, "kind")
	log := p.log.With("message_id", rec.MessageId, "kind", kind)

	if kind != "" && kind != notify.KindPurchaseConfirmation {
		// nothing else is published to this queue; drop rather than loop
		log.Warn("unknown message kind, dropping")
		return nil
	}

	var msg notify.Purchase
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.OrderID == "" || msg.CustomerEmail == "" {
		return fmt.Errorf("message missing order_id or customer_email")
	}
	log = log.With("order_id", msg.OrderID)

	if err := p.sender.Notify(logging.WithCtx(ctx, log), msg); err != nil {
		return fmt.Errorf("send purchase emails: %w", err)
	}
	log.Info("purchase emails sent")
	return nil
}

func attribute(rec events.SQSMessage, name string) string {
	a, ok := rec.MessageAttributes[name]
	if !ok || a.StringValue == nil {
		return ""
	}
	return *a.StringValue
}
