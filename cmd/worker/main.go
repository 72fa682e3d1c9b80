package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-license-orderflow/internal/config"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/notify"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.Init("worker", cfg.App.LogFile)

	var sender Sender = notify.NewLogNotifier(logger)
	if cfg.Notify.ResendAPIKey != "" {
		sender = notify.NewResendMailer(notify.ResendConfig{
			APIKey:        cfg.Notify.ResendAPIKey,
			BaseURL:       cfg.Notify.ResendBaseURL,
			From:          cfg.Notify.From,
			OperatorEmail: cfg.Notify.OperatorEmail,
		})
	} else {
		logger.Warn("no email provider configured; notifications are only logged")
	}
	p := NewProcessor(sender, logger)

	// If RUN_LOCAL=true, process a single message from LOCAL_SQS_BODY for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"local-order-1","customer_email":"buyer@example.com","track_title":"Local Track","license_type":"STANDARD","price_cents":99}`
		}
		resp, _ := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if len(resp.BatchItemFailures) > 0 {
			log.Fatalf("local message failed")
		}
		return
	}

	lambda.Start(p.Handle)
}
