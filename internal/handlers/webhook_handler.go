package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
	"github.com/imrishuroy/go-license-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
)

const signatureHeader = "Stripe-Signature"

// webhookHandler verifies the signature over the raw body before anything
// else reads it. Only completion events reach the state machine.
func webhookHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logging.From(c)

		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxWebhookBytes))
		if err != nil {
			respondWebhookError(c, apperr.InvalidRequest("unreadable body"))
			return
		}

		if err := cfg.Verifier.Verify(payload, c.GetHeader(signatureHeader)); err != nil {
			cfg.Metrics.Count(ctx, metrics.WebhookRejected)
			respondWebhookError(c, err)
			return
		}

		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil || event.Data == nil {
			respondWebhookError(c, apperr.InvalidRequest("malformed event"))
			return
		}
		log = log.With("event_id", event.ID, "event_type", string(event.Type))

		switch event.Type {
		case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		case stripe.EventTypeCheckoutSessionExpired:
			log.Info("checkout session expired")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		default:
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil || session.ID == "" {
			respondWebhookError(c, apperr.InvalidRequest("malformed event"))
			return
		}
		log = log.With("session_id", session.ID)

		// delayed payment methods complete the session before the money arrives
		if event.Type == stripe.EventTypeCheckoutSessionCompleted && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			log.Info("payment pending, awaiting async confirmation")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		ev := fulfillment.Completion{SessionID: session.ID}
		if session.CustomerDetails != nil && session.CustomerDetails.Address != nil {
			ev.Country = session.CustomerDetails.Address.Country
		}

		outcome, err := cfg.Fulfillment.HandleCompleted(logging.WithCtx(ctx, log), ev)
		if err != nil {
			respondWebhookError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": string(outcome)})
	}
}
