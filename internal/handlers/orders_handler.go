package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-license-orderflow/internal/checkout"
	"github.com/imrishuroy/go-license-orderflow/internal/download"
	"github.com/imrishuroy/go-license-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
	"github.com/imrishuroy/go-license-orderflow/internal/orders"
	"github.com/imrishuroy/go-license-orderflow/internal/validation"
)

// IdempotencyKeyHeader optionally deduplicates checkout retries.
const IdempotencyKeyHeader = "Idempotency-Key"

type CheckoutStarter interface {
	Start(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type Fulfiller interface {
	HandleCompleted(ctx context.Context, ev fulfillment.Completion) (fulfillment.Outcome, error)
	StatusBySession(ctx context.Context, sessionID string) (fulfillment.Status, error)
}

type Downloader interface {
	Open(ctx context.Context, token string) (*download.File, error)
	Link(ctx context.Context, token string) (*download.Link, error)
}

type WebhookVerifier interface {
	Verify(payload []byte, header string) error
}

type OperatorAuth interface {
	Login(password string) (string, time.Time, error)
	Verify(raw string) error
}

// AdminStore is the read side used by the operator listing.
type AdminStore interface {
	List(ctx context.Context, status string, limit int) ([]orders.Order, error)
	Stats(ctx context.Context) ([]orders.Stats, error)
	GetToken(ctx context.Context, token string) (*orders.DownloadToken, error)
}

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	Checkout    CheckoutStarter
	Fulfillment Fulfiller
	Downloads   Downloader
	Verifier    WebhookVerifier
	Metrics     metrics.Recorder
	Validator   *validatorv10.Validate

	// Operator and Admin are optional; without them the /admin routes are not mounted.
	Operator OperatorAuth
	Admin    AdminStore

	MaxWebhookBytes int64

	// RedirectDownloads answers downloads with a 302 to a short-lived blob
	// storage link instead of streaming through this process.
	RedirectDownloads bool
}

// RegisterRoutes mounts every public and operator route on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.MaxWebhookBytes <= 0 {
		cfg.MaxWebhookBytes = 1 << 20
	}

	r.POST("/checkout", checkoutHandler(cfg))
	r.GET("/orders/by-session/:sessionId", bySessionHandler(cfg))
	r.POST("/webhooks/payment-completed", webhookHandler(cfg))
	r.GET("/download/:token", downloadHandler(cfg))

	if cfg.Operator != nil && cfg.Admin != nil {
		registerAdminRoutes(r, cfg)
	}
}

func checkoutHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, cfg.Validator); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		res, err := cfg.Checkout.Start(c.Request.Context(), checkout.Request{
			ItemID:         req.ItemID,
			Email:          req.Email,
			AcceptedTerms:  req.AcceptedTerms,
			LicenseType:    req.LicenseType,
			IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func bySessionHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := cfg.Fulfillment.StatusBySession(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
