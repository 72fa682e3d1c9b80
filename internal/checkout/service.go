package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
	"github.com/imrishuroy/go-license-orderflow/internal/gateway"
	"github.com/imrishuroy/go-license-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
	"github.com/imrishuroy/go-license-orderflow/internal/orders"
)

// Gateway opens hosted payment sessions.
type Gateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error)
}

// Pricer is the authoritative price and terms check.
type Pricer interface {
	Price(ctx context.Context, itemID string) (catalog.Item, error)
	RequireTerms(accepted bool) error
}

// OrderWriter persists the PENDING order.
type OrderWriter interface {
	CreatePending(ctx context.Context, order orders.Order) error
}

// Idempotency records Idempotency-Key outcomes so retries replay the first response.
type Idempotency interface {
	Begin(ctx context.Context, key, requestHash string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, orderID, checkoutURL string) error
	MarkFailed(ctx context.Context, key, reason string) error
}

// Request is a validated checkout request.
type Request struct {
	ItemID         string
	Email          string
	AcceptedTerms  bool
	LicenseType    string
	IdempotencyKey string // optional
}

// Result is returned to the buyer's browser.
type Result struct {
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
}

// keyedOrders namespaces order ids derived from Idempotency-Keys.
var keyedOrders = uuid.MustParse("6f1c9a52-3d0e-4b7a-9b1e-2c4f8d7e5a10")

// Service is the Checkout Initiator.
type Service struct {
	pricer      Pricer
	gateway     Gateway
	orders      OrderWriter
	idem        Idempotency // nil disables Idempotency-Key handling
	metrics     metrics.Recorder
	licenseTier string
	newID       func() string
}

// Config carries checkout options. LicenseTier defaults to STANDARD.
type Config struct {
	LicenseTier string
}

// NewService wires the checkout flow. A nil idem disables Idempotency-Key handling.
func NewService(pricer Pricer, gw Gateway, ow OrderWriter, idem Idempotency, rec metrics.Recorder, cfg Config) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	tier := cfg.LicenseTier
	if tier == "" {
		tier = orders.LicenseStandard
	}
	return &Service{
		pricer:      pricer,
		gateway:     gw,
		orders:      ow,
		idem:        idem,
		metrics:     rec,
		licenseTier: tier,
		newID:       uuid.NewString,
	}
}

// Start validates the request, opens a gateway session at the catalog price
// and records the PENDING order against the session id.
func (s *Service) Start(ctx context.Context, req Request) (Result, error) {
	if err := s.pricer.RequireTerms(req.AcceptedTerms); err != nil {
		return Result{}, err
	}
	if req.LicenseType != s.licenseTier {
		return Result{}, apperr.InvalidRequest("only the Standard license is available")
	}

	if req.IdempotencyKey == "" || s.idem == nil {
		return s.start(ctx, req)
	}

	hash := idempotency.HashRequest(req.ItemID, strings.ToLower(req.Email), req.LicenseType)
	owned, err := s.idem.Begin(ctx, req.IdempotencyKey, hash)
	if err != nil {
		return Result{}, apperr.Transient("checkout unavailable", err)
	}
	if !owned {
		return s.replay(ctx, req.IdempotencyKey, hash)
	}

	res, err := s.start(ctx, req)
	log := logging.FromCtx(ctx)
	if err != nil {
		if mErr := s.idem.MarkFailed(ctx, req.IdempotencyKey, string(apperr.KindOf(err))); mErr != nil {
			log.Warn("mark idempotency failed", "err", mErr)
		}
		return Result{}, err
	}
	if mErr := s.idem.MarkDone(ctx, req.IdempotencyKey, res.OrderID, res.CheckoutURL); mErr != nil {
		log.Warn("mark idempotency done", "order_id", res.OrderID, "err", mErr)
	}
	return res, nil
}

func (s *Service) replay(ctx context.Context, key, hash string) (Result, error) {
	rec, err := s.idem.Get(ctx, key)
	if err != nil {
		return Result{}, apperr.Transient("checkout unavailable", err)
	}
	if rec == nil {
		// expired between Begin and Get
		return Result{}, apperr.Conflict("request in progress, retry shortly")
	}
	if rec.RequestHash != hash {
		return Result{}, apperr.InvalidRequest("idempotency key was used for a different request")
	}
	if !rec.Replayable() {
		return Result{}, apperr.Conflict("request in progress, retry shortly")
	}
	return Result{CheckoutURL: rec.CheckoutURL, OrderID: rec.OrderID}, nil
}

func (s *Service) start(ctx context.Context, req Request) (Result, error) {
	log := logging.FromCtx(ctx)

	item, err := s.pricer.Price(ctx, req.ItemID)
	if err != nil {
		return Result{}, err
	}

	orderID := s.orderIDFor(req.IdempotencyKey)
	sess, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		OrderID:        orderID,
		ItemID:         item.ItemID,
		Title:          item.Title,
		ArtistName:     item.ArtistName,
		LicenseType:    req.LicenseType,
		PriceCents:     item.PriceCents,
		Email:          req.Email,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		log.Error("create checkout session", "order_id", orderID, "item_id", item.ItemID, "err", err)
		return Result{}, apperr.Transient("failed to create checkout session", err)
	}

	order := orders.Order{
		OrderID:       orderID,
		SessionID:     sess.ID,
		CustomerEmail: req.Email,
		Status:        orders.StatusPending,
		TotalCents:    item.PriceCents,
		Items: []orders.OrderItem{{
			ItemID:      item.ItemID,
			LicenseType: req.LicenseType,
			PriceCents:  item.PriceCents,
		}},
	}
	if err := s.orders.CreatePending(ctx, order); err != nil {
		// the gateway session exists without an order; its completion webhook will find nothing
		log.Error("checkout session orphaned", "session_id", sess.ID, "order_id", orderID, "err", err)
		s.metrics.Count(ctx, metrics.CheckoutOrphaned)
		return Result{}, apperr.Transient("failed to record order", err)
	}

	s.metrics.Count(ctx, metrics.CheckoutStarted)
	log.Info("checkout started", "order_id", orderID, "session_id", sess.ID, "item_id", item.ItemID)
	return Result{CheckoutURL: sess.URL, OrderID: orderID}, nil
}

// orderIDFor keeps the order id stable across retries of one Idempotency-Key,
// so the gateway sees identical parameters under its own idempotency key.
func (s *Service) orderIDFor(key string) string {
	if key == "" || s.idem == nil {
		return s.newID()
	}
	return uuid.NewSHA1(keyedOrders, []byte(key)).String()
}
