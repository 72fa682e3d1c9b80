package fulfillment

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
	"github.com/imrishuroy/go-license-orderflow/internal/notify"
	"github.com/imrishuroy/go-license-orderflow/internal/orders"
)

// UserAgentCheckout is recorded on acceptances captured through the hosted checkout.
const UserAgentCheckout = "stripe-checkout"

// tokenBytes gives 256 bits of entropy.
const tokenBytes = 32

// Store is the persistence the machine needs.
type Store interface {
	GetBySession(ctx context.Context, sessionID string) (*orders.Order, error)
	Complete(ctx context.Context, orderID string, f orders.Fulfillment) error
	GetToken(ctx context.Context, token string) (*orders.DownloadToken, error)
}

// Notifier delivers the purchase confirmation and the operator notification.
type Notifier interface {
	Notify(ctx context.Context, p notify.Purchase) error
}

// Completion is a verified payment-completion event.
type Completion struct {
	SessionID string
	Country   string // from the gateway's customer details; may be empty
}

// Outcome tells the caller what a delivery did.
type Outcome string

const (
	OutcomeFulfilled        Outcome = "fulfilled"
	OutcomeAlreadyCompleted Outcome = "already_completed"
)

// Config holds the token lifetime, legal terms version and notification bounds.
type Config struct {
	TokenTTL      time.Duration
	LegalVersion  string
	NotifyTimeout time.Duration
	DownloadURL   func(token string) string
}

// Machine drives orders from PENDING to COMPLETED exactly once.
type Machine struct {
	store    Store
	catalog  catalog.Reader
	notifier Notifier
	metrics  metrics.Recorder
	cfg      Config
	nowFunc  func() time.Time
	newToken func() (string, error)
}

// NewMachine builds a Machine. A nil recorder disables metrics.
func NewMachine(store Store, items catalog.Reader, n Notifier, rec metrics.Recorder, cfg Config) *Machine {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &Machine{
		store:    store,
		catalog:  items,
		notifier: n,
		metrics:  rec,
		cfg:      cfg,
		nowFunc:  time.Now,
		newToken: NewToken,
	}
}

// NewToken returns 32 random bytes, base64url encoded without padding.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HandleCompleted applies a payment completion. Redeliveries for an order that
// is already COMPLETED succeed without writing anything.
func (m *Machine) HandleCompleted(ctx context.Context, ev Completion) (Outcome, error) {
	log := logging.FromCtx(ctx).With("session_id", ev.SessionID)

	order, err := m.store.GetBySession(ctx, ev.SessionID)
	if err != nil {
		return "", apperr.Transient("error processing order", err)
	}
	if order == nil {
		log.Error("order not found for session")
		return "", apperr.NotFound("order not found")
	}
	log = log.With("order_id", order.OrderID)

	if order.Status == orders.StatusCompleted {
		m.metrics.Count(ctx, metrics.DuplicateDelivery)
		log.Info("order already completed")
		return OutcomeAlreadyCompleted, nil
	}

	now := m.nowFunc().UTC()
	token, err := m.newToken()
	if err != nil {
		return "", apperr.Transient("error processing order", err)
	}
	f := orders.Fulfillment{
		Token: orders.DownloadToken{
			Token:     token,
			OrderID:   order.OrderID,
			ExpiresAt: now.Add(m.cfg.TokenTTL),
			CreatedAt: now,
		},
		Acceptance: orders.TermsAcceptance{
			OrderID:      order.OrderID,
			AcceptedAt:   now,
			LegalVersion: m.cfg.LegalVersion,
			Country:      ev.Country,
			UserAgent:    UserAgentCheckout,
		},
	}

	// the status read above is only a shortcut; the conditional write decides
	if err := m.store.Complete(ctx, order.OrderID, f); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			m.metrics.Count(ctx, metrics.DuplicateDelivery)
			log.Info("order completed by a concurrent delivery")
			return OutcomeAlreadyCompleted, nil
		}
		return "", apperr.Transient("error processing order", err)
	}

	m.metrics.Count(ctx, metrics.OrderCompleted)
	log.Info("order completed", "expires_at", f.Token.ExpiresAt)

	m.sendNotifications(ctx, *order, f.Token)
	return OutcomeFulfilled, nil
}

// sendNotifications is best-effort and bounded; the order is already durable.
func (m *Machine) sendNotifications(ctx context.Context, order orders.Order, tok orders.DownloadToken) {
	log := logging.FromCtx(ctx).With("order_id", order.OrderID)
	if m.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.NotifyTimeout)
	defer cancel()

	p, err := m.purchase(ctx, order, tok)
	if err != nil {
		m.metrics.Count(ctx, metrics.NotificationFailed)
		log.Warn("build notification", "err", err)
		return
	}
	if err := m.notifier.Notify(ctx, p); err != nil {
		m.metrics.Count(ctx, metrics.NotificationFailed)
		log.Warn("send notification", "err", err)
	}
}

func (m *Machine) purchase(ctx context.Context, order orders.Order, tok orders.DownloadToken) (notify.Purchase, error) {
	line, ok := order.PrimaryItem()
	if !ok {
		return notify.Purchase{}, errors.New("order has no items")
	}
	item, err := m.catalog.Get(ctx, line.ItemID)
	if err != nil {
		return notify.Purchase{}, fmt.Errorf("load catalog item: %w", err)
	}
	if item == nil {
		return notify.Purchase{}, fmt.Errorf("catalog item %s missing", line.ItemID)
	}
	downloadURL := ""
	if m.cfg.DownloadURL != nil {
		downloadURL = m.cfg.DownloadURL(tok.Token)
	}
	return notify.Purchase{
		OrderID:       order.OrderID,
		CustomerEmail: order.CustomerEmail,
		TrackTitle:    item.Title,
		ArtistName:    item.ArtistName,
		LicenseType:   line.LicenseType,
		PriceCents:    line.PriceCents,
		DownloadURL:   downloadURL,
		ExpiresAt:     tok.ExpiresAt,
	}, nil
}

// Status is what the success page polls for.
type Status struct {
	OrderID     string     `json:"orderId"`
	Status      string     `json:"status"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// StatusBySession reports the order for a session. The download link is only
// included once the order is COMPLETED.
func (m *Machine) StatusBySession(ctx context.Context, sessionID string) (Status, error) {
	order, err := m.store.GetBySession(ctx, sessionID)
	if err != nil {
		return Status{}, apperr.Transient("order lookup failed", err)
	}
	if order == nil {
		return Status{}, apperr.NotFound("order not found")
	}
	st := Status{OrderID: order.OrderID, Status: order.Status}
	if order.Status != orders.StatusCompleted || order.DownloadToken == "" {
		return st, nil
	}
	tok, err := m.store.GetToken(ctx, order.DownloadToken)
	if err != nil {
		return Status{}, apperr.Transient("order lookup failed", err)
	}
	if tok != nil && m.cfg.DownloadURL != nil {
		st.DownloadURL = m.cfg.DownloadURL(tok.Token)
		exp := tok.ExpiresAt
		st.ExpiresAt = &exp
	}
	return st, nil
}
