package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// SessionRequest describes one hosted checkout for a single licensed item.
type SessionRequest struct {
	OrderID        string
	ItemID         string
	Title          string
	ArtistName     string
	LicenseType    string
	PriceCents     int64
	Email          string
	IdempotencyKey string
}

// Session is the gateway's answer: the id webhooks will reference and the hosted page URL.
type Session struct {
	ID  string
	URL string
}

// StripeConfig configures the Stripe checkout client.
type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	BaseURL    string // override for tests; defaults to the Stripe API
	HTTPClient *http.Client
}

// Stripe creates hosted Checkout Sessions through stripe-go.
type Stripe struct {
	client   session.Client
	currency string
	success  string
	cancel   string
}

func NewStripe(cfg StripeConfig) *Stripe {
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(2),
		HTTPClient:        cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	return &Stripe{
		client: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		currency: cfg.Currency,
		success:  cfg.SuccessURL,
		cancel:   cfg.CancelURL,
	}
}

// CreateSession opens a payment-mode checkout carrying the authoritative price.
func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:     stripe.String(req.Email),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(s.success),
		CancelURL:         stripe.String(s.cancel),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(req.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(ProductName(req.Title)),
						Description: stripe.String(ProductDescription(req.ArtistName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("orderId", req.OrderID)
	params.AddMetadata("itemId", req.ItemID)
	params.AddMetadata("licenseType", req.LicenseType)
	params.AddMetadata("acceptedTerms", strconv.FormatBool(true))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey("checkout-" + req.IdempotencyKey)
	}

	cs, err := s.client.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: cs.ID, URL: cs.URL}, nil
}

// ProductName is the line item title shown on the hosted page.
func ProductName(title string) string {
	return title + " - Standard License"
}

// ProductDescription is the line item subtitle shown on the hosted page.
func ProductDescription(artist string) string {
	return "by " + artist + " | Includes 2-Track WAV + MP3"
}
