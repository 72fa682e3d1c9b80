package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message kinds carried on the queue.
const (
	KindPurchaseConfirmation = "purchase_confirmation"
)

// Purchase is everything needed to tell the buyer and the operator about a completed order.
type Purchase struct {
	OrderID       string    `json:"order_id"`
	CustomerEmail string    `json:"customer_email"`
	TrackTitle    string    `json:"track_title"`
	ArtistName    string    `json:"artist_name"`
	LicenseType   string    `json:"license_type"`
	PriceCents    int64     `json:"price_cents"`
	DownloadURL   string    `json:"download_url"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// FormatPrice renders cents as dollars, e.g. 99 -> "$0.99".
func FormatPrice(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}
