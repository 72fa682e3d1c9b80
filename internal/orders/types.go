package orders

import (
	"context"
	"time"
)

// Order statuses. PENDING is set at checkout; COMPLETED is terminal.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

// LicenseStandard is the only license tier sold.
const LicenseStandard = "STANDARD"

// OrderItem is the purchased catalog entry with the price charged at checkout.
type OrderItem struct {
	ItemID      string `dynamodbav:"item_id"`
	LicenseType string `dynamodbav:"license_type"`
	PriceCents  int64  `dynamodbav:"price_cents"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID       string      `dynamodbav:"order_id"`   // PK
	SessionID     string      `dynamodbav:"session_id"` // gateway session, unique
	CustomerEmail string      `dynamodbav:"customer_email"`
	Status        string      `dynamodbav:"status"` // PENDING | COMPLETED
	TotalCents    int64       `dynamodbav:"total_cents"`
	Items         []OrderItem `dynamodbav:"items"`
	DownloadToken string      `dynamodbav:"download_token,omitempty"` // set by the completing transaction
	CreatedAt     time.Time   `dynamodbav:"created_at"`
	UpdatedAt     time.Time   `dynamodbav:"updated_at"`
	CompletedAt   *time.Time  `dynamodbav:"completed_at,omitempty"`
}

// PrimaryItem returns the single purchased item, if any.
func (o Order) PrimaryItem() (OrderItem, bool) {
	if len(o.Items) == 0 {
		return OrderItem{}, false
	}
	return o.Items[0], true
}

// DownloadToken grants time-bounded access to a completed order's file.
type DownloadToken struct {
	Token      string     `dynamodbav:"token"` // PK
	OrderID    string     `dynamodbav:"order_id"`
	ExpiresAt  time.Time  `dynamodbav:"expires_at"`
	CreatedAt  time.Time  `dynamodbav:"created_at"`
	LastUsedAt *time.Time `dynamodbav:"last_used_at,omitempty,unixtime"` // advisory
}

// Expired reports whether the token is unusable at now. The boundary instant counts as expired.
func (t DownloadToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TermsAcceptance is the durable proof that terms were accepted before fulfillment.
type TermsAcceptance struct {
	OrderID      string    `dynamodbav:"order_id"` // PK
	AcceptedAt   time.Time `dynamodbav:"accepted_at"`
	LegalVersion string    `dynamodbav:"legal_version"`
	Country      string    `dynamodbav:"country,omitempty"`
	UserAgent    string    `dynamodbav:"user_agent,omitempty"`
}

// Fulfillment groups the records written together with the PENDING -> COMPLETED flip.
type Fulfillment struct {
	Token      DownloadToken
	Acceptance TermsAcceptance
}

// Stats aggregates orders per status.
type Stats struct {
	Status     string
	Count      int
	TotalCents int64
}

// Repository is implemented by every order storage backend.
// Lookups return (nil, nil) when the record does not exist.
type Repository interface {
	CreatePending(ctx context.Context, order Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	GetBySession(ctx context.Context, sessionID string) (*Order, error)
	// Complete flips PENDING -> COMPLETED and writes f in the same transaction.
	// It returns ErrStatusMismatch, and writes nothing, if the order is not PENDING.
	Complete(ctx context.Context, orderID string, f Fulfillment) error
	GetToken(ctx context.Context, token string) (*DownloadToken, error)
	TouchToken(ctx context.Context, token string, at time.Time) error
	List(ctx context.Context, status string, limit int) ([]Order, error)
	Stats(ctx context.Context) ([]Stats, error)
}
