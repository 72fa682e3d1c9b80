package idempotency

import "time"

// Checkout attempt states. FAILED keys may be reclaimed by a retry of the same request.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is one checkout attempt keyed by the client's Idempotency-Key.
type Record struct {
	Key         string    `dynamodbav:"idempotency_key"` // PK
	Status      string    `dynamodbav:"status"`
	RequestHash string    `dynamodbav:"request_hash"` // item, email, license tier
	OrderID     string    `dynamodbav:"order_id,omitempty"`
	CheckoutURL string    `dynamodbav:"checkout_url,omitempty"`
	Reason      string    `dynamodbav:"reason,omitempty"` // error kind of the last failed attempt
	CreatedAt   time.Time `dynamodbav:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at"`
	ExpiresAt   int64     `dynamodbav:"expires_at"` // table TTL attribute, epoch seconds
}

// Replayable reports whether the record holds a finished checkout that can be returned again.
func (r Record) Replayable() bool {
	return r.Status == StatusDone && r.OrderID != "" && r.CheckoutURL != ""
}
