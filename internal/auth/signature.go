package auth

import (
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
)

// SignatureVerifier authenticates payment gateway notifications.
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &SignatureVerifier{secret: secret, tolerance: tolerance}
}

// Verify checks the HMAC-SHA256 signature of payload and the freshness of its
// timestamp. It runs on the raw bytes and must be called before any parsing.
func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if header == "" {
		return apperr.Unauthorized("invalid signature")
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance); err != nil {
		return apperr.New(apperr.KindUnauthorized, "invalid signature", err)
	}
	return nil
}
