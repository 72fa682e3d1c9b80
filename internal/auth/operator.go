package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
)

const operatorRole = "operator"

// OperatorAuthenticator exchanges the operator password for short-lived HS256
// session tokens and verifies them on admin requests.
type OperatorAuthenticator struct {
	passwordHash []byte
	secret       []byte
	issuer       string
	ttl          time.Duration
	nowFunc      func() time.Time
}

func NewOperatorAuthenticator(passwordHash, secret, issuer string, ttl time.Duration) *OperatorAuthenticator {
	return &OperatorAuthenticator{
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		issuer:       issuer,
		ttl:          ttl,
		nowFunc:      time.Now,
	}
}

type operatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Login compares password with the configured bcrypt hash and issues a token.
func (a *OperatorAuthenticator) Login(password string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", time.Time{}, apperr.Unauthorized("invalid credentials")
		}
		return "", time.Time{}, apperr.New(apperr.KindUnauthorized, "invalid credentials", err)
	}

	now := a.nowFunc()
	exp := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, operatorClaims{
		Role: operatorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    a.issuer,
			Subject:   operatorRole,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign operator token: %w", err)
	}
	return signed, exp, nil
}

// Verify validates a bearer token issued by Login.
func (a *OperatorAuthenticator) Verify(raw string) error {
	if raw == "" {
		return apperr.Unauthorized("unauthorized")
	}
	parsed, err := jwt.ParseWithClaims(raw, &operatorClaims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.nowFunc),
	)
	if err != nil {
		return apperr.New(apperr.KindUnauthorized, "unauthorized", err)
	}
	claims, ok := parsed.Claims.(*operatorClaims)
	if !ok || !parsed.Valid || claims.Role != operatorRole {
		return apperr.Unauthorized("unauthorized")
	}
	return nil
}
