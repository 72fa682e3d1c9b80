package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imrishuroy/go-license-orderflow/internal/idempotency"
)

// IdempotencyRepository stores checkout idempotency keys. Expired rows are
// treated as absent and overwritten by the next Begin.
type IdempotencyRepository struct {
	q       querier
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewIdempotencyRepository(pool *pgxpool.Pool, ttl time.Duration) *IdempotencyRepository {
	return &IdempotencyRepository{q: querier{pool: pool}, ttl: ttl, nowFunc: time.Now}
}

func (r *IdempotencyRepository) Begin(ctx context.Context, key, requestHash string) (bool, error) {
	now := r.nowFunc().UTC()
	const stmt = `
INSERT INTO idempotency_keys (idempotency_key, status, request_hash, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $4, $5)
ON CONFLICT (idempotency_key) DO UPDATE SET
	status = EXCLUDED.status,
	request_hash = EXCLUDED.request_hash,
	order_id = '',
	checkout_url = '',
	reason = '',
	updated_at = EXCLUDED.updated_at,
	expires_at = EXCLUDED.expires_at
WHERE (idempotency_keys.status = $6 AND idempotency_keys.request_hash = EXCLUDED.request_hash)
	OR idempotency_keys.expires_at <= EXCLUDED.created_at
RETURNING idempotency_key`

	var got string
	err := r.q.queryRow(ctx, stmt, key, idempotency.StatusInProgress, requestHash, now, now.Add(r.ttl), idempotency.StatusFailed).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("begin idempotency key: %w", err)
	}
	return true, nil
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var rec idempotency.Record
	var expires time.Time
	err := r.q.queryRow(ctx, `
SELECT idempotency_key, status, request_hash, order_id, checkout_url, reason, created_at, updated_at, expires_at
FROM idempotency_keys
WHERE idempotency_key = $1 AND expires_at > $2`, key, r.nowFunc().UTC()).
		Scan(&rec.Key, &rec.Status, &rec.RequestHash, &rec.OrderID, &rec.CheckoutURL,
			&rec.Reason, &rec.CreatedAt, &rec.UpdatedAt, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	rec.ExpiresAt = expires.Unix()
	return &rec, nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key, orderID, checkoutURL string) error {
	const stmt = `
UPDATE idempotency_keys
SET status = $2, order_id = $3, checkout_url = $4, updated_at = $5
WHERE idempotency_key = $1`
	if _, err := r.q.exec(ctx, stmt, key, idempotency.StatusDone, orderID, checkoutURL, r.nowFunc().UTC()); err != nil {
		return fmt.Errorf("mark idempotency key done: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key, reason string) error {
	const stmt = `
UPDATE idempotency_keys
SET status = $2, reason = $3, updated_at = $4
WHERE idempotency_key = $1`
	if _, err := r.q.exec(ctx, stmt, key, idempotency.StatusFailed, reason, r.nowFunc().UTC()); err != nil {
		return fmt.Errorf("mark idempotency key failed: %w", err)
	}
	return nil
}
