package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imrishuroy/go-license-orderflow/internal/orders"
)

// OrderRepository implements orders.Repository on Postgres.
type OrderRepository struct {
	pool    *pgxpool.Pool
	q       querier
	nowFunc func() time.Time
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, q: querier{pool: pool}, nowFunc: time.Now}
}

var _ orders.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) CreatePending(ctx context.Context, o orders.Order) error {
	now := r.nowFunc().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}

	return withTx(ctx, r.pool, func(ctx context.Context) error {
		const stmt = `
INSERT INTO orders (order_id, session_id, customer_email, status, total_cents, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err := r.q.exec(ctx, stmt, o.OrderID, o.SessionID, o.CustomerEmail, orders.StatusPending, o.TotalCents, o.CreatedAt, now)
		if err != nil {
			if isUniqueViolation(err) {
				return orders.ErrDuplicateSession
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, it := range o.Items {
			const itemStmt = `
INSERT INTO order_items (order_id, position, item_id, license_type, price_cents)
VALUES ($1, $2, $3, $4, $5)`
			if _, err := r.q.exec(ctx, itemStmt, o.OrderID, i, it.ItemID, it.LicenseType, it.PriceCents); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

const orderColumns = `order_id, session_id, customer_email, status, total_cents, COALESCE(download_token, ''), created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.OrderID, &o.SessionID, &o.CustomerEmail, &o.Status, &o.TotalCents,
		&o.DownloadToken, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt)
	return o, err
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	return r.getWhere(ctx, `order_id = $1`, orderID)
}

func (r *OrderRepository) GetBySession(ctx context.Context, sessionID string) (*orders.Order, error) {
	return r.getWhere(ctx, `session_id = $1`, sessionID)
}

func (r *OrderRepository) getWhere(ctx context.Context, where string, arg string) (*orders.Order, error) {
	o, err := scanOrder(r.q.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	list := []orders.Order{o}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *OrderRepository) loadItems(ctx context.Context, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.OrderID
		index[o.OrderID] = i
	}

	rows, err := r.q.query(ctx, `
SELECT order_id, item_id, license_type, price_cents
FROM order_items
WHERE order_id = ANY($1)
ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var it orders.OrderItem
		if err := rows.Scan(&orderID, &it.ItemID, &it.LicenseType, &it.PriceCents); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderID]
		list[i].Items = append(list[i].Items, it)
	}
	return rows.Err()
}

func (r *OrderRepository) Complete(ctx context.Context, orderID string, f orders.Fulfillment) error {
	now := r.nowFunc().UTC()

	return withTx(ctx, r.pool, func(ctx context.Context) error {
		const flip = `
UPDATE orders
SET status = $2, completed_at = $3, updated_at = $3, download_token = $4
WHERE order_id = $1 AND status = $5`
		tag, err := r.q.exec(ctx, flip, orderID, orders.StatusCompleted, now, f.Token.Token, orders.StatusPending)
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return orders.ErrStatusMismatch
		}

		const tokenStmt = `
INSERT INTO download_tokens (token, order_id, expires_at, created_at)
VALUES ($1, $2, $3, $4)`
		if _, err := r.q.exec(ctx, tokenStmt, f.Token.Token, orderID, f.Token.ExpiresAt, f.Token.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return orders.ErrTokenCollision
			}
			return fmt.Errorf("insert download token: %w", err)
		}

		const acceptStmt = `
INSERT INTO terms_acceptances (order_id, accepted_at, legal_version, country, user_agent)
VALUES ($1, $2, $3, $4, $5)`
		a := f.Acceptance
		if _, err := r.q.exec(ctx, acceptStmt, orderID, a.AcceptedAt, a.LegalVersion, a.Country, a.UserAgent); err != nil {
			return fmt.Errorf("insert terms acceptance: %w", err)
		}
		return nil
	})
}

func (r *OrderRepository) GetToken(ctx context.Context, token string) (*orders.DownloadToken, error) {
	var t orders.DownloadToken
	err := r.q.queryRow(ctx, `
SELECT token, order_id, expires_at, created_at, last_used_at
FROM download_tokens
WHERE token = $1`, token).Scan(&t.Token, &t.OrderID, &t.ExpiresAt, &t.CreatedAt, &t.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get download token: %w", err)
	}
	return &t, nil
}

func (r *OrderRepository) TouchToken(ctx context.Context, token string, at time.Time) error {
	const stmt = `
UPDATE download_tokens
SET last_used_at = $2
WHERE token = $1 AND (last_used_at IS NULL OR last_used_at < $2)`
	if _, err := r.q.exec(ctx, stmt, token, at); err != nil {
		return fmt.Errorf("touch download token: %w", err)
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, status string, limit int) ([]orders.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepository) Stats(ctx context.Context) ([]orders.Stats, error) {
	rows, err := r.q.query(ctx, `
SELECT status, COUNT(*), COALESCE(SUM(total_cents), 0)
FROM orders
GROUP BY status
ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	var out []orders.Stats
	for rows.Next() {
		var s orders.Stats
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalCents); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Acceptance returns the terms acceptance recorded for an order, if any.
func (r *OrderRepository) Acceptance(ctx context.Context, orderID string) (*orders.TermsAcceptance, error) {
	var a orders.TermsAcceptance
	err := r.q.queryRow(ctx, `
SELECT order_id, accepted_at, legal_version, country, user_agent
FROM terms_acceptances
WHERE order_id = $1`, orderID).Scan(&a.OrderID, &a.AcceptedAt, &a.LegalVersion, &a.Country, &a.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get terms acceptance: %w", err)
	}
	return &a, nil
}
