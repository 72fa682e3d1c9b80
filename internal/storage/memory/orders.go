// Package memory holds process-local storage backends for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/imrishuroy/go-license-orderflow/internal/orders"
)

// Orders implements orders.Repository with the same conditional semantics as the durable stores.
type Orders struct {
	mu          sync.Mutex
	orders      map[string]orders.Order
	sessions    map[string]string
	tokens      map[string]orders.DownloadToken
	acceptances map[string]orders.TermsAcceptance
	writes      int
	nowFunc     func() time.Time
}

func NewOrders() *Orders {
	return &Orders{
		orders:      map[string]orders.Order{},
		sessions:    map[string]string{},
		tokens:      map[string]orders.DownloadToken{},
		acceptances: map[string]orders.TermsAcceptance{},
		nowFunc:     time.Now,
	}
}

func (s *Orders) CreatePending(ctx context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[o.SessionID]; ok {
		return orders.ErrDuplicateSession
	}
	if _, ok := s.orders[o.OrderID]; ok {
		return orders.ErrDuplicateSession
	}
	now := s.nowFunc().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.Status = orders.StatusPending
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	s.orders[o.OrderID] = o
	s.sessions[o.SessionID] = o.OrderID
	s.writes++
	return nil
}

func (s *Orders) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *Orders) GetBySession(ctx context.Context, sessionID string) (*orders.Order, error) {
	s.mu.Lock()
	id, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func (s *Orders) Complete(ctx context.Context, orderID string, f orders.Fulfillment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != orders.StatusPending {
		return orders.ErrStatusMismatch
	}
	if _, dup := s.tokens[f.Token.Token]; dup {
		return orders.ErrTokenCollision
	}
	now := s.nowFunc().UTC()
	o.Status = orders.StatusCompleted
	o.CompletedAt = &now
	o.UpdatedAt = now
	o.DownloadToken = f.Token.Token
	s.orders[orderID] = o
	s.tokens[f.Token.Token] = f.Token
	s.acceptances[orderID] = f.Acceptance
	s.writes += 3
	return nil
}

func (s *Orders) GetToken(ctx context.Context, token string) (*orders.DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Orders) TouchToken(ctx context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil
	}
	if t.LastUsedAt != nil && !t.LastUsedAt.Before(at) {
		return nil
	}
	t.LastUsedAt = &at
	s.tokens[token] = t
	s.writes++
	return nil
}

func (s *Orders) List(ctx context.Context, status string, limit int) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Orders) Stats(ctx context.Context) ([]orders.Stats, error) {
	all, _ := s.List(ctx, "", 0)
	return orders.Aggregate(all), nil
}

// Acceptance returns the stored terms acceptance for an order.
func (s *Orders) Acceptance(orderID string) (orders.TermsAcceptance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.acceptances[orderID]
	return a, ok
}

// Counts reports how many tokens and acceptances exist.
func (s *Orders) Counts() (tokens, acceptances int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens), len(s.acceptances)
}

// Writes is the number of successful mutations so far.
func (s *Orders) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
