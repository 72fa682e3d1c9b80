package memory

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-license-orderflow/internal/idempotency"
)

// Idempotency mirrors idempotency.Store semantics in memory.
type Idempotency struct {
	mu      sync.Mutex
	recs    map[string]idempotency.Record
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewIdempotency(ttl time.Duration) *Idempotency {
	return &Idempotency{recs: map[string]idempotency.Record{}, ttl: ttl, nowFunc: time.Now}
}

// live drops the record if its TTL has passed. Caller holds mu.
func (s *Idempotency) live(key string) (idempotency.Record, bool) {
	rec, ok := s.recs[key]
	if ok && rec.ExpiresAt <= s.nowFunc().Unix() {
		delete(s.recs, key)
		return rec, false
	}
	return rec, ok
}

func (s *Idempotency) Begin(ctx context.Context, key, requestHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	rec, ok := s.live(key)
	if !ok {
		s.recs[key] = idempotency.Record{
			Key:         key,
			Status:      idempotency.StatusInProgress,
			RequestHash: requestHash,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(s.ttl).Unix(),
		}
		return true, nil
	}
	if rec.Status == idempotency.StatusFailed && rec.RequestHash == requestHash {
		rec.Status = idempotency.StatusInProgress
		rec.UpdatedAt = now
		s.recs[key] = rec
		return true, nil
	}
	return false, nil
}

func (s *Idempotency) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Idempotency) MarkDone(ctx context.Context, key, orderID, checkoutURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	if !ok {
		return nil
	}
	rec.Status = idempotency.StatusDone
	rec.OrderID = orderID
	rec.CheckoutURL = checkoutURL
	rec.UpdatedAt = s.nowFunc()
	s.recs[key] = rec
	return nil
}

func (s *Idempotency) MarkFailed(ctx context.Context, key, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	if !ok {
		return nil
	}
	rec.Status = idempotency.StatusFailed
	rec.Reason = reason
	rec.UpdatedAt = s.nowFunc()
	s.recs[key] = rec
	return nil
}
