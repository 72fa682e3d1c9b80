package download

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
	"github.com/imrishuroy/go-license-orderflow/internal/blob"
	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
	"github.com/imrishuroy/go-license-orderflow/internal/orders"
)

// Tokens is the persistence the gate reads.
type Tokens interface {
	GetToken(ctx context.Context, token string) (*orders.DownloadToken, error)
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	TouchToken(ctx context.Context, token string, at time.Time) error
}

// File is an open licensed file. Callers must Close Body.
type File struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	Filename      string
}

// Link is a short-lived direct URL to the licensed file.
type Link struct {
	URL       string
	ExpiresAt time.Time
	Filename  string
}

// DefaultLinkTTL bounds how long a direct link outlives the request that issued it.
const DefaultLinkTTL = 5 * time.Minute

// Gate authorizes download tokens and opens the purchased file.
type Gate struct {
	tokens  Tokens
	catalog catalog.Reader
	blobs   blob.Store
	metrics metrics.Recorder
	linkTTL time.Duration
	nowFunc func() time.Time
}

// NewGate builds the Download Access Gate over the order store, catalog and blob storage.
func NewGate(tokens Tokens, items catalog.Reader, blobs blob.Store, rec metrics.Recorder) *Gate {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Gate{tokens: tokens, catalog: items, blobs: blobs, metrics: rec, linkTTL: DefaultLinkTTL, nowFunc: time.Now}
}

// WithLinkTTL sets the lifetime of links issued by Link. Non-positive values keep the default.
func (g *Gate) WithLinkTTL(d time.Duration) *Gate {
	if d > 0 {
		g.linkTTL = d
	}
	return g
}

type grant struct {
	token orders.DownloadToken
	order *orders.Order
	item  *catalog.Item
	now   time.Time
}

// authorize checks, in order, that the token exists, has not expired and
// belongs to a completed order, then resolves the purchased item.
func (g *Gate) authorize(ctx context.Context, token string) (grant, error) {
	now := g.nowFunc()

	tok, err := g.tokens.GetToken(ctx, token)
	if err != nil {
		return grant{}, apperr.Transient("download unavailable", err)
	}
	if tok == nil {
		return grant{}, apperr.NotFound("download token not found")
	}
	if tok.Expired(now) {
		g.metrics.Count(ctx, metrics.DownloadTokenExpired)
		return grant{}, apperr.Gone("download token has expired")
	}

	order, err := g.tokens.Get(ctx, tok.OrderID)
	if err != nil {
		return grant{}, apperr.Transient("download unavailable", err)
	}
	if order == nil || order.Status != orders.StatusCompleted {
		return grant{}, apperr.InvalidState("order is not completed")
	}

	line, ok := order.PrimaryItem()
	if !ok {
		return grant{}, apperr.NotFound("no track found in order")
	}
	item, err := g.catalog.Get(ctx, line.ItemID)
	if err != nil {
		return grant{}, apperr.Transient("download unavailable", err)
	}
	if item == nil || item.AudioKey == "" {
		return grant{}, apperr.NotFound("track audio file not available")
	}
	return grant{token: *tok, order: order, item: item, now: now}, nil
}

func (g *Gate) blobError(ctx context.Context, gr grant, err error) error {
	if errors.Is(err, blob.ErrNotFound) {
		logging.FromCtx(ctx).Error("licensed file missing", "order_id", gr.order.OrderID, "item_id", gr.item.ItemID)
		return apperr.NotFound("file not found")
	}
	return apperr.Transient("download unavailable", err)
}

// served records the use. last_used_at is advisory, so failures are only logged.
func (g *Gate) served(ctx context.Context, gr grant, mode string) {
	log := logging.FromCtx(ctx)
	if err := g.tokens.TouchToken(ctx, gr.token.Token, gr.now.UTC()); err != nil {
		log.Warn("record token use", "order_id", gr.order.OrderID, "err", err)
	}
	g.metrics.Count(ctx, metrics.DownloadServed)
	log.Info("download served", "order_id", gr.order.OrderID, "mode", mode)
}

// Open authorizes token and opens the file for streaming. Tokens are reusable until they expire.
func (g *Gate) Open(ctx context.Context, token string) (*File, error) {
	gr, err := g.authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	obj, err := g.blobs.Open(ctx, gr.item.AudioKey)
	if err != nil {
		return nil, g.blobError(ctx, gr, err)
	}
	g.served(ctx, gr, "stream")

	return &File{
		Body:          obj.Body,
		ContentLength: obj.ContentLength,
		ContentType:   obj.ContentType,
		Filename:      gr.item.DownloadName(),
	}, nil
}

// Link authorizes token like Open but returns a direct link from blob storage,
// which then serves the bytes. The link never outlives the token.
func (g *Gate) Link(ctx context.Context, token string) (*Link, error) {
	linker, ok := g.blobs.(blob.Linker)
	if !ok {
		return nil, apperr.Transient("download unavailable", errors.New("blob store cannot issue links"))
	}

	gr, err := g.authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	ttl := g.linkTTL
	if left := gr.token.ExpiresAt.Sub(gr.now); left < ttl {
		ttl = left
	}
	name := gr.item.DownloadName()
	url, err := linker.Link(ctx, gr.item.AudioKey, name, ttl)
	if err != nil {
		return nil, g.blobError(ctx, gr, err)
	}
	g.served(ctx, gr, "link")

	return &Link{URL: url, ExpiresAt: gr.now.Add(ttl), Filename: name}, nil
}
