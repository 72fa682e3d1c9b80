package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
)

// CatalogRepository implements catalog.Repository on Postgres.
type CatalogRepository struct {
	q querier
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{q: querier{pool: pool}}
}

var _ catalog.Repository = (*CatalogRepository)(nil)

func (r *CatalogRepository) Get(ctx context.Context, itemID string) (*catalog.Item, error) {
	var it catalog.Item
	err := r.q.queryRow(ctx, `
SELECT item_id, title, artist_name, slug, price_cents, active, audio_key, tags
FROM catalog_items
WHERE item_id = $1`, itemID).
		Scan(&it.ItemID, &it.Title, &it.ArtistName, &it.Slug, &it.PriceCents, &it.Active, &it.AudioKey, &it.Tags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return &it, nil
}

func (r *CatalogRepository) Put(ctx context.Context, it catalog.Item) error {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	const stmt = `
INSERT INTO catalog_items (item_id, title, artist_name, slug, price_cents, active, audio_key, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (item_id) DO UPDATE SET
	title = EXCLUDED.title,
	artist_name = EXCLUDED.artist_name,
	slug = EXCLUDED.slug,
	price_cents = EXCLUDED.price_cents,
	active = EXCLUDED.active,
	audio_key = EXCLUDED.audio_key,
	tags = EXCLUDED.tags`
	if _, err := r.q.exec(ctx, stmt, it.ItemID, it.Title, it.ArtistName, it.Slug, it.PriceCents, it.Active, it.AudioKey, tags); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("slug %q already used by another item: %w", it.Slug, err)
		}
		return fmt.Errorf("put catalog item: %w", err)
	}
	return nil
}
