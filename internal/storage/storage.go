// Package storage selects the persistence backend named in configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/go-license-orderflow/internal/aws"
	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
	"github.com/imrishuroy/go-license-orderflow/internal/checkout"
	"github.com/imrishuroy/go-license-orderflow/internal/config"
	"github.com/imrishuroy/go-license-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-license-orderflow/internal/orders"
	"github.com/imrishuroy/go-license-orderflow/internal/storage/memory"
	"github.com/imrishuroy/go-license-orderflow/internal/storage/postgres"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Backends are the repositories the services run on.
type Backends struct {
	Orders      orders.Repository
	Catalog     catalog.Repository
	Idempotency checkout.Idempotency
	closeFn     func()
}

// Close releases connections held by the backend.
func (b *Backends) Close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

// Open builds the repositories for cfg.Store.Backend. dynamo is only used by
// the dynamodb backend.
func Open(ctx context.Context, cfg config.Config, dynamo aws.DynamoDBScanAPI, log *slog.Logger) (*Backends, error) {
	switch cfg.Store.Backend {
	case BackendDynamoDB:
		if dynamo == nil {
			return nil, fmt.Errorf("dynamodb backend requires a client")
		}
		return &Backends{
			Orders: orders.NewStore(dynamo, orders.Tables{
				Orders:      cfg.Tables.Orders,
				Sessions:    cfg.Tables.Sessions,
				Tokens:      cfg.Tables.Tokens,
				Acceptances: cfg.Tables.Acceptances,
			}),
			Catalog:     catalog.NewStore(dynamo, cfg.Tables.Catalog),
			Idempotency: idempotency.NewStore(dynamo, cfg.Tables.Idempotency, cfg.Idempotency.TTL),
		}, nil

	case BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Backends{
			Orders:      postgres.NewOrderRepository(pool),
			Catalog:     postgres.NewCatalogRepository(pool),
			Idempotency: postgres.NewIdempotencyRepository(pool, cfg.Idempotency.TTL),
			closeFn:     pool.Close,
		}, nil

	case BackendMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		return &Backends{
			Orders:      memory.NewOrders(),
			Catalog:     memory.NewCatalog(),
			Idempotency: memory.NewIdempotency(cfg.Idempotency.TTL),
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
