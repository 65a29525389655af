package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/resilience"
	"github.com/sells-group/catalog-cli/internal/store"
	"github.com/sells-group/catalog-cli/internal/vector"
	"github.com/sells-group/catalog-cli/pkg/embed"
)

// Deps are the external collaborators of a run. Openers are called only
// when their stage runs.
type Deps struct {
	OpenStore func(ctx context.Context) (store.Store, error)
	OpenIndex func(ctx context.Context) (vector.Index, error)
	Embedder  vector.Embedder
}

// NewDeps wires the configured store, vector index and embedding client.
// Store connections are retried on transient failures.
func NewDeps(cfg *config.Config) Deps {
	retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)

	embedRetry := retry
	embedRetry.OnRetry = resilience.RetryLogger("embedding", "embed")
	embedder := embed.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model,
		embed.WithAPIKey(cfg.Embedding.APIKey),
		embed.WithRateLimit(cfg.Embedding.RateLimit),
		embed.WithTimeout(time.Duration(cfg.Embedding.TimeoutSecs)*time.Second),
		embed.WithRetry(embedRetry),
	)

	storeRetry := retry
	storeRetry.OnRetry = resilience.RetryLogger("store", "open")
	storeCfg := store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		Pool:        &store.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns},
	}

	return Deps{
		OpenStore: func(ctx context.Context) (store.Store, error) {
			return resilience.DoVal(ctx, storeRetry, func(ctx context.Context) (store.Store, error) {
				return store.Open(ctx, storeCfg)
			})
		},
		OpenIndex: func(ctx context.Context) (vector.Index, error) {
			return vector.OpenSQLite(ctx, cfg.Vector.Dir, cfg.Vector.Collection)
		},
		Embedder: embedder,
	}
}
