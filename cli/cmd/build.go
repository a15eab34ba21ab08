package cmd

import (
	"context"
	"fmt"

	"github.com/pithecene-io/sift/adapter"
	redisadapter "github.com/pithecene-io/sift/adapter/redis"
	"github.com/pithecene-io/sift/adapter/webhook"
	"github.com/pithecene-io/sift/cache"
	"github.com/pithecene-io/sift/config"
	"github.com/pithecene-io/sift/feed"
	"github.com/pithecene-io/sift/iox"
	"github.com/pithecene-io/sift/source"
	"github.com/pithecene-io/sift/store"
)

// decisionStore is the store surface the CLI needs: the feed contract
// plus the maintenance operations (stats, reset).
type decisionStore interface {
	feed.DecisionStore
	Counts(ctx context.Context) (store.Counts, error)
	Reset(ctx context.Context) error
}

// buildSource constructs the asset source for the configured backend.
// Both backends double as media fetchers for the cache.
func buildSource(ctx context.Context, cfg *config.Config) (feed.Source, cache.Fetcher, error) {
	switch cfg.Source.Backend {
	case "", "dir":
		path := cfg.Source.Path
		if path == "" {
			path = "."
		}
		d := source.NewDir(path)
		return d, d, nil

	case "s3":
		s, err := source.NewS3(ctx, source.S3Config{
			Bucket:       cfg.Source.Bucket,
			Prefix:       cfg.Source.Prefix,
			Region:       cfg.Source.Region,
			Endpoint:     cfg.Source.Endpoint,
			UsePathStyle: cfg.Source.S3PathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 source: %w", err)
		}
		return s, s, nil

	default:
		return nil, nil, fmt.Errorf("unknown source backend %q", cfg.Source.Backend)
	}
}

// buildStore constructs the decision store. The returned closer is a
// no-op for the memory backend.
func buildStore(cfg *config.Config) (decisionStore, func(), error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemory(), func() {}, nil

	case "sqlite":
		s, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, iox.CloseFunc(s), nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildAdapter constructs the decision publisher, or nil when no
// adapter is configured.
func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	retries := 0
	if cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch cfg.Adapter.Type {
	case "":
		return nil, nil

	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})

	case "redis":
		return redisadapter.New(redisadapter.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})

	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Adapter.Type)
	}
}
