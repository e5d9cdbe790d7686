package items

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
)

// URLCache stores signed URLs keyed by blob path. pkg/redis.Client satisfies it.
type URLCache interface {
	CachedURL(ctx context.Context, path string) (string, bool, error)
	CacheURL(ctx context.Context, path, url string, ttl time.Duration) error
}

type urlSigner interface {
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ImageRef pairs an id with the blob path to sign for it.
type ImageRef struct {
	ID   uuid.UUID
	Path string
}

type enricher struct {
	signer  urlSigner
	cache   URLCache
	ttl     time.Duration
	margin  time.Duration
	logg    *logger.Logger
	metrics *metrics.SaveMetrics
}

func newEnricher(signer urlSigner, cache URLCache, ttl, margin time.Duration, logg *logger.Logger, m *metrics.SaveMetrics) *enricher {
	return &enricher{signer: signer, cache: cache, ttl: ttl, margin: margin, logg: logg, metrics: m}
}

// SignedURLs yields (id, url) for each ref in order. A ref that cannot be
// signed yields a nil url; failures are logged and counted once the sequence
// ends. Each range over the result signs again.
func (e *enricher) SignedURLs(ctx context.Context, scope string, refs []ImageRef) iter.Seq2[uuid.UUID, *string] {
	return func(yield func(uuid.UUID, *string) bool) {
		var errs error
		defer func() { e.report(ctx, scope, errs) }()

		for _, ref := range refs {
			if ref.Path == "" {
				if !yield(ref.ID, nil) {
					return
				}
				continue
			}
			signed, err := e.sign(ctx, ref.Path)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", ref.ID, err))
				if !yield(ref.ID, nil) {
					return
				}
				continue
			}
			if !yield(ref.ID, &signed) {
				return
			}
		}
	}
}

func (e *enricher) sign(ctx context.Context, path string) (string, error) {
	cacheTTL := e.ttl - e.margin
	useCache := e.cache != nil && cacheTTL > 0
	if useCache {
		// a cache error counts as a miss
		if cached, ok, err := e.cache.CachedURL(ctx, path); err == nil && ok && cached != "" {
			e.metrics.IncURLCache(true)
			return cached, nil
		}
		e.metrics.IncURLCache(false)
	}

	signed, err := e.signer.SignedURL(ctx, path, e.ttl)
	if err != nil {
		return "", err
	}
	if useCache {
		if err := e.cache.CacheURL(ctx, path, signed, cacheTTL); err != nil && e.logg != nil {
			e.logg.Debug(e.logg.WithField(ctx, "error", err.Error()), "signed url cache write failed")
		}
	}
	return signed, nil
}

func (e *enricher) report(ctx context.Context, scope string, errs error) {
	failures := multierr.Errors(errs)
	if len(failures) == 0 {
		return
	}
	e.metrics.AddEnrichmentFailures(scope, len(failures))
	if e.logg == nil {
		return
	}
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"scope":    scope,
		"failures": len(failures),
		"error":    errs.Error(),
	})
	e.logg.Warn(logCtx, "signed url enrichment incomplete")
}

// collect drains a sequence into a map; absent urls are skipped.
func collect(seq iter.Seq2[uuid.UUID, *string]) map[uuid.UUID]string {
	out := map[uuid.UUID]string{}
	for id, u := range seq {
		if u != nil {
			out[id] = *u
		}
	}
	return out
}
