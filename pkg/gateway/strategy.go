package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
)

// Strategy is a retrieval policy.
type Strategy int

const (
	// CacheFirstWithFallback answers from the dynamic partition, then the
	// network, then a placeholder.
	CacheFirstWithFallback Strategy = iota

	// CacheFirst answers from the static partition, then the network.
	CacheFirst

	// NetworkFirst answers from the network, then any partition.
	NetworkFirst
)

func (s Strategy) String() string {
	switch s {
	case CacheFirstWithFallback:
		return "cache_first_with_fallback"
	case CacheFirst:
		return "cache_first"
	case NetworkFirst:
		return "network_first"
	default:
		return "unknown"
	}
}

// StrategyFor maps a resource kind to its strategy.
func StrategyFor(kind ResourceKind) Strategy {
	switch kind {
	case KindImage:
		return CacheFirstWithFallback
	case KindScript, KindStyle:
		return CacheFirst
	default:
		return NetworkFirst
	}
}

// CacheDateHeader is stamped on images stored by the image strategy, in
// CacheDateLayout.
const (
	CacheDateHeader = "Sw-Cache-Date"
	CacheDateLayout = "2006-01-02T15:04:05.000Z"
)

// Outcome labels for gateway_intercepts_total.
const (
	sourceCache       = "cache"
	sourceNetwork     = "network"
	sourcePlaceholder = "placeholder"
	sourceNotFound    = "not_found"
	sourceFallback    = "fallback_cache"
)

func (g *Gateway) serve(ctx context.Context, req *http.Request, key cache.Key, strategy Strategy) (*http.Response, string) {
	switch strategy {
	case CacheFirstWithFallback:
		return g.cacheFirstWithFallback(ctx, req, key)
	case CacheFirst:
		return g.cacheFirst(ctx, req, key)
	default:
		return g.networkFirst(ctx, req, key)
	}
}

func (g *Gateway) cacheFirstWithFallback(ctx context.Context, req *http.Request, key cache.Key) (*http.Response, string) {
	if resp := g.lookup(ctx, g.dynamic, req, key); resp != nil {
		return resp, sourceCache
	}

	resp, err := g.fetcher.Do(networkRequest(ctx, req, key))
	if err != nil {
		g.logger.Warn().Err(err).Str("url", key.String()).Msg("Image fetch failed, serving placeholder")
		return placeholderResponse(req), sourcePlaceholder
	}

	if storable(resp) {
		g.capture(ctx, g.dynamic, key, resp, func(e *cache.Entry) {
			e.Headers.Set(CacheDateHeader, time.Now().UTC().Format(CacheDateLayout))
		})
	}
	return resp, sourceNetwork
}

func (g *Gateway) cacheFirst(ctx context.Context, req *http.Request, key cache.Key) (*http.Response, string) {
	if resp := g.lookup(ctx, g.static, req, key); resp != nil {
		return resp, sourceCache
	}

	resp, err := g.fetcher.Do(networkRequest(ctx, req, key))
	if err != nil {
		g.logger.Warn().Err(err).Str("url", key.String()).Msg("Static resource fetch failed")
		return notAvailableResponse(req, resourceNotAvailable), sourceNotFound
	}

	if storable(resp) {
		g.capture(ctx, g.static, key, resp, nil)
	}
	return resp, sourceNetwork
}

func (g *Gateway) networkFirst(ctx context.Context, req *http.Request, key cache.Key) (*http.Response, string) {
	resp, err := g.fetcher.Do(networkRequest(ctx, req, key))
	if err == nil {
		if storable(resp) {
			g.capture(ctx, g.static, key, resp, nil)
		}
		return resp, sourceNetwork
	}

	g.logger.Warn().Err(err).Str("url", key.String()).Msg("Page fetch failed, trying caches")

	entry, matchErr := g.store.Match(ctx, key)
	if matchErr == nil {
		return cache.EntryToResponse(entry, req), sourceFallback
	}
	if !errors.Is(matchErr, cache.ErrCacheMiss) {
		g.logger.Warn().Err(matchErr).Str("url", key.String()).Msg("Cache lookup failed")
	}
	return notAvailableResponse(req, pageNotAvailable), sourceNotFound
}

// lookup returns the stored response or nil. Store errors count as misses.
func (g *Gateway) lookup(ctx context.Context, p cache.Partition, req *http.Request, key cache.Key) *http.Response {
	entry, err := p.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			g.logger.Warn().Err(err).Str("partition", p.Name()).Str("url", key.String()).Msg("Cache lookup failed")
		}
		return nil
	}
	g.logger.Debug().Str("partition", p.Name()).Str("url", key.String()).Msg("Cache hit")
	return cache.EntryToResponse(entry, req)
}

// capture stores a snapshot of resp; resp stays readable for the caller.
// mutate, when set, adjusts the snapshot only.
func (g *Gateway) capture(ctx context.Context, p cache.Partition, key cache.Key, resp *http.Response, mutate func(*cache.Entry)) {
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		g.logger.Warn().Err(err).Str("url", key.String()).Msg("Failed to capture response")
		return
	}

	if entry.Headers == nil {
		entry.Headers = http.Header{}
	}
	if mutate != nil {
		mutate(entry)
	}

	if err := p.Put(ctx, key, entry); err != nil {
		if errors.Is(err, cache.ErrPartitionDeleted) {
			g.logger.Debug().Str("partition", p.Name()).Str("url", key.String()).Msg("Partition deleted, response not cached")
			return
		}
		g.logger.Warn().Err(err).Str("partition", p.Name()).Str("url", key.String()).Msg("Failed to cache response")
		return
	}
	g.logger.Debug().Str("partition", p.Name()).Str("url", key.String()).Msg("Cached response")
}

// storable reports whether resp may be stored under the full URL. Partial
// content answers a Range request and never represents the whole asset.
func storable(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		resp.StatusCode != http.StatusPartialContent
}

// networkRequest derives the outbound request for key from the intercepted one.
func networkRequest(ctx context.Context, req *http.Request, key cache.Key) *http.Request {
	out := req.Clone(ctx)
	out.URL = key.URL
	out.Host = ""
	out.RequestURI = ""
	return out
}
