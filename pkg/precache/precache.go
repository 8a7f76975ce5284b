// Package precache fetches a fixed list of URLs in parallel and captures
// every response, all or nothing.
//
// Example usage:
//
//	bf := precache.NewBatchFetcher(fetcher, precache.DefaultConfig())
//	results, err := bf.FetchAll(ctx, keys)
//	if err != nil {
//		// nothing was captured; no partial results are returned
//	}
//
// The batch fetcher:
//   - Runs at most MaxConcurrency fetches at a time
//   - Cancels outstanding fetches on the first failure
//   - Treats transport errors and non-2xx statuses alike as failures
//   - Returns results in input order
package precache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
	"github.com/Sternrassler/offline-cache-gateway/pkg/fetch"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 6,
	}
}

// Result is the captured response for one URL
type Result struct {
	Key   cache.Key
	Entry *cache.Entry
}

// Failure describes the URL that failed a batch
type Failure struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("precache %s: %v", f.URL, f.Err)
	}
	return fmt.Sprintf("precache %s: unexpected status %d", f.URL, f.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}

// BatchFetcher fetches URL lists in parallel
type BatchFetcher struct {
	fetcher fetch.Fetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher fetch.Fetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every key and returns the captured entries in input order.
// Any failure aborts the batch and returns a *Failure with no results.
func (bf *BatchFetcher) FetchAll(ctx context.Context, keys []cache.Key) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(keys))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(bf.config.MaxConcurrency)

	for i, key := range keys {
		eg.Go(func() error {
			entry, err := bf.fetchOne(egCtx, key)
			if err != nil {
				return err
			}
			// Each goroutine owns its own slot
			results[i] = Result{Key: key, Entry: entry}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("urls", len(keys)).
			Dur("duration", time.Since(start)).
			Msg("Precache failed")
		return nil, err
	}

	log.Debug().
		Int("urls", len(keys)).
		Dur("duration", time.Since(start)).
		Msg("Precache complete")

	return results, nil
}

func (bf *BatchFetcher) fetchOne(ctx context.Context, key cache.Key) (*cache.Entry, error) {
	url := key.URL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Failure{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := bf.fetcher.Do(req)
	if err != nil {
		return nil, &Failure{URL: url, Err: err}
	}

	// A partial body is never a complete asset
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.StatusCode == http.StatusPartialContent {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &Failure{URL: url, StatusCode: resp.StatusCode}
	}

	// ResponseToEntry drains and closes the body
	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, &Failure{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return entry, nil
}
