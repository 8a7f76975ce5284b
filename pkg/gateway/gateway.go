// Package gateway implements the offline cache gateway: a versioned policy
// object that answers read-only asset requests from named cache partitions
// or the network, and owns the lifecycle of those partitions.
//
// A gateway moves through Uninstalled → Installing → Installed → Active →
// Redundant. Install precaches a fixed manifest, Activate deletes stale
// partitions and starts interception, and Intercept dispatches every GET
// request to one of three strategies selected by resource kind.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
	"github.com/Sternrassler/offline-cache-gateway/pkg/fetch"
	"github.com/Sternrassler/offline-cache-gateway/pkg/logging"
)

// State is a lifecycle state.
type State int

const (
	StateUninstalled State = iota
	StateInstalling
	StateInstalled
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Partition name prefixes; names are <prefix>-<version>.
const (
	StaticPrefix  = "static"
	DynamicPrefix = "dynamic"
)

// Options configures a gateway version.
type Options struct {
	// Version qualifies the partition names
	Version string

	// Store holds the partitions
	Store cache.Store

	// Fetcher performs network requests
	Fetcher fetch.Fetcher

	// Origin resolves relative manifest URLs and origin-form requests
	Origin *url.URL

	// Manifest is precached into the static partition at install
	Manifest []string

	// Media is precached into the dynamic partition at install
	Media []string

	// InstallConcurrency bounds parallel fetches during install
	InstallConcurrency int

	// SkipWaitingOnInstall lets a registration activate this version as
	// soon as it installs, even while pages are still controlled
	SkipWaitingOnInstall bool
}

// Gateway is one version of the offline cache gateway.
type Gateway struct {
	version     string
	staticName  string
	dynamicName string
	store       cache.Store
	fetcher     fetch.Fetcher
	origin      *url.URL
	manifest    []cache.Key
	media       []cache.Key
	concurrency int
	logger      zerolog.Logger

	// phase serializes Install and Activate
	phase sync.Mutex

	mu          sync.RWMutex
	state       State
	skipWaiting bool
	static      cache.Partition
	dynamic     cache.Partition
	promote     func(context.Context, *Gateway) error
}

// New creates an uninstalled gateway version.
func New(opts Options) (*Gateway, error) {
	if opts.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	manifest, err := parseKeys(opts.Manifest, opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	media, err := parseKeys(opts.Media, opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("media: %w", err)
	}

	return &Gateway{
		version:     opts.Version,
		staticName:  StaticPrefix + "-" + opts.Version,
		dynamicName: DynamicPrefix + "-" + opts.Version,
		store:       opts.Store,
		fetcher:     opts.Fetcher,
		origin:      opts.Origin,
		manifest:    manifest,
		media:       media,
		concurrency: opts.InstallConcurrency,
		skipWaiting: opts.SkipWaitingOnInstall,
		logger:      logging.NewLogger("gateway").With().Str("version", opts.Version).Logger(),
	}, nil
}

// parseKeys resolves raw URLs into keys, dropping duplicates.
func parseKeys(raw []string, origin *url.URL) ([]cache.Key, error) {
	seen := make(map[string]bool, len(raw))
	keys := make([]cache.Key, 0, len(raw))
	for _, r := range raw {
		key, err := cache.KeyFromString(r, origin)
		if err != nil {
			return nil, err
		}
		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		keys = append(keys, key)
	}
	return keys, nil
}

// Version returns the gateway version string.
func (g *Gateway) Version() string {
	return g.version
}

// PartitionNames returns the current static and dynamic partition names.
func (g *Gateway) PartitionNames() (static, dynamic string) {
	return g.staticName, g.dynamicName
}

// State returns the lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	prev := g.state
	g.state = s
	g.mu.Unlock()

	if prev != s {
		g.logger.Info().Str("from", prev.String()).Str("state", s.String()).Msg("Gateway state changed")
	}
}

func (g *Gateway) skipWaitingRequested() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.skipWaiting
}

func (g *Gateway) setPromote(fn func(context.Context, *Gateway) error) {
	g.mu.Lock()
	g.promote = fn
	g.mu.Unlock()
}

// markRedundant retires the gateway; it stops intercepting.
func (g *Gateway) markRedundant() {
	g.setState(StateRedundant)
}

// reinstate returns a redundant gateway to Active when both of its
// partitions are still in the store. It reports whether it did.
func (g *Gateway) reinstate(ctx context.Context) bool {
	if g.State() != StateRedundant {
		return false
	}
	for _, name := range []string{g.staticName, g.dynamicName} {
		ok, err := g.store.Has(ctx, name)
		if err != nil || !ok {
			return false
		}
	}

	g.mu.Lock()
	if g.static == nil || g.dynamic == nil {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()
	g.setState(StateActive)
	return true
}

// Intercept answers req from the partitions or the network. The boolean is
// false when the request is not intercepted; the caller must then pass it
// through unmodified. An intercepted request always yields a response.
func (g *Gateway) Intercept(req *http.Request) (*http.Response, bool) {
	if req.Method != http.MethodGet {
		passthroughTotal.WithLabelValues("method").Inc()
		return nil, false
	}

	g.mu.RLock()
	state := g.state
	static, dynamic := g.static, g.dynamic
	g.mu.RUnlock()

	if state != StateActive || static == nil || dynamic == nil {
		passthroughTotal.WithLabelValues("inactive").Inc()
		return nil, false
	}

	target, err := ResolveURL(g.origin, req)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Request URL not resolvable, passing through")
		passthroughTotal.WithLabelValues("url").Inc()
		return nil, false
	}
	key := cache.Key{URL: target}

	kind := Classify(req)
	strategy := StrategyFor(kind)

	resp, source := g.serve(req.Context(), req, key, strategy)
	interceptsTotal.WithLabelValues(strategy.String(), source).Inc()

	g.logger.Debug().
		Str("url", key.String()).
		Str("kind", string(kind)).
		Str("strategy", strategy.String()).
		Str("source", source).
		Int("status", resp.StatusCode).
		Msg("Intercepted request")

	return resp, true
}

// ResolveURL returns the absolute URL req targets. Origin-form requests
// are resolved against origin.
func ResolveURL(origin *url.URL, req *http.Request) (*url.URL, error) {
	if req.URL == nil {
		return nil, fmt.Errorf("request has no url")
	}
	if req.URL.IsAbs() {
		return req.URL, nil
	}
	if origin == nil {
		return nil, fmt.Errorf("relative url %q without origin", req.URL.String())
	}
	return origin.ResolveReference(req.URL), nil
}
