package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/offline-cache-gateway/pkg/fetch"
	"github.com/Sternrassler/offline-cache-gateway/pkg/logging"
)

// Registration coordinates gateway versions for one origin. At most one
// version is active and at most one is waiting.
type Registration struct {
	origin  *url.URL
	fetcher fetch.Fetcher
	logger  zerolog.Logger

	// swap serializes promotions
	swap sync.Mutex

	mu      sync.RWMutex
	active  *Gateway
	waiting *Gateway
	clients int
}

// NewRegistration creates an empty registration. Requests that no gateway
// intercepts are forwarded through fetcher.
func NewRegistration(origin *url.URL, fetcher fetch.Fetcher) *Registration {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	return &Registration{
		origin:  origin,
		fetcher: fetcher,
		logger:  logging.NewLogger("registration"),
	}
}

// Active returns the version serving traffic, or nil.
func (r *Registration) Active() *Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Waiting returns the installed version awaiting activation, or nil.
func (r *Registration) Waiting() *Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

// Clients returns the number of controlled pages.
func (r *Registration) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients
}

// Register installs g. On failure the active version keeps control. On
// success g becomes the waiting version and is activated right away when
// nothing is active, no pages are controlled, or g asked to skip waiting.
func (r *Registration) Register(ctx context.Context, g *Gateway) error {
	g.setPromote(r.promote)

	if err := g.Install(ctx); err != nil {
		r.logger.Error().Err(err).Str("version", g.Version()).Msg("Registration failed")
		return err
	}

	r.mu.Lock()
	if old := r.waiting; old != nil && old != g {
		old.markRedundant()
	}
	r.waiting = g
	activate := r.active == nil || r.clients == 0 || g.skipWaitingRequested()
	r.mu.Unlock()

	r.logger.Info().Str("version", g.Version()).Bool("activate", activate).Msg("Gateway version waiting")

	if !activate {
		return nil
	}
	return r.promote(ctx, g)
}

// promote retires the active version and activates g. The old version is
// marked redundant before cleanup deletes its partitions, so requests pass
// through until g is active. If activation fails while the old version's
// partitions still exist, the old version takes over again.
func (r *Registration) promote(ctx context.Context, g *Gateway) error {
	r.swap.Lock()
	defer r.swap.Unlock()

	r.mu.Lock()
	if r.waiting != g {
		r.mu.Unlock()
		return ErrNotWaiting
	}
	prev := r.active
	r.active = nil
	r.mu.Unlock()

	if prev != nil && prev != g {
		prev.markRedundant()
	}

	if err := g.Activate(ctx); err != nil {
		r.logger.Error().Err(err).Str("version", g.Version()).Msg("Activation failed")
		if prev != nil && prev != g && prev.reinstate(ctx) {
			r.mu.Lock()
			r.active = prev
			r.mu.Unlock()
			r.logger.Warn().Str("version", prev.Version()).Msg("Previous gateway version restored")
		}
		return err
	}

	r.mu.Lock()
	r.active = g
	r.waiting = nil
	r.mu.Unlock()

	r.logger.Info().Str("version", g.Version()).Msg("Gateway version active")
	return nil
}

// PostMessage delivers msg to the waiting version, or to the active one
// when nothing waits.
func (r *Registration) PostMessage(ctx context.Context, msg Message) error {
	r.mu.RLock()
	target := r.waiting
	if target == nil {
		target = r.active
	}
	r.mu.RUnlock()

	if target == nil {
		r.logger.Debug().Str("type", msg.Type).Msg("No gateway to receive message")
		return nil
	}
	return target.HandleMessage(ctx, msg)
}

// Sync delivers a background sync event to the active version.
func (r *Registration) Sync(ctx context.Context, tag string) error {
	g := r.Active()
	if g == nil {
		return nil
	}
	return g.Sync(ctx, tag)
}

// ClientConnected records a newly controlled page.
func (r *Registration) ClientConnected() {
	r.mu.Lock()
	r.clients++
	r.mu.Unlock()
}

// ClientDisconnected records a page going away. When the last one leaves,
// a waiting version activates.
func (r *Registration) ClientDisconnected(ctx context.Context) error {
	r.mu.Lock()
	if r.clients > 0 {
		r.clients--
	}
	waiting := r.waiting
	idle := r.clients == 0
	r.mu.Unlock()

	if !idle || waiting == nil {
		return nil
	}
	return r.promote(ctx, waiting)
}

// ServeHTTP answers through the active version and forwards requests it
// does not intercept to the network unmodified.
func (r *Registration) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if g := r.Active(); g != nil {
		if resp, ok := g.Intercept(req); ok {
			writeResponse(w, resp)
			return
		}
	}
	r.passThrough(w, req)
}

func (r *Registration) passThrough(w http.ResponseWriter, req *http.Request) {
	target, err := ResolveURL(r.origin, req)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	out := req.Clone(req.Context())
	out.URL = target
	out.Host = ""
	out.RequestURI = ""

	resp, err := r.fetcher.Do(out)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", target.String()).Str("method", req.Method).Msg("Pass-through fetch failed")
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp *http.Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil {
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(w, resp.Body)
}
