package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
	"github.com/Sternrassler/offline-cache-gateway/pkg/precache"
)

// MessageSkipWaiting asks a waiting gateway to activate immediately.
const MessageSkipWaiting = "SKIP_WAITING"

// SyncTagBackground is the only background sync tag the gateway handles.
const SyncTagBackground = "background-sync"

// Message is a control message posted by a page.
type Message struct {
	Type string `json:"type"`
}

// ParseMessage decodes a JSON control message.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Install precaches the manifest into the static partition and the media
// list into the dynamic partition. It is all or nothing: on failure no
// partition created by this call survives and the gateway is Uninstalled
// again.
func (g *Gateway) Install(ctx context.Context) error {
	g.phase.Lock()
	defer g.phase.Unlock()

	if state := g.State(); state != StateUninstalled {
		return invalidState("install", state)
	}
	g.setState(StateInstalling)
	start := time.Now()

	bf := precache.NewBatchFetcher(g.fetcher, precache.Config{MaxConcurrency: g.concurrency})

	manifest, err := bf.FetchAll(ctx, g.manifest)
	if err != nil {
		installsTotal.WithLabelValues("fetch_failed").Inc()
		g.setState(StateUninstalled)
		g.logger.Error().Err(err).Msg("Install failed: manifest precache")
		return installFetchError(err, "manifest")
	}

	media, err := bf.FetchAll(ctx, g.media)
	if err != nil {
		installsTotal.WithLabelValues("fetch_failed").Inc()
		g.setState(StateUninstalled)
		g.logger.Error().Err(err).Msg("Install failed: media precache")
		return installFetchError(err, "media")
	}

	static, dynamic, err := g.populate(ctx, manifest, media)
	if err != nil {
		installsTotal.WithLabelValues("store_failed").Inc()
		g.setState(StateUninstalled)
		g.logger.Error().Err(err).Msg("Install failed: populate partitions")
		return err
	}

	g.mu.Lock()
	g.static, g.dynamic = static, dynamic
	g.mu.Unlock()
	g.setState(StateInstalled)

	installsTotal.WithLabelValues("success").Inc()
	g.logger.Info().
		Int("static_entries", len(manifest)).
		Int("dynamic_entries", len(media)).
		Dur("duration", time.Since(start)).
		Msg("Gateway installed")
	return nil
}

// populate opens both partitions and writes the precached entries. A
// failure deletes the partitions this call created.
func (g *Gateway) populate(ctx context.Context, manifest, media []precache.Result) (cache.Partition, cache.Partition, error) {
	var created []string

	fill := func(name string, results []precache.Result) (cache.Partition, error) {
		existed, err := g.store.Has(ctx, name)
		if err != nil {
			return nil, installStoreError(err, name)
		}
		p, err := g.store.Open(ctx, name)
		if err != nil {
			return nil, installStoreError(err, name)
		}
		if !existed {
			created = append(created, name)
		}
		for _, r := range results {
			if err := p.Put(ctx, r.Key, r.Entry); err != nil {
				return nil, installStoreError(err, name)
			}
		}
		return p, nil
	}

	static, err := fill(g.staticName, manifest)
	if err == nil {
		var dynamic cache.Partition
		dynamic, err = fill(g.dynamicName, media)
		if err == nil {
			return static, dynamic, nil
		}
	}

	for _, name := range created {
		if _, delErr := g.store.Delete(ctx, name); delErr != nil {
			g.logger.Warn().Err(delErr).Str("partition", name).Msg("Failed to remove partition after install failure")
		}
	}
	return nil, nil, err
}

// Activate deletes every partition that does not belong to this version and
// then starts intercepting. Running it again on an active gateway repeats
// the cleanup.
func (g *Gateway) Activate(ctx context.Context) error {
	g.phase.Lock()
	defer g.phase.Unlock()

	state := g.State()
	if state != StateInstalled && state != StateActive {
		return invalidState("activate", state)
	}

	names, err := g.store.Names(ctx)
	if err != nil {
		return fmt.Errorf("activate: list partitions: %w", err)
	}
	for _, name := range names {
		if name == g.staticName || name == g.dynamicName {
			continue
		}
		deleted, err := g.store.Delete(ctx, name)
		if err != nil {
			return fmt.Errorf("activate: delete partition %s: %w", name, err)
		}
		if deleted {
			stalePartitionsDeleted.Inc()
			g.logger.Info().Str("partition", name).Msg("Deleted stale partition")
		}
	}

	g.setState(StateActive)
	activationsTotal.Inc()
	return nil
}

// HandleMessage processes a control message. SKIP_WAITING promotes an
// installed gateway; other types are ignored.
func (g *Gateway) HandleMessage(ctx context.Context, msg Message) error {
	if msg.Type != MessageSkipWaiting {
		g.logger.Debug().Str("type", msg.Type).Msg("Ignoring control message")
		return nil
	}

	g.mu.Lock()
	g.skipWaiting = true
	state := g.state
	promote := g.promote
	g.mu.Unlock()

	if state != StateInstalled {
		return nil
	}
	if promote != nil {
		return promote(ctx, g)
	}
	return g.Activate(ctx)
}

// Sync handles a background sync event. Nothing is queued for replay, so
// the background tag completes immediately.
func (g *Gateway) Sync(ctx context.Context, tag string) error {
	if tag != SyncTagBackground {
		g.logger.Debug().Str("tag", tag).Msg("Ignoring sync tag")
		return nil
	}
	g.logger.Info().Str("tag", tag).Msg("Background sync")
	return nil
}
