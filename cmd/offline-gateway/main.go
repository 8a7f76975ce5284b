package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
	"github.com/Sternrassler/offline-cache-gateway/pkg/config"
	"github.com/Sternrassler/offline-cache-gateway/pkg/fetch"
	"github.com/Sternrassler/offline-cache-gateway/pkg/gateway"
	"github.com/Sternrassler/offline-cache-gateway/pkg/logging"
	"github.com/Sternrassler/offline-cache-gateway/pkg/metrics"
)

// maxMessageBytes bounds control message bodies.
const maxMessageBytes = 64 << 10

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("GATEWAY_CONFIG"), "path to gateway.yaml")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Gateway server failed")
	}
}

// run serves until ctx is done, then shuts the server down.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	store, ping, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher, err := fetch.New(fetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	g, err := gateway.New(gateway.Options{
		Version:              cfg.Gateway.Version,
		Store:                store,
		Fetcher:              fetcher,
		Origin:               cfg.OriginURL(),
		Manifest:             cfg.Gateway.Manifest,
		Media:                cfg.Gateway.Media,
		InstallConcurrency:   cfg.Gateway.InstallConcurrency,
		SkipWaitingOnInstall: cfg.Gateway.SkipWaitingOnInstall,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	reg := gateway.NewRegistration(cfg.OriginURL(), fetcher)

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
	}

	srv := &http.Server{
		Handler:           newMux(reg, ping),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("origin", cfg.Server.Origin).
			Str("store", cfg.Store.Backend).
			Str("version", cfg.Gateway.Version).
			Msg("Offline cache gateway listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Requests pass through to the origin until the version is active
	go func() {
		if err := reg.Register(ctx, g); err != nil {
			logger.Error().Err(err).Msg("Gateway registration failed, passing all requests through")
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logger.Info().Msg("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

// openStore builds the configured partition store. ping reports backend
// health for readiness and is nil when the backend needs no check.
func openStore(ctx context.Context, cfg config.StoreConfig) (cache.Store, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		ping := func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		return &closingStore{Store: cache.NewRedisStore(redisClient, cfg.Redis.Prefix), closer: redisClient}, ping, nil
	case config.BackendLevelDB:
		store, err := cache.OpenLevelStore(cfg.LevelDB.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return cache.NewMemoryStore(), nil, nil
	}
}

// closingStore closes the Redis client the store borrows.
type closingStore struct {
	cache.Store
	closer io.Closer
}

func (s *closingStore) Close() error {
	return errors.Join(s.Store.Close(), s.closer.Close())
}

func newMux(reg *gateway.Registration, ping func(context.Context) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("GET /readyz", readyHandler(reg, ping))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /__gateway/message", messageHandler(reg))
	mux.HandleFunc("POST /__gateway/sync", syncHandler(reg))
	mux.Handle("/", reg)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(reg *gateway.Registration, ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg.Active() == nil {
			http.Error(w, "no active gateway", http.StatusServiceUnavailable)
			return
		}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func messageHandler(reg *gateway.Registration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
			return
		}
		msg, err := gateway.ParseMessage(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := reg.PostMessage(r.Context(), msg); err != nil {
			log.Error().Err(err).Str("type", msg.Type).Msg("Control message failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func syncHandler(reg *gateway.Registration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Query().Get("tag")
		if tag == "" {
			http.Error(w, "tag is required", http.StatusBadRequest)
			return
		}
		if err := reg.Sync(r.Context(), tag); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
