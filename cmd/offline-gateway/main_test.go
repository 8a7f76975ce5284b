package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/offline-cache-gateway/internal/testutil"
	"github.com/Sternrassler/offline-cache-gateway/pkg/cache"
	"github.com/Sternrassler/offline-cache-gateway/pkg/config"
	"github.com/Sternrassler/offline-cache-gateway/pkg/fetch"
	"github.com/Sternrassler/offline-cache-gateway/pkg/gateway"
)

func setupTestRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container not available: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		redisC.Terminate(ctx)
	}

	return host + ":" + port.Port(), cleanup
}

// setupRegistration serves a small site from a mock origin through an
// active gateway.
func setupRegistration(t *testing.T) (*gateway.Registration, *testutil.MockOrigin) {
	t.Helper()
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	origin.SetAsset("/", "text/html", "<html>home</html>")
	origin.SetAsset("/app.js", "application/javascript", "console.log(1)")
	origin.SetAsset("/images/hero.webp", "image/webp", "hero")

	base, _ := url.Parse(origin.URL())
	fetcher, err := fetch.New(fetch.DefaultConfig("offline-gateway-test/1.0"))
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	g, err := gateway.New(gateway.Options{
		Version:              "v1",
		Store:                cache.NewMemoryStore(),
		Fetcher:              fetcher,
		Origin:               base,
		Manifest:             []string{"/", "/app.js"},
		Media:                []string{"/images/hero.webp"},
		SkipWaitingOnInstall: true,
	})
	if err != nil {
		t.Fatalf("Failed to create gateway: %v", err)
	}

	reg := gateway.NewRegistration(base, fetcher)
	if err := reg.Register(context.Background(), g); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return reg, origin
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not_ready_without_active_version", func(t *testing.T) {
		fetcher, _ := fetch.New(fetch.DefaultConfig("offline-gateway-test/1.0"))
		reg := gateway.NewRegistration(nil, fetcher)

		w := httptest.NewRecorder()
		readyHandler(reg, nil)(w, httptest.NewRequest("GET", "/readyz", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})

	reg, _ := setupRegistration(t)

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		readyHandler(reg, nil)(w, httptest.NewRequest("GET", "/readyz", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "OK" {
			t.Errorf("Expected body 'OK', got %s", w.Body.String())
		}
	})

	t.Run("not_ready_store_down", func(t *testing.T) {
		down := func(context.Context) error { return errors.New("connection refused") }

		w := httptest.NewRecorder()
		readyHandler(reg, down)(w, httptest.NewRequest("GET", "/readyz", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestMux(t *testing.T) {
	reg, origin := setupRegistration(t)
	origin.Reset()
	mux := newMux(reg, nil)

	t.Run("intercepted_from_cache", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/app.js", nil))

		if w.Code != http.StatusOK || w.Body.String() != "console.log(1)" {
			t.Errorf("got %d %q", w.Code, w.Body.String())
		}
		if origin.TotalRequests() != 0 {
			t.Errorf("origin contacted %d times for a precached script", origin.TotalRequests())
		}
	})

	t.Run("offline_image_placeholder", func(t *testing.T) {
		origin.SetOffline(true)
		defer origin.SetOffline(false)

		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/images/unknown.png", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "gateway_intercepts_total") {
			t.Error("metrics output missing gateway_intercepts_total")
		}
	})

	t.Run("healthz_is_not_intercepted", func(t *testing.T) {
		origin.Reset()
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

		if w.Body.String() != "OK" || origin.TotalRequests() != 0 {
			t.Errorf("healthz reached the gateway: %q", w.Body.String())
		}
	})
}

func TestMessageEndpoint(t *testing.T) {
	reg, _ := setupRegistration(t)
	mux := newMux(reg, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "skip_waiting", body: `{"type":"SKIP_WAITING"}`, wantStatus: http.StatusAccepted},
		{name: "unknown_type", body: `{"type":"HELLO"}`, wantStatus: http.StatusAccepted},
		{name: "invalid_json", body: `not json`, wantStatus: http.StatusBadRequest},
		{name: "too_large", body: `{"type":"` + strings.Repeat("x", maxMessageBytes) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("POST", "/__gateway/message", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestSyncEndpoint(t *testing.T) {
	reg, _ := setupRegistration(t)
	mux := newMux(reg, nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/__gateway/sync?tag=background-sync", nil))
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/__gateway/sync", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without tag, got %d", w.Code)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, ping, err := openStore(ctx, config.StoreConfig{Backend: config.BackendMemory})
		if err != nil {
			t.Fatalf("openStore() failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*cache.MemoryStore); !ok {
			t.Errorf("store = %T, want *cache.MemoryStore", store)
		}
		if ping != nil {
			t.Error("memory backend needs no ping")
		}
	})

	t.Run("leveldb", func(t *testing.T) {
		store, _, err := openStore(ctx, config.StoreConfig{
			Backend: config.BackendLevelDB,
			LevelDB: config.LevelDBConfig{Path: t.TempDir()},
		})
		if err != nil {
			t.Fatalf("openStore() failed: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*cache.LevelStore); !ok {
			t.Errorf("store = %T, want *cache.LevelStore", store)
		}
	})

	t.Run("redis_unreachable", func(t *testing.T) {
		_, _, err := openStore(ctx, config.StoreConfig{
			Backend: config.BackendRedis,
			Redis:   config.RedisConfig{Addr: "127.0.0.1:1"},
		})
		if err == nil {
			t.Error("expected error for unreachable redis")
		}
	})

	t.Run("redis", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping container test in short mode")
		}
		addr, cleanup := setupTestRedis(t)
		defer cleanup()

		store, ping, err := openStore(ctx, config.StoreConfig{
			Backend: config.BackendRedis,
			Redis:   config.RedisConfig{Addr: addr, Prefix: "cmd-test:"},
		})
		if err != nil {
			t.Fatalf("openStore() failed: %v", err)
		}
		if err := ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}

		if _, err := store.Open(ctx, "static-v1"); err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		names, err := store.Names(ctx)
		if err != nil || len(names) != 1 {
			t.Errorf("Names() = %v, %v", names, err)
		}

		if err := store.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
		if err := ping(ctx); !errors.Is(err, redis.ErrClosed) {
			t.Errorf("ping after Close() = %v, want redis.ErrClosed", err)
		}
	})
}
