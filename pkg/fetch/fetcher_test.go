package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("offline-gateway-test/1.0"),
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      Config{},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "negative timeout",
			config: Config{
				UserAgent: "offline-gateway-test/1.0",
				Timeout:   -time.Second,
			},
			expectError: true,
			errorMsg:    "timeout must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if fetcher == nil {
				t.Error("Fetcher is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("offline-gateway/1.0")
	if cfg.UserAgent != "offline-gateway/1.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (no imposed timeout)", cfg.Timeout)
	}
}

func TestDo_UserAgentSet(t *testing.T) {
	userAgentReceived := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgentReceived = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher, err := New(DefaultConfig("offline-gateway-test/1.0"))
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/style.css", nil)
	resp, err := fetcher.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if userAgentReceived != "offline-gateway-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", userAgentReceived, "offline-gateway-test/1.0")
	}
}

func TestDo_KeepsCallerUserAgent(t *testing.T) {
	userAgentReceived := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgentReceived = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	fetcher, _ := New(DefaultConfig("offline-gateway-test/1.0"))

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := fetcher.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if userAgentReceived != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q, want caller's", userAgentReceived)
	}
}

func TestDo_ErrorStatusIsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down"))
	}))
	defer server.Close()

	fetcher, _ := New(DefaultConfig("offline-gateway-test/1.0"))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.Do(req)
	if err != nil {
		t.Fatalf("Do() returned error for 503: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "down" {
		t.Errorf("body = %q", body)
	}
}

func TestDo_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // nothing listens anymore

	fetcher, _ := New(DefaultConfig("offline-gateway-test/1.0"))
	req, _ := http.NewRequest(http.MethodGet, url+"/app.js", nil)

	resp, err := fetcher.Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected network error")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error %T is not *FetchError", err)
	}
	if fetchErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", fetchErr.ErrorClass, ErrorClassNetwork)
	}
	if fetchErr.URL != url+"/app.js" {
		t.Errorf("URL = %q", fetchErr.URL)
	}
}

func TestDo_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	fetcher, _ := New(DefaultConfig("offline-gateway-test/1.0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	_, err := fetcher.Do(req)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fetchErr.ErrorClass != ErrorClassCanceled {
		t.Errorf("ErrorClass = %q, want %q", fetchErr.ErrorClass, ErrorClassCanceled)
	}
}

func TestDo_InboundServerRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	fetcher, _ := New(DefaultConfig("offline-gateway-test/1.0"))

	// httptest.NewRequest sets RequestURI like a server-side request
	req := httptest.NewRequest(http.MethodGet, server.URL+"/index.html", nil)
	resp, err := fetcher.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "/index.html" {
		t.Errorf("body = %q", body)
	}
}

func TestDo_NilRequest(t *testing.T) {
	fetcher, _ := New(DefaultConfig("offline-gateway-test/1.0"))
	if _, err := fetcher.Do(nil); !errors.Is(err, ErrNilRequest) {
		t.Errorf("Do(nil) error = %v, want ErrNilRequest", err)
	}
}

func TestFetcherFunc(t *testing.T) {
	called := false
	var f Fetcher = FetcherFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusTeapot}, nil
	})

	resp, err := f.Do(&http.Request{})
	if err != nil || !called || resp.StatusCode != http.StatusTeapot {
		t.Errorf("FetcherFunc not invoked correctly: resp=%v err=%v called=%v", resp, err, called)
	}
}
