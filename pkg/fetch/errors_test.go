package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{
			name:     "plain network error",
			err:      io.EOF,
			expected: ErrorClassNetwork,
		},
		{
			name:     "context canceled",
			err:      fmt.Errorf("get: %w", context.Canceled),
			expected: ErrorClassCanceled,
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("get: %w", context.DeadlineExceeded),
			expected: ErrorClassTimeout,
		},
		{
			name:     "net timeout",
			err:      timeoutErr{},
			expected: ErrorClassTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifyError(tt.err)
			if result != tt.expected {
				t.Errorf("classifyError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr *FetchError
		expected string
	}{
		{
			name: "error with wrapped error",
			fetchErr: &FetchError{
				URL:        "https://example.com/app.js",
				ErrorClass: ErrorClassNetwork,
				Err:        errors.New("connection refused"),
			},
			expected: "fetch network error (https://example.com/app.js): connection refused",
		},
		{
			name: "error without wrapped error",
			fetchErr: &FetchError{
				URL:        "https://example.com/",
				ErrorClass: ErrorClassTimeout,
			},
			expected: "fetch timeout error (https://example.com/)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.fetchErr.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	fetchErr := &FetchError{
		URL:        "https://example.com/",
		ErrorClass: ErrorClassNetwork,
		Err:        wrappedErr,
	}

	if fetchErr.Unwrap() != wrappedErr {
		t.Errorf("Unwrap() = %v, want %v", fetchErr.Unwrap(), wrappedErr)
	}

	// Test errors.Is
	if !errors.Is(fetchErr, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}

	var target *FetchError
	if !errors.As(fmt.Errorf("outer: %w", fetchErr), &target) {
		t.Error("errors.As should find FetchError")
	}
}
