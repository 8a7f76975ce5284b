package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
)

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantErr bool
	}{
		{
			name: "response with body and headers",
			resp: &http.Response{
				StatusCode: 200,
				Status:     "200 OK",
				Header: http.Header{
					"Content-Type":  []string{"text/css"},
					"Cache-Control": []string{"max-age=60"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`body{color:red}`))),
			},
			wantErr: false,
		},
		{
			name: "response with nil body",
			resp: &http.Response{
				StatusCode: 204,
				Header:     http.Header{},
			},
			wantErr: false,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if entry.StatusCode != tt.resp.StatusCode {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
			}
			if entry.CachedAt.IsZero() {
				t.Error("CachedAt was not set")
			}

			// Verify body was restored and matches the captured data
			body, _ := io.ReadAll(tt.resp.Body)
			if !bytes.Equal(body, entry.Data) {
				t.Errorf("restored body = %q, captured = %q", body, entry.Data)
			}

			// Captured headers must not alias the response headers
			tt.resp.Header.Set("X-Mutated", "1")
			if entry.Headers.Get("X-Mutated") != "" {
				t.Error("entry headers alias response headers")
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &Entry{
		Data:       []byte("console.log(1)"),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/javascript"}},
	}
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/app.js", nil)

	resp := EntryToResponse(entry, req)
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Status != "200 OK" {
		t.Errorf("Status = %q, want %q", resp.Status, "200 OK")
	}
	if resp.Request != req {
		t.Error("Request not attached")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "console.log(1)" {
		t.Errorf("body = %q", body)
	}
	if resp.ContentLength != int64(len(entry.Data)) {
		t.Errorf("ContentLength = %d, want %d", resp.ContentLength, len(entry.Data))
	}

	if EntryToResponse(nil, req) != nil {
		t.Error("EntryToResponse(nil) should return nil")
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse(nil, http.StatusNotFound, http.Header{"Content-Type": []string{"text/plain"}}, []byte("gone"))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q, want 4", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "gone" {
		t.Errorf("body = %q", body)
	}
}
