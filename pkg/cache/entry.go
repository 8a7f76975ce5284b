package cache

import (
	"net/http"
	"time"
)

// Entry is a captured response snapshot stored in a partition.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the captured response
	StatusCode int `json:"status_code"`

	// Status is the status line text (e.g. "200 OK")
	Status string `json:"status"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// CachedAt is when the response was captured
	CachedAt time.Time `json:"cached_at"`
}

// OK reports whether the captured status is in the 2xx range.
func (e *Entry) OK() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// Clone returns a deep copy so stored entries never share memory with callers.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Data != nil {
		c.Data = append([]byte(nil), e.Data...)
	}
	c.Headers = e.Headers.Clone()
	return &c
}

// Size returns the approximate number of bytes the entry occupies.
func (e *Entry) Size() int {
	n := len(e.Data)
	for k, vs := range e.Headers {
		n += len(k)
		for _, v := range vs {
			n += len(v)
		}
	}
	return n
}
