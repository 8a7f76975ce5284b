package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseToEntry captures an HTTP response into an Entry.
// It reads the response body and restores it so the caller can still
// consume the original response.
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		CachedAt:   time.Now(),
	}, nil
}

// EntryToResponse rebuilds an HTTP response from a stored entry. The body
// holds exactly the stored bytes.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	if entry == nil {
		return nil
	}

	header := entry.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}

	status := entry.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode))
	}

	return &http.Response{
		Status:        status,
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}

// NewResponse builds a synthetic response with the given status, headers and body.
func NewResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	return EntryToResponse(&Entry{
		Data:       body,
		StatusCode: status,
		Headers:    header,
	}, req)
}
