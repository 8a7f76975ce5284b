package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNilRequest is returned when Do is called without a request.
var ErrNilRequest = errors.New("request cannot be nil")

// ErrorClass represents a classification of transport failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection and protocol failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents deadline and timeout failures.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassCanceled represents requests canceled by the caller.
	ErrorClassCanceled ErrorClass = "canceled"
)

// FetchError is returned when a request could not produce any response.
// HTTP error statuses are not FetchErrors: they are valid responses.
type FetchError struct {
	URL        string
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s error (%s): %v", e.ErrorClass, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s error (%s)", e.ErrorClass, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyError determines the class of a transport error.
func classifyError(err error) ErrorClass {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}
