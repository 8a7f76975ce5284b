package gateway

import (
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/Sternrassler/offline-cache-gateway/pkg/precache"
)

var (
	// ErrInvalidState is returned when a lifecycle phase is not allowed in
	// the current state.
	ErrInvalidState = errors.New("invalid gateway state")

	// ErrNotWaiting is returned when promoting a gateway that is not the
	// registration's waiting version.
	ErrNotWaiting = errors.New("gateway is not waiting")
)

func invalidState(phase string, state State) error {
	return fmt.Errorf("%s in state %s: %w", phase, state, ErrInvalidState)
}

// installFetchError marks a failed manifest fetch as install-fatal.
func installFetchError(err error, list string) error {
	perr := platformerrors.WrapWithContext(err, platformerrors.CodeNetwork,
		"install: "+list+" fetch failed", map[string]interface{}{"list": list})

	var failure *precache.Failure
	if errors.As(err, &failure) {
		perr = platformerrors.WithContext(perr, "url", failure.URL)
		if failure.StatusCode != 0 {
			perr = platformerrors.WithContext(perr, "status", failure.StatusCode)
		}
	}
	return perr
}

// installStoreError marks a failed partition write as install-fatal.
func installStoreError(err error, partition string) error {
	return platformerrors.WrapWithContext(err, platformerrors.CodeDatabase,
		"install: populate partition failed", map[string]interface{}{"partition": partition})
}
