// Package exchange holds what the per-venue clients share: error taxonomy
// and the signing strategies under sign/.
package exchange

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is a configuration error, detected before any
// network call is attempted.
var ErrMissingCredentials = errors.New("missing credentials")

// MissingCredentials wraps ErrMissingCredentials with the venue name so the
// handler can say which account is unconfigured.
func MissingCredentials(venue string) error {
	return fmt.Errorf("missing %s credentials: %w", venue, ErrMissingCredentials)
}

// ProviderError is an application-level failure signaled by the venue
// itself: a non-2xx status, or a 2xx carrying the venue's own error code.
// Raw keeps the diagnostic payload for the caller.
type ProviderError struct {
	Venue   string
	Code    string
	Message string
	Raw     string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error (code %s): %s", e.Venue, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Venue, e.Message)
}
