package provider

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when no access token is stored for a
// provider; no network call has been made.
var ErrNotAuthenticated = errors.New("provider not authenticated")

// ErrAuthorizationExpired is returned when a provider rejects the stored
// access token; the token has been cleared and the OAuth flow must be
// re-run by the user.
var ErrAuthorizationExpired = errors.New("provider authorization expired")

// ErrUnknownResource is returned for a resource name the adapter does not
// expose.
var ErrUnknownResource = errors.New("unknown provider resource")

// UpstreamError carries a non-401 failure from a provider or the token
// endpoint, preserving the upstream message for the caller.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Provider, e.Message)
}
