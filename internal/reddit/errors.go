package reddit

import (
	"errors"
	"fmt"
)

// Reddit API errors.
// Callers use errors.Is to tell the failure classes apart; all of them are
// fatal for an archiving run.
var (
	// ErrMissingCredentials is returned when the client id, client secret or
	// user agent is empty.
	ErrMissingCredentials = errors.New("missing Reddit credentials: client id, client secret and user agent are required")

	// ErrAuthentication is returned when no access token could be obtained.
	ErrAuthentication = errors.New("reddit authentication failed")

	// ErrUnauthorized is returned for 401 and 403 replies.
	ErrUnauthorized = errors.New("reddit rejected the request as unauthorized")

	// ErrNotFound is returned for 404 replies, e.g. a submission that no
	// longer exists or a subreddit that is banned or private.
	ErrNotFound = errors.New("reddit resource not found")

	// ErrRateLimited is returned when waiting for the rate limit to reset
	// would exceed the remaining budget.
	ErrRateLimited = errors.New("reddit rate limit budget exhausted")

	// ErrInvalidProxyAddress is returned when a SOCKS5 proxy address is not
	// in "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// APIError describes a non-2xx reply that has no dedicated sentinel.
type APIError struct {
	// StatusCode is the HTTP status code of the reply.
	StatusCode int

	// Body holds the beginning of the reply body for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("reddit API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("reddit API error: status %d: %s", e.StatusCode, e.Body)
}
