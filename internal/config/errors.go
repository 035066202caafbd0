package config

import "errors"

// Configuration validation errors.
// These are returned by Config.Validate() so callers can match them
// with errors.Is().
var (
	// ErrInvalidCommunity is returned when the community name is not a valid
	// subreddit name.
	ErrInvalidCommunity = errors.New("invalid community name: use 2-21 letters, digits or underscores")

	// ErrEmptyDataDir is returned when no data directory is configured.
	ErrEmptyDataDir = errors.New("data directory must not be empty")

	// ErrMissingCredentials is returned when the client id, client secret or
	// user agent is missing after the file and environment have been applied.
	ErrMissingCredentials = errors.New("missing Reddit credentials: client_id, client_secret and user_agent are required")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRateLimitBudget is returned when the rate-limit budget is negative.
	ErrInvalidRateLimitBudget = errors.New("invalid rate-limit budget: must be non-negative")
)
