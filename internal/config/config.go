package config

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "redditdump"

	// DefaultCommunity is the subreddit archived when none is given.
	DefaultCommunity = "poverty"

	// DefaultDataDir is where archive files are written, relative to the
	// working directory.
	DefaultDataDir = "data"

	// DefaultRateLimitBudget is the total time a run may spend waiting on
	// Reddit's rate limiter. Large communities need many thousand requests,
	// so the budget is generous.
	DefaultRateLimitBudget = 1000 * time.Second

	// DefaultTimeout is the timeout of a single API request.
	DefaultTimeout = 60 * time.Second
)

// communityPattern matches valid subreddit names. It also keeps the
// derived archive path inside the data directory.
var communityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]{1,20}$`)

// Config holds all options of one run.
// It is populated from CLI flags, the credentials file and the environment,
// and passed down explicitly rather than kept in global state.
type Config struct {
	// Community is the subreddit to archive, without the "r/" prefix.
	Community string

	// DataDir is the directory that receives <community>.sqlite.
	DataDir string

	// CredentialsPath is an explicit credentials file path.
	// When empty, FindCredentialsFile searches the default locations.
	CredentialsPath string

	// ClientID is the OAuth2 client id of the registered Reddit app.
	ClientID string

	// ClientSecret is the OAuth2 client secret of the registered Reddit app.
	ClientSecret string

	// UserAgent is sent with every request. Reddit throttles generic
	// user agents, so it should name the app and its operator.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// APIURL overrides the OAuth API base URL. Empty means the public API.
	APIURL string

	// TokenURL overrides the access token endpoint. Empty means the public one.
	TokenURL string

	// RateLimitBudget is the total time the run may wait on rate limits.
	// Zero means any rate-limit wait fails the run.
	RateLimitBudget time.Duration

	// Timeout is the timeout of a single API request.
	Timeout time.Duration

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
// Credentials have no defaults.
func NewConfig() *Config {
	return &Config{
		Community:       DefaultCommunity,
		DataDir:         DefaultDataDir,
		RateLimitBudget: DefaultRateLimitBudget,
		Timeout:         DefaultTimeout,
	}
}

// XDGConfigDir returns the XDG config directory for redditdump.
// On Linux: ~/.config/redditdump
// On macOS: ~/Library/Application Support/redditdump
// On Windows: %APPDATA%\redditdump
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ArchivePath returns the path of the archive file for the configured community.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, c.Community+".sqlite")
}

// ValidCommunity reports whether name is an acceptable subreddit name.
func ValidCommunity(name string) bool {
	return communityPattern.MatchString(name)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if !ValidCommunity(c.Community) {
		return ErrInvalidCommunity
	}

	if c.DataDir == "" {
		return ErrEmptyDataDir
	}

	if c.ClientID == "" || c.ClientSecret == "" || c.UserAgent == "" {
		return ErrMissingCredentials
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RateLimitBudget < 0 {
		return ErrInvalidRateLimitBudget
	}

	return nil
}
