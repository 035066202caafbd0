package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Default endpoints and limits.
const (
	// DefaultBaseURL is the host that serves OAuth-authenticated API calls.
	DefaultBaseURL = "https://oauth.reddit.com"

	// DefaultTokenURL is the OAuth2 token endpoint.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimitBudget is the total time a client may spend waiting
	// on the rate limiter.
	DefaultRateLimitBudget = 1000 * time.Second

	// maxErrorBody is how much of an error reply is kept in APIError.
	maxErrorBody = 512
)

// Credentials identify the registered application.
type Credentials struct {
	// ClientID is the application id shown under the app name.
	ClientID string

	// ClientSecret is the application secret.
	ClientSecret string

	// UserAgent is sent with every request. Reddit throttles generic agents.
	UserAgent string
}

// validate checks that no credential is empty.
func (c Credentials) validate() error {
	if strings.TrimSpace(c.ClientID) == "" ||
		strings.TrimSpace(c.ClientSecret) == "" ||
		strings.TrimSpace(c.UserAgent) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Client is an authenticated Reddit API session.
// A Client is meant for sequential use by a single run.
type Client struct {
	// baseURL is the API host, without trailing slash.
	baseURL string

	// tokenURL is the OAuth2 token endpoint.
	tokenURL string

	// timeout bounds each HTTP exchange.
	timeout time.Duration

	// budget is the total rate-limit wait allowed.
	budget time.Duration

	// proxyAddress is an optional SOCKS5 proxy in "host:port" format.
	proxyAddress string

	// httpClient carries the OAuth2 token on every request.
	httpClient *http.Client

	// limiter tracks Reddit's rate-limit headers.
	limiter *rateLimiter

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(c *Client) {
		c.tokenURL = tokenURL
	}
}

// WithTimeout sets the timeout of a single HTTP exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimitBudget sets the total time the client may wait on the rate
// limiter before failing with ErrRateLimited. Zero means never wait.
func WithRateLimitBudget(budget time.Duration) Option {
	return func(c *Client) {
		c.budget = budget
	}
}

// WithSOCKS5Proxy routes every connection, token requests included,
// through a SOCKS5 proxy.
func WithSOCKS5Proxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient authenticates against Reddit and returns a ready session.
//
// The first access token is fetched before NewClient returns, so wrong
// credentials or an unreachable API fail here rather than halfway through
// a run. Later tokens are refreshed transparently.
func NewClient(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:  DefaultBaseURL,
		tokenURL: DefaultTokenURL,
		timeout:  DefaultTimeout,
		budget:   DefaultRateLimitBudget,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base, err := newTransport(c.proxyAddress)
	if err != nil {
		return nil, err
	}
	agent := &userAgentTransport{base: base, userAgent: creds.UserAgent}

	conf := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The token source keeps this context for refreshes; it only carries
	// the HTTP client used to reach the token endpoint.
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{
		Transport: agent,
		Timeout:   c.timeout,
	})
	source := conf.TokenSource(tokenCtx)

	if _, err := source.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	c.logger.Debug("authenticated with Reddit", "token_url", c.tokenURL)

	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{Source: source, Base: agent},
		Timeout:   c.timeout,
	}
	c.limiter = newRateLimiter(c.budget)

	return c, nil
}

// getJSON performs a GET request against the API and decodes the reply.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// postForm performs a form-encoded POST request and decodes the reply.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, form, out)
}

// do sends a request, waiting on the rate limiter when Reddit asks for it.
// A 429 reply is retried after the advertised delay as long as the budget
// allows; every other failure is returned to the caller.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	for {
		if err := c.limiter.wait(ctx); err != nil {
			return err
		}

		req, err := c.newRequest(ctx, method, path, query, form)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return fmt.Errorf("%w: %w", ErrAuthentication, err)
			}
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		c.limiter.update(resp.Header)

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := c.limiter.retryDelay(resp.Header)
			drainAndClose(resp.Body)

			c.logger.Warn("rate limited by Reddit", "path", path, "delay", delay)
			if err := c.limiter.pause(ctx, delay); err != nil {
				return err
			}
			continue
		}

		err = decodeResponse(resp, out)
		drainAndClose(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		return nil
	}
}

// newRequest builds an API request.
// raw_json=1 asks Reddit not to HTML-escape text fields.
func (c *Client) newRequest(ctx context.Context, method, path string, query, form url.Values) (*http.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("raw_json", "1")

	target := c.baseURL + path + "?" + query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

// decodeResponse maps the status code to an error or decodes the JSON body.
func decodeResponse(resp *http.Response, out any) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort diagnostics
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// drainAndClose discards the rest of a body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024)) //nolint:errcheck // best effort
	_ = body.Close()
}
