// Package log provides secure logging built on top of the standard slog package.
//
// The SecureHandler masks credential material before it reaches the output:
//   - attributes whose key names a secret (client_secret, access_token, authorization)
//   - values that look like bearer, basic or JWT credentials
//   - registered literal secrets, wherever they appear in messages, strings or errors
//
// Even in verbose mode, sensitive values are masked so that logs can be
// shared when reporting a failed run.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose, cfg.ClientSecret)
//	logger.Debug("token request", "client_secret", cfg.ClientSecret) // masked
package log
