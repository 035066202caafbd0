// Package config provides the configuration of a redditdump run.
// It holds the run options set from CLI flags, loads Reddit API credentials
// from a YAML file and the environment, and validates the result before
// any network access happens.
package config
