// Package main provides the entry point for the redditdump CLI.
//
// redditdump archives the complete top listing of one subreddit, together
// with every comment of every listed post, into data/<community>.sqlite.
//
// Usage:
//
//	redditdump [community]
//	redditdump --name poverty --data-dir ./data
//
// See --help for all available options.
package main

// main is the entry point for redditdump.
func main() {
	Execute()
}
