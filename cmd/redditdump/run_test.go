package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/redditdump/internal/config"
	"github.com/nao1215/redditdump/internal/database"
	"github.com/nao1215/redditdump/internal/reddit"
	"github.com/nao1215/redditdump/internal/reddit/reddittest"
)

// writeCredentials writes a credentials file accepted by the fake server.
func writeCredentials(t *testing.T, apiURL, tokenURL string) string {
	t.Helper()
	return writeCredentialsWithSecret(t, reddittest.ClientSecret, apiURL, tokenURL)
}

func writeCredentialsWithSecret(t *testing.T, secret, apiURL, tokenURL string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "credentials.yaml")
	content := fmt.Sprintf(`client_id: %q
client_secret: %q
user_agent: "test:redditdump:v0 (by /u/tester)"
api_url: %q
token_url: %q
`, reddittest.ClientID, secret, apiURL, tokenURL)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}
	return path
}

// testCommunity is community "test": p1 without comments, p2 with two.
func testCommunity() map[string]*reddittest.Subreddit {
	return map[string]*reddittest.Subreddit{
		"test": {
			Posts: []reddittest.Post{
				{ID: "p1", Title: "No comments", Author: "alice", UpvoteRatio: 1},
				{ID: "p2", Title: "Two comments", Author: "bob", NumComments: 2, UpvoteRatio: 0.5},
			},
			Comments: map[string][]reddittest.Comment{
				"p2": {
					{ID: "c1", Author: "carol", Body: "first"},
					{ID: "c2", Author: "", Body: "second"},
				},
			},
		},
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// TestRun tests complete runs of the command against a fake Reddit.
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("archives the community and prints a summary", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		dataDir := t.TempDir()
		creds := writeCredentials(t, srv.URL, srv.TokenURL())

		stdout, _, err := execute("test", "-c", creds, "-d", dataDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, want := range []string{
			"Retrieving posts:",
			"Retrieving comments:",
			"[1/2] p1 (0 comments)",
			"[2/2] p2 (2 comments)",
			"Archived r/test",
			"posts:    2",
			"comments: 2",
			filepath.Join(dataDir, "test.sqlite"),
		} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
			}
		}

		archive, err := database.Open(dataDir, "test", database.Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to open archive: %v", err)
		}
		defer archive.Close()

		comments, err := archive.ReadComments(context.Background())
		if err != nil {
			t.Fatalf("failed to read comments: %v", err)
		}
		if len(comments) != 2 {
			t.Fatalf("expected 2 comments, got %d", len(comments))
		}
		for _, c := range comments {
			if c.LinkID != "p2" {
				t.Errorf("comment %s: expected link_id p2, got %q", c.CommentID, c.LinkID)
			}
		}
	})

	t.Run("verbose run logs the archive location", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		dataDir := t.TempDir()
		creds := writeCredentials(t, srv.URL, srv.TokenURL())

		_, stderr, err := execute("test", "-v", "-c", creds, "-d", dataDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "archive=" + filepath.Join(dataDir, "test.sqlite")
		if !strings.Contains(stderr, want) {
			t.Errorf("expected log to contain %q, got:\n%s", want, stderr)
		}
	})

	t.Run("second run prints the same digest", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		dataDir := t.TempDir()
		creds := writeCredentials(t, srv.URL, srv.TokenURL())

		first, _, err := execute("--name", "test", "-c", creds, "-d", dataDir)
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		second, _, err := execute("--name", "test", "-c", creds, "-d", dataDir)
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		if digestLine(first) == "" || digestLine(first) != digestLine(second) {
			t.Errorf("expected equal digests, got %q and %q", digestLine(first), digestLine(second))
		}
	})

	t.Run("wrong secret aborts before anything is fetched", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		dataDir := t.TempDir()
		creds := writeCredentialsWithSecret(t, "bad-secret-4711", srv.URL, srv.TokenURL())

		_, stderr, err := execute("test", "-c", creds, "-d", dataDir)
		if !errors.Is(err, reddit.ErrAuthentication) {
			t.Fatalf("expected ErrAuthentication, got %v", err)
		}
		if srv.Requests("/r/{sub}/top") != 0 {
			t.Error("expected no listing request")
		}
		if _, statErr := os.Stat(filepath.Join(dataDir, "test.sqlite")); statErr == nil {
			t.Error("expected no archive file")
		}
		if strings.Contains(stderr, "bad-secret-4711") {
			t.Errorf("expected the secret to stay out of the logs, got %q", stderr)
		}
	})

	t.Run("failed fetch leaves the previous archive unchanged", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		dataDir := t.TempDir()
		creds := writeCredentials(t, srv.URL, srv.TokenURL())

		first, _, err := execute("test", "-c", creds, "-d", dataDir)
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		srv.FailRoute("/comments/{post}", 500)
		if _, _, err := execute("test", "-c", creds, "-d", dataDir); err == nil {
			t.Fatal("expected the second run to fail")
		}

		archive, err := database.Open(dataDir, "test", database.Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to open archive: %v", err)
		}
		defer archive.Close()

		digest, err := archive.Digest(context.Background())
		if err != nil {
			t.Fatalf("failed to compute digest: %v", err)
		}
		if !strings.Contains(first, digest) {
			t.Errorf("expected archive digest %s to match the first run:\n%s", digest, first)
		}
	})

	t.Run("unknown community fails", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		creds := writeCredentials(t, srv.URL, srv.TokenURL())
		_, _, err := execute("missing", "-c", creds, "-d", t.TempDir())
		if !errors.Is(err, reddit.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid community is rejected before connecting", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(testCommunity())
		defer srv.Close()

		creds := writeCredentials(t, srv.URL, srv.TokenURL())
		_, _, err := execute("../etc", "-c", creds, "-d", t.TempDir())
		if !errors.Is(err, config.ErrInvalidCommunity) {
			t.Errorf("expected ErrInvalidCommunity, got %v", err)
		}
		if srv.Requests("/api/v1/access_token") != 0 {
			t.Error("expected no token request")
		}
	})

	t.Run("missing credentials file is an error", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute("test", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, config.ErrCredentialsNotFound) {
			t.Errorf("expected ErrCredentialsNotFound, got %v", err)
		}
	})

	t.Run("too many arguments are rejected", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute("one", "two"); err == nil {
			t.Error("expected error for two positional arguments")
		}
	})
}

// digestLine returns the digest line of a summary.
func digestLine(output string) string {
	for line := range strings.SplitSeq(output, "\n") {
		if strings.Contains(line, "sha3-256:") {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
