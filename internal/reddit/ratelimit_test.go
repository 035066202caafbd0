package reddit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nao1215/redditdump/internal/reddit/reddittest"
)

// recordSleeps replaces the limiter's sleep with one that records delays.
func recordSleeps(c *Client) *[]time.Duration {
	slept := make([]time.Duration, 0)
	c.limiter.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func rateLimitedServer() *reddittest.Server {
	return reddittest.NewServer(map[string]*reddittest.Subreddit{
		"test": {Posts: []reddittest.Post{{ID: "p1"}}},
	})
}

// TestRateLimitRetry tests handling of 429 replies.
func TestRateLimitRetry(t *testing.T) {
	t.Parallel()

	t.Run("waits out Retry-After within budget", func(t *testing.T) {
		t.Parallel()

		srv := rateLimitedServer()
		defer srv.Close()

		client := newTestClient(t, srv, WithRateLimitBudget(10*time.Second))
		slept := recordSleeps(client)
		srv.FailNext(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"3"}})

		posts, err := client.TopPosts(context.Background(), "test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(posts) != 1 {
			t.Errorf("expected 1 post, got %d", len(posts))
		}
		if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
			t.Errorf("expected one 3s pause, got %v", *slept)
		}
		if n := srv.Requests("/r/{sub}/top"); n != 2 {
			t.Errorf("expected 2 listing requests, got %d", n)
		}
	})

	t.Run("fails when the wait exceeds the budget", func(t *testing.T) {
		t.Parallel()

		srv := rateLimitedServer()
		defer srv.Close()

		client := newTestClient(t, srv, WithRateLimitBudget(time.Second))
		slept := recordSleeps(client)
		srv.FailNext(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"5"}})

		_, err := client.TopPosts(context.Background(), "test")
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if len(*slept) != 0 {
			t.Errorf("expected no pause, got %v", *slept)
		}
	})

	t.Run("budget is shared across waits", func(t *testing.T) {
		t.Parallel()

		srv := rateLimitedServer()
		defer srv.Close()

		client := newTestClient(t, srv, WithRateLimitBudget(5*time.Second))
		recordSleeps(client)
		srv.FailNext(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"3"}})
		srv.FailNext(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"3"}})

		_, err := client.TopPosts(context.Background(), "test")
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
	})
}

// TestRateLimitHeaders tests pausing once the rate-limit window is used up.
func TestRateLimitHeaders(t *testing.T) {
	t.Parallel()

	t.Run("pauses until reset when no request is left", func(t *testing.T) {
		t.Parallel()

		srv := rateLimitedServer()
		defer srv.Close()
		srv.SetRateLimitHeaders("0.0", "7")

		client := newTestClient(t, srv, WithRateLimitBudget(10*time.Second))
		slept := recordSleeps(client)
		fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		client.limiter.now = func() time.Time { return fixed }

		for range 2 {
			if _, err := client.TopPosts(context.Background(), "test"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(*slept) != 1 || (*slept)[0] != 7*time.Second {
			t.Errorf("expected one 7s pause, got %v", *slept)
		}
	})

	t.Run("does not pause while requests are left", func(t *testing.T) {
		t.Parallel()

		srv := rateLimitedServer()
		defer srv.Close()
		srv.SetRateLimitHeaders("599.0", "300")

		client := newTestClient(t, srv, WithRateLimitBudget(0))
		slept := recordSleeps(client)

		for range 3 {
			if _, err := client.TopPosts(context.Background(), "test"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(*slept) != 0 {
			t.Errorf("expected no pause, got %v", *slept)
		}
	})

	t.Run("zero budget fails instead of pausing", func(t *testing.T) {
		t.Parallel()

		srv := rateLimitedServer()
		defer srv.Close()
		srv.SetRateLimitHeaders("0", "60")

		client := newTestClient(t, srv, WithRateLimitBudget(0))
		recordSleeps(client)

		if _, err := client.TopPosts(context.Background(), "test"); err != nil {
			t.Fatalf("first request should pass, got %v", err)
		}
		if _, err := client.TopPosts(context.Background(), "test"); !errors.Is(err, ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})
}

// TestSleepContext tests that waiting stops when the context is cancelled.
func TestSleepContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
