package reddit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Rate-limit headers sent by Reddit on every API reply.
const (
	headerRemaining  = "X-Ratelimit-Remaining"
	headerReset      = "X-Ratelimit-Reset"
	headerRetryAfter = "Retry-After"
)

// defaultRetryDelay is used for a 429 reply that advertises no delay.
const defaultRetryDelay = 2 * time.Second

// rateLimiter follows the rate-limit headers of the last reply and pauses
// before the next request once the window is used up. All pauses together
// may not exceed the budget.
type rateLimiter struct {
	// budget is what is left of the total wait allowance.
	budget time.Duration

	// known is set once a reply carried rate-limit headers.
	known bool

	// remaining is the number of requests left in the current window.
	remaining float64

	// resetAt is when the current window ends.
	resetAt time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// newRateLimiter creates a limiter with the given budget.
func newRateLimiter(budget time.Duration) *rateLimiter {
	return &rateLimiter{
		budget: budget,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// update records the rate-limit headers of a reply.
// Replies without the headers leave the state untouched.
func (r *rateLimiter) update(h http.Header) {
	remaining, err := strconv.ParseFloat(strings.TrimSpace(h.Get(headerRemaining)), 64)
	if err != nil {
		return
	}
	reset, err := strconv.ParseFloat(strings.TrimSpace(h.Get(headerReset)), 64)
	if err != nil {
		return
	}

	r.known = true
	r.remaining = remaining
	r.resetAt = r.now().Add(time.Duration(math.Ceil(reset)) * time.Second)
}

// wait pauses until the window resets if no request is left in it.
func (r *rateLimiter) wait(ctx context.Context) error {
	if !r.known || r.remaining >= 1 {
		return nil
	}
	d := r.resetAt.Sub(r.now())
	if d <= 0 {
		r.known = false
		return nil
	}
	return r.pause(ctx, d)
}

// retryDelay returns how long to wait after a 429 reply.
func (r *rateLimiter) retryDelay(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(h.Get(headerRetryAfter))); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if r.known {
		if d := r.resetAt.Sub(r.now()); d > 0 {
			return d
		}
	}
	return defaultRetryDelay
}

// pause sleeps for d, charging it to the budget.
// The window is considered fresh afterwards.
func (r *rateLimiter) pause(ctx context.Context, d time.Duration) error {
	if d > r.budget {
		return fmt.Errorf("%w: need to wait %s, %s of budget left",
			ErrRateLimited, d.Round(time.Second), r.budget.Round(time.Second))
	}
	r.budget -= d
	r.known = false
	return r.sleep(ctx, d)
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
