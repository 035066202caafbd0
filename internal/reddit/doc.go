// Package reddit provides an application-only client for the Reddit API.
//
// The client covers exactly what an archiving run needs:
//   - Authentication with the OAuth2 client-credentials grant
//   - The complete "top" listing of a subreddit, following every page
//   - The comment forest of a submission with every "load more" and
//     "continue this thread" placeholder resolved
//
// Waiting on Reddit's rate limiter is bounded by a budget. Once the next
// wait would exceed what is left of the budget, calls fail with
// ErrRateLimited instead of sleeping.
//
// # Usage
//
//	client, err := reddit.NewClient(ctx, reddit.Credentials{
//	    ClientID:     id,
//	    ClientSecret: secret,
//	    UserAgent:    "linux:redditdump:v1.0 (by /u/someone)",
//	}, reddit.WithRateLimitBudget(1000*time.Second))
//
//	posts, err := client.TopPosts(ctx, "poverty")
//	forest, err := client.Comments(ctx, posts[0].ID)
//	for _, c := range forest.Flatten() { ... }
package reddit
