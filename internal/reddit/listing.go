package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// pageSize is the largest page the listing endpoints serve.
const pageSize = 100

// TopPosts returns the complete all-time top listing of a subreddit.
//
// Pages are followed until Reddit stops returning an "after" cursor, so the
// result holds every submission the listing exposes, in listing order.
// A submission repeated on a later page is kept only once.
func (c *Client) TopPosts(ctx context.Context, subreddit string) ([]Post, error) {
	path := "/r/" + url.PathEscape(subreddit) + "/top"

	var (
		posts []Post
		seen  = make(map[string]bool)
		after string
		page  int
	)

	for {
		query := url.Values{}
		query.Set("t", "all")
		query.Set("limit", strconv.Itoa(pageSize))
		query.Set("count", strconv.Itoa(len(posts)))
		if after != "" {
			query.Set("after", after)
		}

		var raw json.RawMessage
		if err := c.getJSON(ctx, path, query, &raw); err != nil {
			return nil, fmt.Errorf("failed to fetch top listing of r/%s: %w", subreddit, err)
		}
		l, err := decodeListing(raw)
		if err != nil {
			return nil, fmt.Errorf("r/%s page %d: %w", subreddit, page, err)
		}

		for _, child := range l.Children {
			if child.Kind != kindPost {
				continue
			}
			var p Post
			if err := json.Unmarshal(child.Data, &p); err != nil {
				return nil, fmt.Errorf("failed to decode submission: %w", err)
			}
			if seen[p.ID] {
				c.logger.Debug("skipping repeated submission", "id", p.ID, "page", page)
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
		}

		c.logger.Debug("fetched listing page",
			"subreddit", subreddit,
			"page", page,
			"items", len(l.Children),
			"total", len(posts),
		)

		page++
		if l.After == "" || l.After == after || len(l.Children) == 0 {
			return posts, nil
		}
		after = l.After
	}
}
