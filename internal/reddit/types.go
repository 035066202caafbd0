package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kinds of things returned by the API.
const (
	kindListing = "Listing"
	kindComment = "t1"
	kindPost    = "t3"
	kindMore    = "more"
)

// continueThreadID is the id of a "more" node that stands for a
// "continue this thread" link instead of a list of child ids.
const continueThreadID = "_"

// thing is the envelope of every object returned by the API.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listing is the data of a "Listing" thing.
type listing struct {
	After    string  `json:"after"`
	Children []thing `json:"children"`
}

// Post is a submission as returned by the API.
// Only the fields the archive needs are decoded.
type Post struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CreatedUTC  float64 `json:"created_utc"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	NumComments int     `json:"num_comments"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	Selftext    string  `json:"selftext"`
}

// Comment is a comment as returned by the API, with its resolved replies.
type Comment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	LinkID     string  `json:"link_id"`
	ParentID   string  `json:"parent_id"`
	CreatedUTC float64 `json:"created_utc"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`

	// Replies holds the direct replies once the forest is resolved.
	Replies []*Comment `json:"-"`
}

// commentData is the wire form of a comment.
// Replies is either an empty string or a Listing thing.
type commentData struct {
	Comment
	RawReplies json.RawMessage `json:"replies"`
}

// more is the data of a "more" placeholder.
type more struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Depth    int      `json:"depth"`
	Children []string `json:"children"`
}

// isContinueThread reports whether the placeholder stands for a
// "continue this thread" link.
func (m *more) isContinueThread() bool {
	return len(m.Children) == 0 && m.ID == continueThreadID
}

// replies decodes the nested replies listing of a comment, if any.
func (d *commentData) replies() (*listing, error) {
	raw := bytes.TrimSpace(d.RawReplies)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	return decodeListing(raw)
}

// decodeListing decodes a "Listing" thing.
func decodeListing(raw json.RawMessage) (*listing, error) {
	var t thing
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	if t.Kind != kindListing {
		return nil, fmt.Errorf("failed to decode listing: unexpected kind %q", t.Kind)
	}
	var l listing
	if err := json.Unmarshal(t.Data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode listing data: %w", err)
	}
	return &l, nil
}

// moreChildrenResponse is the reply of /api/morechildren with api_type=json.
type moreChildrenResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}
