package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// moreChildrenBatch is the largest number of ids /api/morechildren accepts
// in one call.
const moreChildrenBatch = 100

// Forest is the comment forest of one submission with every placeholder
// resolved into real comments.
type Forest struct {
	// Post is the submission the forest belongs to.
	Post Post

	// Comments holds the top-level comments; replies hang off each comment.
	Comments []*Comment

	size int
}

// Len returns the number of comments in the forest at every depth.
func (f *Forest) Len() int {
	return f.size
}

// Flatten returns every comment of the forest in breadth-first order:
// all top-level comments first, then their replies level by level.
// The returned slice does not keep the nesting.
func (f *Forest) Flatten() []*Comment {
	out := make([]*Comment, 0, f.size)
	out = append(out, f.Comments...)
	for i := 0; i < len(out); i++ {
		out = append(out, out[i].Replies...)
	}
	return out
}

// Comments fetches a submission by id together with its complete comment
// forest. Every "load more comments" and "continue this thread" placeholder
// is expanded, however deep, before Comments returns.
func (c *Client) Comments(ctx context.Context, postID string) (*Forest, error) {
	b := &forestBuilder{
		client:   c,
		postID:   postID,
		forest:   &Forest{},
		index:    make(map[string]*Comment),
		early:    make(map[string][]*Comment),
		expanded: make(map[string]bool),
	}

	post, comments, err := b.fetchThread(ctx, "/comments/"+url.PathEscape(postID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", postID, err)
	}
	if post == nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", postID, ErrNotFound)
	}
	b.forest.Post = *post

	if err := b.addThings(comments); err != nil {
		return nil, fmt.Errorf("submission %s: %w", postID, err)
	}
	if err := b.resolve(ctx); err != nil {
		return nil, fmt.Errorf("failed to expand comments of %s: %w", postID, err)
	}

	c.logger.Debug("fetched comment forest",
		"post", postID,
		"comments", b.forest.size,
		"reported", post.NumComments,
	)
	return b.forest, nil
}

// forestBuilder assembles a Forest from the initial thread and the replies
// of every placeholder expansion.
type forestBuilder struct {
	client *Client
	postID string
	forest *Forest

	// index maps comment ids to comments already in the forest.
	index map[string]*Comment

	// early maps parent ids to replies that arrived before the parent.
	early map[string][]*Comment

	// pending holds placeholders that still need expanding.
	pending []*more

	// expanded records placeholders already queued, so a placeholder that
	// Reddit repeats is fetched once.
	expanded map[string]bool
}

// fetchThread fetches a comments page, which Reddit returns as a pair of
// listings: the submission, then its comments.
func (b *forestBuilder) fetchThread(ctx context.Context, path string) (*Post, []thing, error) {
	var pages []json.RawMessage
	if err := b.client.getJSON(ctx, path, nil, &pages); err != nil {
		return nil, nil, err
	}
	if len(pages) != 2 {
		return nil, nil, fmt.Errorf("unexpected comments page: got %d listings, want 2", len(pages))
	}

	postListing, err := decodeListing(pages[0])
	if err != nil {
		return nil, nil, err
	}
	commentListing, err := decodeListing(pages[1])
	if err != nil {
		return nil, nil, err
	}

	var post *Post
	for _, child := range postListing.Children {
		if child.Kind != kindPost {
			continue
		}
		var p Post
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, nil, fmt.Errorf("failed to decode submission: %w", err)
		}
		post = &p
		break
	}
	return post, commentListing.Children, nil
}

// addThings adds comments and queues placeholders, descending into the
// nested replies of each comment.
func (b *forestBuilder) addThings(things []thing) error {
	for _, t := range things {
		switch t.Kind {
		case kindComment:
			var d commentData
			if err := json.Unmarshal(t.Data, &d); err != nil {
				return fmt.Errorf("failed to decode comment: %w", err)
			}
			comment := d.Comment
			b.add(&comment)

			replies, err := d.replies()
			if err != nil {
				return fmt.Errorf("comment %s: %w", comment.ID, err)
			}
			if replies != nil {
				if err := b.addThings(replies.Children); err != nil {
					return err
				}
			}
		case kindMore:
			var m more
			if err := json.Unmarshal(t.Data, &m); err != nil {
				return fmt.Errorf("failed to decode placeholder: %w", err)
			}
			b.queue(&m)
		}
	}
	return nil
}

// add attaches a comment to its parent, or to the top level when the
// parent is the submission or not part of the forest yet. A comment that
// arrives before its parent is moved under the parent once it shows up.
func (b *forestBuilder) add(c *Comment) {
	if _, ok := b.index[c.ID]; ok {
		return
	}
	c.Replies = nil
	b.index[c.ID] = c
	b.forest.size++
	b.adopt(c)

	kind, parentID, _ := strings.Cut(c.ParentID, "_")
	if kind == kindComment {
		if parent, ok := b.index[parentID]; ok && parent != c {
			parent.Replies = append(parent.Replies, c)
			return
		}
		b.early[parentID] = append(b.early[parentID], c)
	}
	b.forest.Comments = append(b.forest.Comments, c)
}

// adopt moves the replies that arrived ahead of c from the top level
// under c.
func (b *forestBuilder) adopt(c *Comment) {
	replies, ok := b.early[c.ID]
	if !ok {
		return
	}
	delete(b.early, c.ID)
	b.forest.Comments = slices.DeleteFunc(b.forest.Comments, func(top *Comment) bool {
		return slices.Contains(replies, top)
	})
	c.Replies = append(c.Replies, replies...)
}

// queue records a placeholder for expansion.
func (b *forestBuilder) queue(m *more) {
	var key string
	switch {
	case m.isContinueThread():
		key = "thread:" + m.ParentID
	case len(m.Children) > 0:
		key = "more:" + m.ID
	default:
		return
	}
	if b.expanded[key] {
		return
	}
	b.expanded[key] = true
	b.pending = append(b.pending, m)
}

// resolve expands placeholders until none is left. Expansions may reveal
// further placeholders, which are expanded in turn.
func (b *forestBuilder) resolve(ctx context.Context) error {
	for len(b.pending) > 0 {
		m := b.pending[0]
		b.pending = b.pending[1:]

		var err error
		if m.isContinueThread() {
			err = b.expandThread(ctx, m)
		} else {
			err = b.expandChildren(ctx, m)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// expandChildren loads the comments a "load more comments" placeholder
// stands for.
func (b *forestBuilder) expandChildren(ctx context.Context, m *more) error {
	for start := 0; start < len(m.Children); start += moreChildrenBatch {
		end := min(start+moreChildrenBatch, len(m.Children))

		form := url.Values{}
		form.Set("api_type", "json")
		form.Set("link_id", kindPost+"_"+b.postID)
		form.Set("children", strings.Join(m.Children[start:end], ","))
		form.Set("limit_children", "false")

		var resp moreChildrenResponse
		if err := b.client.postForm(ctx, "/api/morechildren", form, &resp); err != nil {
			return err
		}
		if len(resp.JSON.Errors) > 0 {
			return fmt.Errorf("morechildren for %s: %v", m.ParentID, resp.JSON.Errors)
		}
		if err := b.addThings(resp.JSON.Data.Things); err != nil {
			return err
		}
	}
	return nil
}

// expandThread loads the replies behind a "continue this thread" link by
// fetching the parent comment's own thread page.
func (b *forestBuilder) expandThread(ctx context.Context, m *more) error {
	_, parentID, found := strings.Cut(m.ParentID, "_")
	if !found || parentID == "" {
		return nil
	}

	path := "/comments/" + url.PathEscape(b.postID) + "/_/" + url.PathEscape(parentID)
	_, comments, err := b.fetchThread(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to continue thread at %s: %w", parentID, err)
	}
	return b.addThings(comments)
}
