package reddit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/redditdump/internal/reddit/reddittest"
)

// nestedForest is served for post p2. The layout exercises every kind of
// placeholder:
//
//	a ── b
//	  └─ c (load more)
//	d ── (continue this thread) ── e ── f
//	g (load more) ── h
//	              └─ i (load more)
func nestedForest() []reddittest.Comment {
	return []reddittest.Comment{
		{ID: "a", Author: "alice", Body: "A", Replies: []reddittest.Comment{
			{ID: "b", Author: "bob", Body: "B"},
			{ID: "c", Author: "[deleted]", Body: "C", Deferred: true},
		}},
		{ID: "d", Author: "dave", Body: "D", ContinueThread: true, Replies: []reddittest.Comment{
			{ID: "e", Author: "erin", Body: "E", Replies: []reddittest.Comment{
				{ID: "f", Author: "frank", Body: "F"},
			}},
		}},
		{ID: "g", Author: "grace", Body: "G", Deferred: true, Replies: []reddittest.Comment{
			{ID: "h", Author: "heidi", Body: "H"},
			{ID: "i", Author: "ivan", Body: "I", Deferred: true},
		}},
	}
}

func commentIDs(comments []*Comment) []string {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestComments tests retrieval and full expansion of a comment forest.
func TestComments(t *testing.T) {
	t.Parallel()

	t.Run("resolves every placeholder", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(map[string]*reddittest.Subreddit{
			"test": {
				Posts:    []reddittest.Post{{ID: "p2", NumComments: 9}},
				Comments: map[string][]reddittest.Comment{"p2": nestedForest()},
			},
		})
		defer srv.Close()

		client := newTestClient(t, srv)
		forest, err := client.Comments(context.Background(), "p2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if forest.Post.ID != "p2" {
			t.Errorf("expected submission p2, got %q", forest.Post.ID)
		}
		if forest.Len() != 9 {
			t.Errorf("expected 9 comments, got %d", forest.Len())
		}

		top := commentIDs(forest.Comments)
		if !equalIDs(top, []string{"a", "d", "g"}) {
			t.Errorf("unexpected top level %v", top)
		}

		flat := commentIDs(forest.Flatten())
		expected := []string{"a", "d", "g", "b", "c", "e", "h", "i", "f"}
		if !equalIDs(flat, expected) {
			t.Errorf("Flatten() = %v, expected %v", flat, expected)
		}

		if n := srv.Requests("/api/morechildren"); n != 3 {
			t.Errorf("expected 3 morechildren requests, got %d", n)
		}
		if n := srv.Requests("/comments/{post}/_/{comment}"); n != 1 {
			t.Errorf("expected 1 continue-thread request, got %d", n)
		}
	})

	t.Run("keeps the link and parent references", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(map[string]*reddittest.Subreddit{
			"test": {
				Posts:    []reddittest.Post{{ID: "p2", NumComments: 9}},
				Comments: map[string][]reddittest.Comment{"p2": nestedForest()},
			},
		})
		defer srv.Close()

		client := newTestClient(t, srv)
		forest, err := client.Comments(context.Background(), "p2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, c := range forest.Flatten() {
			if c.LinkID != "t3_p2" {
				t.Errorf("comment %s: link_id = %q, expected t3_p2", c.ID, c.LinkID)
			}
		}

		f := forest.Comments[1].Replies[0].Replies[0]
		if f.ID != "f" || f.ParentID != "t1_e" || f.Author != "frank" || f.Body != "F" {
			t.Errorf("unexpected deep comment %+v", f)
		}
	})

	t.Run("post without comments yields an empty forest", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(map[string]*reddittest.Subreddit{
			"test": {Posts: []reddittest.Post{{ID: "p1"}}},
		})
		defer srv.Close()

		client := newTestClient(t, srv)
		forest, err := client.Comments(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if forest.Len() != 0 || len(forest.Flatten()) != 0 {
			t.Errorf("expected empty forest, got %d comments", forest.Len())
		}
	})

	t.Run("large placeholders are expanded in batches", func(t *testing.T) {
		t.Parallel()

		comments := make([]reddittest.Comment, 0, 250)
		for i := range 250 {
			comments = append(comments, reddittest.Comment{
				ID:       fmt.Sprintf("c%03d", i),
				Deferred: i >= 10,
			})
		}
		srv := reddittest.NewServer(map[string]*reddittest.Subreddit{
			"test": {
				Posts:    []reddittest.Post{{ID: "big", NumComments: 250}},
				Comments: map[string][]reddittest.Comment{"big": comments},
			},
		})
		defer srv.Close()

		client := newTestClient(t, srv)
		forest, err := client.Comments(context.Background(), "big")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if forest.Len() != 250 {
			t.Errorf("expected 250 comments, got %d", forest.Len())
		}
		if n := srv.Requests("/api/morechildren"); n != 3 {
			t.Errorf("expected 3 batched morechildren requests, got %d", n)
		}

		flat := forest.Flatten()
		for i, c := range flat {
			if want := fmt.Sprintf("c%03d", i); c.ID != want {
				t.Fatalf("comment %d: got %q, expected %q", i, c.ID, want)
			}
		}
	})

	t.Run("repeated comments and placeholders are kept and expanded once", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(nil)
		defer srv.Close()
		srv.ServeRaw("/comments/{post}", commentsPage("p1",
			rawComment("a", "t3_p1", ""),
			rawComment("a", "t3_p1", ""),
			rawMore("m1", "t3_p1", "b"),
			rawMore("m1", "t3_p1", "b"),
			rawComment("d", "t3_p1", rawListing(rawMore("_", "t1_d"))),
			rawMore("_", "t1_d"),
		))
		srv.ServeRaw("/api/morechildren", moreChildrenReply(
			rawComment("b", "t3_p1", ""),
			rawComment("a", "t3_p1", ""),
		))
		srv.ServeRaw("/comments/{post}/_/{comment}", commentsPage("p1",
			rawComment("d", "t3_p1", rawListing(rawComment("e", "t1_d", ""))),
		))

		client := newTestClient(t, srv)
		forest, err := client.Comments(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := commentIDs(forest.Flatten())
		if expected := []string{"a", "d", "b", "e"}; !equalIDs(got, expected) {
			t.Errorf("Flatten() = %v, expected %v", got, expected)
		}
		if forest.Len() != 4 {
			t.Errorf("expected Len() 4, got %d", forest.Len())
		}
		if n := srv.Requests("/api/morechildren"); n != 1 {
			t.Errorf("expected 1 morechildren request, got %d", n)
		}
		if n := srv.Requests("/comments/{post}/_/{comment}"); n != 1 {
			t.Errorf("expected 1 thread request, got %d", n)
		}
	})

	t.Run("reply returned before its parent is nested under the parent", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(nil)
		defer srv.Close()
		srv.ServeRaw("/comments/{post}", commentsPage("p1",
			rawComment("a", "t3_p1", ""),
			rawMore("x", "t1_a", "x", "y"),
		))
		srv.ServeRaw("/api/morechildren", moreChildrenReply(
			rawComment("y", "t1_x", ""),
			rawComment("x", "t1_a", ""),
		))

		client := newTestClient(t, srv)
		forest, err := client.Comments(context.Background(), "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := commentIDs(forest.Comments); !equalIDs(got, []string{"a"}) {
			t.Errorf("expected top level [a], got %v", got)
		}
		got := commentIDs(forest.Flatten())
		if expected := []string{"a", "x", "y"}; !equalIDs(got, expected) {
			t.Errorf("Flatten() = %v, expected %v", got, expected)
		}
	})

	t.Run("missing submission returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(nil)
		defer srv.Close()

		client := newTestClient(t, srv)
		_, err := client.Comments(context.Background(), "gone")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("failed expansion aborts", func(t *testing.T) {
		t.Parallel()

		srv := reddittest.NewServer(map[string]*reddittest.Subreddit{
			"test": {
				Posts:    []reddittest.Post{{ID: "p2", NumComments: 9}},
				Comments: map[string][]reddittest.Comment{"p2": nestedForest()},
			},
		})
		defer srv.Close()

		client := newTestClient(t, srv)
		srv.FailRoute("/api/morechildren", 502)

		_, err := client.Comments(context.Background(), "p2")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 502 {
			t.Fatalf("expected APIError with status 502, got %v", err)
		}
	})
}

// TestForestFlatten tests breadth-first flattening without the network.
func TestForestFlatten(t *testing.T) {
	t.Parallel()

	t.Run("empty forest", func(t *testing.T) {
		t.Parallel()

		f := &Forest{}
		if got := f.Flatten(); len(got) != 0 {
			t.Errorf("expected no comments, got %d", len(got))
		}
	})

	t.Run("level order", func(t *testing.T) {
		t.Parallel()

		leaf := &Comment{ID: "x3"}
		mid := &Comment{ID: "x2", Replies: []*Comment{leaf}}
		f := &Forest{
			Comments: []*Comment{
				{ID: "x1", Replies: []*Comment{mid}},
				{ID: "y1", Replies: []*Comment{{ID: "y2"}}},
			},
			size: 5,
		}

		got := commentIDs(f.Flatten())
		expected := []string{"x1", "y1", "x2", "y2", "x3"}
		if !equalIDs(got, expected) {
			t.Errorf("Flatten() = %v, expected %v", got, expected)
		}
	})
}

func rawListing(children ...string) string {
	return fmt.Sprintf(`{"kind":"Listing","data":{"after":null,"children":[%s]}}`, strings.Join(children, ","))
}

// rawComment renders a comment thing. An empty replies renders as "",
// the way Reddit marks a comment without replies.
func rawComment(id, parent, replies string) string {
	if replies == "" {
		replies = `""`
	}
	return fmt.Sprintf(`{"kind":"t1","data":{"id":%q,"name":"t1_%s","link_id":"t3_p1","parent_id":%q,"author":"someone","body":"comment %s","score":1,"replies":%s}}`,
		id, id, parent, id, replies)
}

// rawMore renders a placeholder. No children and the id "_" render a
// "continue this thread" link.
func rawMore(id, parent string, children ...string) string {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf(`{"kind":"more","data":{"id":%q,"parent_id":%q,"count":%d,"children":[%s]}}`,
		id, parent, len(children), strings.Join(ids, ","))
}

func commentsPage(postID string, comments ...string) string {
	post := fmt.Sprintf(`{"kind":"t3","data":{"id":%q,"name":"t3_%s","title":"post","author":"someone","num_comments":%d}}`,
		postID, postID, len(comments))
	return "[" + rawListing(post) + "," + rawListing(comments...) + "]"
}

func moreChildrenReply(things ...string) string {
	return fmt.Sprintf(`{"json":{"errors":[],"data":{"things":[%s]}}}`, strings.Join(things, ","))
}
