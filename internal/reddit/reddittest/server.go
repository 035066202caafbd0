// Package reddittest provides an in-process fake of the Reddit API for tests.
//
// A Server serves the token endpoint, subreddit top listings, comment pages,
// /api/morechildren and "continue this thread" pages from a declarative
// fixture, shaped like the real API replies.
package reddittest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Default credentials accepted by a Server.
const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	AccessToken  = "test-access-token"
)

// Post is a submission served by the fake.
type Post struct {
	ID          string
	CreatedUTC  float64
	Title       string
	Author      string
	NumComments int
	Score       int
	UpvoteRatio float64
	Selftext    string
}

// Comment is a node of a fake comment forest.
type Comment struct {
	ID         string
	Author     string
	Body       string
	Score      int
	CreatedUTC float64

	// Deferred comments are left out of their parent's page and replaced by
	// a "load more comments" placeholder listing their ids.
	Deferred bool

	// ContinueThread hides the replies behind a "continue this thread"
	// placeholder.
	ContinueThread bool

	Replies []Comment
}

// Subreddit is a community served by the fake.
type Subreddit struct {
	// PageSize is the number of posts per listing page. Zero means 100.
	PageSize int

	// Posts in top-listing order.
	Posts []Post

	// Comments maps post ids to their top-level comments.
	Comments map[string][]Comment
}

// Server is a fake Reddit API.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	subreddits map[string]*Subreddit
	posts      map[string]Post
	postSub    map[string]string
	forests    map[string][]Comment
	nodes      map[string]located
	failures   []failure
	failRoutes map[string]int
	raw        map[string][]string
	headers    http.Header

	requests   map[string]int
	userAgents []string
}

// located is a comment with the fullname of its parent and its post id.
type located struct {
	comment Comment
	parent  string
	postID  string
}

// failure is a reply injected ahead of the regular handlers.
type failure struct {
	status int
	header http.Header
}

// NewServer starts a fake serving the given subreddits.
// The caller must Close it.
func NewServer(subreddits map[string]*Subreddit) *Server {
	s := &Server{
		subreddits: make(map[string]*Subreddit),
		posts:      make(map[string]Post),
		postSub:    make(map[string]string),
		forests:    make(map[string][]Comment),
		nodes:      make(map[string]located),
		requests:   make(map[string]int),
		failRoutes: make(map[string]int),
		raw:        make(map[string][]string),
	}
	for name, sub := range subreddits {
		s.subreddits[strings.ToLower(name)] = sub
		for _, p := range sub.Posts {
			s.posts[p.ID] = p
			s.postSub[p.ID] = name
		}
		for postID, comments := range sub.Comments {
			s.forests[postID] = comments
			s.index(postID, "t3_"+postID, comments)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", s.handleToken)
	mux.HandleFunc("GET /r/{sub}/top", s.authorized(s.handleTop))
	mux.HandleFunc("GET /comments/{post}", s.authorized(s.handleComments))
	mux.HandleFunc("GET /comments/{post}/_/{comment}", s.authorized(s.handleThread))
	mux.HandleFunc("POST /api/morechildren", s.authorized(s.handleMoreChildren))

	s.Server = httptest.NewServer(mux)
	return s
}

// TokenURL returns the URL of the fake token endpoint.
func (s *Server) TokenURL() string {
	return s.URL + "/api/v1/access_token"
}

// FailNext makes the next API request (token requests excluded) reply
// with status and header instead of being served. Calls queue up.
func (s *Server) FailNext(status int, header http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, header: header})
}

// FailRoute makes every later request to a route pattern reply with status.
func (s *Server) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRoutes[route] = status
}

// ServeRaw makes later requests to a route pattern reply with the given
// JSON bodies instead of the fixture, one body per request in order.
// The last body keeps being served once the others are used up.
func (s *Server) ServeRaw(route string, bodies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[route] = append(s.raw[route], bodies...)
}

// SetRateLimitHeaders adds rate-limit headers to every later reply.
func (s *Server) SetRateLimitHeaders(remaining, reset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = http.Header{}
	s.headers.Set("X-Ratelimit-Remaining", remaining)
	s.headers.Set("X-Ratelimit-Reset", reset)
}

// Requests returns how many requests hit the given route pattern,
// e.g. "/api/morechildren" or "/r/{sub}/top".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// UserAgents returns the User-Agent of every request received so far.
func (s *Server) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

func (s *Server) index(postID, parent string, comments []Comment) {
	for _, c := range comments {
		s.nodes[c.ID] = located{comment: c, parent: parent, postID: postID}
		s.index(postID, "t1_"+c.ID, c.Replies)
	}
}

func (s *Server) record(route string, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[route]++
	s.userAgents = append(s.userAgents, r.UserAgent())
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.record("/api/v1/access_token", r)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(ClientID+":"+ClientSecret))
	if r.Header.Get("Authorization") != want {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":"unauthorized"}`) //nolint:errcheck // test fake
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":"unsupported_grant_type"}`) //nolint:errcheck // test fake
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer","expires_in":86400,"scope":"*"}`, AccessToken) //nolint:errcheck // test fake
}

// authorized checks the bearer token and serves injected failures.
func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route := r.Pattern[strings.Index(r.Pattern, " ")+1:]
		s.record(route, r)

		if r.Header.Get("Authorization") != "Bearer "+AccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		s.mu.Lock()
		for k, v := range s.headers {
			w.Header()[k] = v
		}
		var injected *failure
		if len(s.failures) > 0 {
			injected = &s.failures[0]
			s.failures = s.failures[1:]
		} else if status, ok := s.failRoutes[route]; ok {
			injected = &failure{status: status}
		}
		var body string
		if bodies := s.raw[route]; injected == nil && len(bodies) > 0 {
			body = bodies[0]
			if len(bodies) > 1 {
				s.raw[route] = bodies[1:]
			}
		}
		s.mu.Unlock()

		if injected != nil {
			for k, v := range injected.header {
				w.Header()[k] = v
			}
			w.WriteHeader(injected.status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if body != "" {
			_, _ = fmt.Fprint(w, body) //nolint:errcheck // test fake
			return
		}
		next(w, r)
	}
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subreddits[strings.ToLower(r.PathValue("sub"))]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("t") != "all" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	size := sub.PageSize
	if size <= 0 {
		size = 100
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit < size {
		size = limit
	}

	start := 0
	if after := r.URL.Query().Get("after"); after != "" {
		for i, p := range sub.Posts {
			if "t3_"+p.ID == after {
				start = i + 1
				break
			}
		}
	}
	end := min(start+size, len(sub.Posts))

	children := make([]any, 0, end-start)
	for _, p := range sub.Posts[start:end] {
		children = append(children, postThing(r.PathValue("sub"), p))
	}
	after := ""
	if end < len(sub.Posts) && end > start {
		after = "t3_" + sub.Posts[end-1].ID
	}
	writeJSON(w, listingThing(after, children))
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("post")
	post, ok := s.posts[postID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, []any{
		listingThing("", []any{postThing(s.postSub[postID], post)}),
		listingThing("", s.inline(postID, "t3_"+postID, s.forests[postID])),
	})
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("post")
	post, ok := s.posts[postID]
	node, found := s.nodes[r.PathValue("comment")]
	if !ok || !found || node.postID != postID {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	full := node.comment
	full.ContinueThread = false
	full.Deferred = false
	writeJSON(w, []any{
		listingThing("", []any{postThing(s.postSub[postID], post)}),
		listingThing("", s.inline(postID, node.parent, []Comment{full})),
	})
}

func (s *Server) handleMoreChildren(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("api_type") != "json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	postID := strings.TrimPrefix(r.PostForm.Get("link_id"), "t3_")

	things := make([]any, 0)
	for _, id := range strings.Split(r.PostForm.Get("children"), ",") {
		node, ok := s.nodes[id]
		if !ok || node.postID != postID {
			continue
		}
		things = append(things, s.flat(postID, node.parent, node.comment)...)
	}

	writeJSON(w, map[string]any{
		"json": map[string]any{
			"errors": []any{},
			"data":   map[string]any{"things": things},
		},
	})
}

// inline renders siblings with nested replies, as on a comments page.
func (s *Server) inline(postID, parent string, siblings []Comment) []any {
	things := make([]any, 0, len(siblings))
	var deferred []string
	for _, c := range siblings {
		if c.Deferred {
			deferred = append(deferred, c.ID)
			continue
		}
		var replies any = ""
		switch {
		case c.ContinueThread && len(c.Replies) > 0:
			replies = listingThing("", []any{continueThing("t1_" + c.ID)})
		case len(c.Replies) > 0:
			replies = listingThing("", s.inline(postID, "t1_"+c.ID, c.Replies))
		}
		things = append(things, commentThing(postID, parent, c, replies))
	}
	if len(deferred) > 0 {
		things = append(things, moreThing(parent, deferred))
	}
	return things
}

// flat renders a comment and its descendants as a flat pre-order list,
// as /api/morechildren does.
func (s *Server) flat(postID, parent string, c Comment) []any {
	things := []any{commentThing(postID, parent, c, "")}
	if c.ContinueThread && len(c.Replies) > 0 {
		return append(things, continueThing("t1_"+c.ID))
	}

	var deferred []string
	for _, reply := range c.Replies {
		if reply.Deferred {
			deferred = append(deferred, reply.ID)
			continue
		}
		things = append(things, s.flat(postID, "t1_"+c.ID, reply)...)
	}
	if len(deferred) > 0 {
		things = append(things, moreThing("t1_"+c.ID, deferred))
	}
	return things
}

func listingThing(after string, children []any) map[string]any {
	var cursor any
	if after != "" {
		cursor = after
	}
	return map[string]any{
		"kind": "Listing",
		"data": map[string]any{
			"after":    cursor,
			"before":   nil,
			"children": children,
		},
	}
}

func postThing(sub string, p Post) map[string]any {
	return map[string]any{
		"kind": "t3",
		"data": map[string]any{
			"id":           p.ID,
			"name":         "t3_" + p.ID,
			"created_utc":  p.CreatedUTC,
			"title":        p.Title,
			"permalink":    "/r/" + sub + "/comments/" + p.ID + "/",
			"author":       p.Author,
			"num_comments": p.NumComments,
			"score":        p.Score,
			"upvote_ratio": p.UpvoteRatio,
			"selftext":     p.Selftext,
		},
	}
}

func commentThing(postID, parent string, c Comment, replies any) map[string]any {
	return map[string]any{
		"kind": "t1",
		"data": map[string]any{
			"id":          c.ID,
			"name":        "t1_" + c.ID,
			"link_id":     "t3_" + postID,
			"parent_id":   parent,
			"created_utc": c.CreatedUTC,
			"author":      c.Author,
			"body":        c.Body,
			"score":       c.Score,
			"replies":     replies,
		},
	}
}

func moreThing(parent string, children []string) map[string]any {
	return map[string]any{
		"kind": "more",
		"data": map[string]any{
			"count":     len(children),
			"name":      "t1_" + children[0],
			"id":        children[0],
			"parent_id": parent,
			"children":  children,
		},
	}
}

func continueThing(parent string) map[string]any {
	return map[string]any{
		"kind": "more",
		"data": map[string]any{
			"count":     0,
			"name":      "t1__",
			"id":        "_",
			"parent_id": parent,
			"children":  []string{},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test fake
}
