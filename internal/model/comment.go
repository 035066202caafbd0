package model

// Comment is a single comment of a submission.
// Fields are listed in the column order of the comments table.
//
// Parent/child nesting is not kept; only the link to the owning post is.
type Comment struct {
	// CommentID is the bare comment identifier (no "t1_" prefix).
	CommentID string `json:"comment_id"`

	// LinkID is the bare identifier of the post the comment belongs to.
	LinkID string `json:"link_id"`

	// CommentUTC is the creation time in Unix seconds.
	CommentUTC float64 `json:"comment_utc"`

	// CommentAuthor is the commenter's name, or DeletedAuthor.
	CommentAuthor string `json:"comment_author"`

	// Body is the raw markdown body.
	Body string `json:"body"`

	// CommentScore is the net vote score.
	CommentScore int `json:"comment_score"`
}
