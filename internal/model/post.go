package model

// Post is a single submission of a community.
// Fields are listed in the column order of the posts table.
type Post struct {
	// ID is the bare submission identifier (no "t3_" prefix).
	ID string `json:"id"`

	// CreatedUTC is the creation time in Unix seconds as reported by the API.
	CreatedUTC float64 `json:"created_utc"`

	// Title is the submission title.
	Title string `json:"title"`

	// Link is the relative permalink (e.g. "/r/poverty/comments/abc123/...").
	Link string `json:"link"`

	// Author is the submitter's name, or DeletedAuthor.
	Author string `json:"author"`

	// NumComments is the comment count reported by the listing.
	NumComments int `json:"n_comments"`

	// Score is the net vote score.
	Score int `json:"score"`

	// Ratio is the upvote ratio in [0,1].
	Ratio float64 `json:"ratio"`

	// Text is the self text. Empty for link posts.
	Text string `json:"text"`
}
