package pipeline

import (
	"github.com/nao1215/redditdump/internal/model"
	"github.com/nao1215/redditdump/internal/reddit"
)

// PostFromAPI maps a listed submission to a post row.
func PostFromAPI(p *reddit.Post) model.Post {
	return model.Post{
		ID:          p.ID,
		CreatedUTC:  p.CreatedUTC,
		Title:       p.Title,
		Link:        p.Permalink,
		Author:      model.NormalizeAuthor(p.Author),
		NumComments: max(p.NumComments, 0),
		Score:       p.Score,
		Ratio:       p.UpvoteRatio,
		Text:        p.Selftext,
	}
}

// CommentFromAPI maps a comment to a comment row.
// The owning post is taken from link_id with its type prefix removed.
func CommentFromAPI(c *reddit.Comment) model.Comment {
	return model.Comment{
		CommentID:     c.ID,
		LinkID:        model.StripTypePrefix(c.LinkID),
		CommentUTC:    c.CreatedUTC,
		CommentAuthor: model.NormalizeAuthor(c.Author),
		Body:          c.Body,
		CommentScore:  c.Score,
	}
}
