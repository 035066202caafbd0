package model

import (
	"errors"
	"fmt"
)

// ErrInconsistentSnapshot is returned when a comment references a post
// that is not part of the same snapshot.
var ErrInconsistentSnapshot = errors.New("comment references a post outside the snapshot")

// Snapshot holds everything collected for one community during one run.
// It only lives in memory; persisting it replaces any earlier snapshot.
type Snapshot struct {
	// Community is the community name as given by the operator.
	Community string

	// Posts appear in listing order.
	Posts []Post

	// Comments are grouped by post, in the order the posts were processed,
	// and in flattened forest order within each post.
	Comments []Comment
}

// NewSnapshot creates an empty snapshot for a community.
func NewSnapshot(community string) *Snapshot {
	return &Snapshot{
		Community: community,
		Posts:     make([]Post, 0),
		Comments:  make([]Comment, 0),
	}
}

// PostIDs returns the post identifiers in listing order.
func (s *Snapshot) PostIDs() []string {
	ids := make([]string, len(s.Posts))
	for i, p := range s.Posts {
		ids[i] = p.ID
	}
	return ids
}

// Orphans returns the comments whose LinkID matches no post of the snapshot.
func (s *Snapshot) Orphans() []Comment {
	known := make(map[string]bool, len(s.Posts))
	for _, p := range s.Posts {
		known[p.ID] = true
	}

	var orphans []Comment
	for _, c := range s.Comments {
		if !known[c.LinkID] {
			orphans = append(orphans, c)
		}
	}
	return orphans
}

// CommentCounts returns the number of collected comments per post id.
func (s *Snapshot) CommentCounts() map[string]int {
	counts := make(map[string]int, len(s.Posts))
	for _, c := range s.Comments {
		counts[c.LinkID]++
	}
	return counts
}

// StaleCounts returns the ids of posts listed with zero comments for which
// comments were nevertheless collected. This happens when a comment arrives
// between the listing and the forest fetch.
func (s *Snapshot) StaleCounts() []string {
	counts := s.CommentCounts()
	var ids []string
	for _, p := range s.Posts {
		if p.NumComments == 0 && counts[p.ID] > 0 {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// CheckConsistency verifies that every comment links to a post of the
// snapshot. It must hold before the snapshot is persisted.
func (s *Snapshot) CheckConsistency() error {
	orphans := s.Orphans()
	if len(orphans) == 0 {
		return nil
	}
	return fmt.Errorf("%w: comment %s links to %q (%d orphans)",
		ErrInconsistentSnapshot, orphans[0].CommentID, orphans[0].LinkID, len(orphans))
}
