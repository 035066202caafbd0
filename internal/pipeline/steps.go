package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/redditdump/internal/model"
	"github.com/nao1215/redditdump/internal/reddit"
)

// PostSource lists the top posts of a community.
type PostSource interface {
	TopPosts(ctx context.Context, community string) ([]reddit.Post, error)
}

// CommentSource fetches the fully resolved comment forest of a post.
type CommentSource interface {
	Comments(ctx context.Context, postID string) (*reddit.Forest, error)
}

// Source is the upstream a run reads from. *reddit.Client implements it.
type Source interface {
	PostSource
	CommentSource
}

// SnapshotWriter persists a complete snapshot. *database.Archive implements it.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap *model.Snapshot) error
}

// stepConfig holds the settings shared by all steps.
type stepConfig struct {
	logger   *slog.Logger
	progress io.Writer
}

// StepOption configures a step.
type StepOption func(*stepConfig)

// WithStepLogger sets a custom logger for a step.
func WithStepLogger(logger *slog.Logger) StepOption {
	return func(c *stepConfig) {
		c.logger = logger
	}
}

// WithStepProgress sets where a step writes its progress lines.
func WithStepProgress(w io.Writer) StepOption {
	return func(c *stepConfig) {
		c.progress = w
	}
}

func newStepConfig(opts []StepOption) stepConfig {
	c := stepConfig{
		logger:   slog.Default(),
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// printf writes a progress line. Progress is best effort.
func (c stepConfig) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.progress, format, args...)
}

// PostsStep collects the complete top listing of the community.
type PostsStep struct {
	stepConfig
	source PostSource
}

// NewPostsStep creates a new post collecting step.
func NewPostsStep(source PostSource, opts ...StepOption) *PostsStep {
	return &PostsStep{stepConfig: newStepConfig(opts), source: source}
}

// Name returns the step name.
func (s *PostsStep) Name() string {
	return "posts"
}

// Do appends every listed post to the snapshot in listing order.
func (s *PostsStep) Do(ctx context.Context, snap *model.Snapshot) error {
	s.printf("Retrieving posts:\n")

	posts, err := s.source.TopPosts(ctx, snap.Community)
	if err != nil {
		return fmt.Errorf("failed to list posts of r/%s: %w", snap.Community, err)
	}

	for i := range posts {
		snap.Posts = append(snap.Posts, PostFromAPI(&posts[i]))
	}

	s.printf("%d posts\n", len(posts))
	return nil
}

// CommentsStep collects the comments of every post in the snapshot.
type CommentsStep struct {
	stepConfig
	source CommentSource
}

// NewCommentsStep creates a new comment collecting step.
func NewCommentsStep(source CommentSource, opts ...StepOption) *CommentsStep {
	return &CommentsStep{stepConfig: newStepConfig(opts), source: source}
}

// Name returns the step name.
func (s *CommentsStep) Name() string {
	return "comments"
}

// Do fetches and flattens each post's forest in snapshot order.
// One failed fetch aborts the whole step.
func (s *CommentsStep) Do(ctx context.Context, snap *model.Snapshot) error {
	s.printf("Retrieving comments:\n")

	ids := snap.PostIDs()
	for i, id := range ids {
		forest, err := s.source.Comments(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to fetch comments of post %s: %w", id, err)
		}

		flat := forest.Flatten()
		for _, c := range flat {
			snap.Comments = append(snap.Comments, CommentFromAPI(c))
		}

		s.printf("[%d/%d] %s (%d comments)\n", i+1, len(ids), id, len(flat))
	}

	return nil
}

// ConsistencyStep verifies the snapshot before it is persisted.
type ConsistencyStep struct {
	stepConfig
}

// NewConsistencyStep creates a new consistency checking step.
func NewConsistencyStep(opts ...StepOption) *ConsistencyStep {
	return &ConsistencyStep{stepConfig: newStepConfig(opts)}
}

// Name returns the step name.
func (s *ConsistencyStep) Name() string {
	return "consistency"
}

// Do fails on comments that belong to no post and warns about posts
// listed without comments that nevertheless have some.
func (s *ConsistencyStep) Do(_ context.Context, snap *model.Snapshot) error {
	if err := snap.CheckConsistency(); err != nil {
		return err
	}

	for _, id := range snap.StaleCounts() {
		s.logger.Warn("post was listed without comments but has some",
			"post_id", id,
		)
	}
	return nil
}

// PersistStep replaces the archive with the snapshot.
type PersistStep struct {
	stepConfig
	writer SnapshotWriter
}

// NewPersistStep creates a new persisting step.
func NewPersistStep(writer SnapshotWriter, opts ...StepOption) *PersistStep {
	return &PersistStep{stepConfig: newStepConfig(opts), writer: writer}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do writes the snapshot.
func (s *PersistStep) Do(ctx context.Context, snap *model.Snapshot) error {
	if err := s.writer.WriteSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist snapshot of r/%s: %w", snap.Community, err)
	}
	return nil
}

// DefaultPipeline creates the standard run: posts, comments, consistency
// check and persistence. The pipeline's logger and progress writer are
// shared with the steps.
func DefaultPipeline(source Source, writer SnapshotWriter, opts ...Option) *Pipeline {
	p := New(opts...)

	stepOpts := []StepOption{
		WithStepLogger(p.logger),
		WithStepProgress(p.progress),
	}

	p.AddSteps(
		NewPostsStep(source, stepOpts...),
		NewCommentsStep(source, stepOpts...),
		NewConsistencyStep(stepOpts...),
		NewPersistStep(writer, stepOpts...),
	)

	return p
}
