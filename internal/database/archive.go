package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/redditdump/internal/model"
)

// Table names of the archive.
const (
	PostsTable    = "posts"
	CommentsTable = "comments"
)

// ErrUnknownTable is returned when a table other than posts or comments is requested.
var ErrUnknownTable = errors.New("unknown table")

// ErrArchiveNotFound is returned when the archive must exist but does not.
var ErrArchiveNotFound = errors.New("archive not found")

// Schema of both tables. Column order is part of the archive format.
const (
	postsSchema = `CREATE TABLE posts (
		id TEXT PRIMARY KEY,
		created_utc REAL NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		author TEXT NOT NULL,
		n_comments INTEGER NOT NULL,
		score INTEGER NOT NULL,
		ratio REAL NOT NULL,
		text TEXT NOT NULL
	)`

	commentsSchema = `CREATE TABLE comments (
		comment_id TEXT PRIMARY KEY,
		link_id TEXT NOT NULL,
		comment_utc REAL NOT NULL,
		comment_author TEXT NOT NULL,
		body TEXT NOT NULL,
		comment_score INTEGER NOT NULL
	)`

	insertPost = `INSERT INTO posts
		(id, created_utc, title, link, author, n_comments, score, ratio, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertComment = `INSERT INTO comments
		(comment_id, link_id, comment_utc, comment_author, body, comment_score)
		VALUES (?, ?, ?, ?, ?, ?)`

	selectPosts = `SELECT id, created_utc, title, link, author, n_comments, score, ratio, text
		FROM posts ORDER BY rowid`

	selectComments = `SELECT comment_id, link_id, comment_utc, comment_author, body, comment_score
		FROM comments ORDER BY rowid`
)

// Archive is the SQLite file holding one community snapshot.
type Archive struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// path is the path to the SQLite file.
	path string
}

// Options configures Archive behavior.
type Options struct {
	// CreateIfNotExists creates the data directory and file if they don't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. The archive is a single
	// exported file, so this is off by default.
	EnableWAL bool
}

// DefaultOptions returns the default archive options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
	}
}

// Open opens or creates the archive of a community inside dataDir.
// The file is named <community>.sqlite. If CreateIfNotExists is false and
// the file doesn't exist, ErrArchiveNotFound is returned.
func Open(dataDir, community string, opts Options) (*Archive, error) {
	path := filepath.Join(dataDir, community+".sqlite")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check archive path: %w", err)
		}
	} else if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// The driver creates a missing file on first use, so the stat above is
	// the only guard for CreateIfNotExists=false.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &Archive{db: db, path: path}, nil
}

// Path returns the path of the archive file.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// WriteSnapshot replaces both tables with the contents of snap.
// Rows are inserted in snapshot order. Everything happens in one
// transaction; on failure the previous snapshot is left untouched.
func (a *Archive) WriteSnapshot(ctx context.Context, snap *model.Snapshot) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + PostsTable,
		postsSchema,
		"DROP TABLE IF EXISTS " + CommentsTable,
		commentsSchema,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to recreate tables: %w", err)
		}
	}

	if err = insertPosts(ctx, tx, snap.Posts); err != nil {
		return err
	}
	if err = insertComments(ctx, tx, snap.Comments); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func insertPosts(ctx context.Context, tx *sql.Tx, posts []model.Post) error {
	stmt, err := tx.PrepareContext(ctx, insertPost)
	if err != nil {
		return fmt.Errorf("failed to prepare post insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range posts {
		if _, err := stmt.ExecContext(ctx,
			p.ID,
			p.CreatedUTC,
			p.Title,
			p.Link,
			model.NormalizeAuthor(p.Author),
			p.NumComments,
			p.Score,
			p.Ratio,
			p.Text,
		); err != nil {
			return fmt.Errorf("failed to insert post %s: %w", p.ID, err)
		}
	}
	return nil
}

func insertComments(ctx context.Context, tx *sql.Tx, comments []model.Comment) error {
	stmt, err := tx.PrepareContext(ctx, insertComment)
	if err != nil {
		return fmt.Errorf("failed to prepare comment insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range comments {
		if _, err := stmt.ExecContext(ctx,
			c.CommentID,
			c.LinkID,
			c.CommentUTC,
			model.NormalizeAuthor(c.CommentAuthor),
			c.Body,
			c.CommentScore,
		); err != nil {
			return fmt.Errorf("failed to insert comment %s: %w", c.CommentID, err)
		}
	}
	return nil
}

// ReadPosts returns all posts in insertion order.
func (a *Archive) ReadPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := a.db.QueryContext(ctx, selectPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(
			&p.ID,
			&p.CreatedUTC,
			&p.Title,
			&p.Link,
			&p.Author,
			&p.NumComments,
			&p.Score,
			&p.Ratio,
			&p.Text,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ReadComments returns all comments in insertion order.
func (a *Archive) ReadComments(ctx context.Context) ([]model.Comment, error) {
	rows, err := a.db.QueryContext(ctx, selectComments)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.CommentID,
			&c.LinkID,
			&c.CommentUTC,
			&c.CommentAuthor,
			&c.Body,
			&c.CommentScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Columns returns the column names of a table in declaration order.
func (a *Archive) Columns(ctx context.Context, table string) ([]string, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// Count returns the number of rows in a table.
func (a *Archive) Count(ctx context.Context, table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}

	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Digest returns the hex SHA3-256 of both tables' rows in insertion order.
// Two archives holding the same snapshot have the same digest.
func (a *Archive) Digest(ctx context.Context) (string, error) {
	posts, err := a.ReadPosts(ctx)
	if err != nil {
		return "", err
	}
	comments, err := a.ReadComments(ctx)
	if err != nil {
		return "", err
	}

	h := sha3.New256()
	writeField(h, PostsTable)
	for _, p := range posts {
		writeField(h, p.ID)
		writeField(h, formatFloat(p.CreatedUTC))
		writeField(h, p.Title)
		writeField(h, p.Link)
		writeField(h, p.Author)
		writeField(h, strconv.Itoa(p.NumComments))
		writeField(h, strconv.Itoa(p.Score))
		writeField(h, formatFloat(p.Ratio))
		writeField(h, p.Text)
	}
	writeField(h, CommentsTable)
	for _, c := range comments {
		writeField(h, c.CommentID)
		writeField(h, c.LinkID)
		writeField(h, formatFloat(c.CommentUTC))
		writeField(h, c.CommentAuthor)
		writeField(h, c.Body)
		writeField(h, strconv.Itoa(c.CommentScore))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField writes a length-prefixed field so that field boundaries
// cannot be shifted between rows.
func writeField(w io.Writer, s string) {
	_, _ = io.WriteString(w, strconv.Itoa(len(s)))
	_, _ = io.WriteString(w, ":")
	_, _ = io.WriteString(w, s)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func checkTable(table string) error {
	if table != PostsTable && table != CommentsTable {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}
