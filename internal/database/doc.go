// Package database provides the SQLite archive of a community snapshot.
//
// Each community is stored in its own file, data/<community>.sqlite, with
// two tables:
//
//	posts    (id, created_utc, title, link, author, n_comments, score, ratio, text)
//	comments (comment_id, link_id, comment_utc, comment_author, body, comment_score)
//
// Every write replaces both tables in one transaction, so the file always
// holds exactly one complete snapshot. The driver is modernc.org/sqlite,
// which is CGO-free and keeps cross-compilation simple.
package database
