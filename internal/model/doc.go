// Package model defines the records archived by redditdump.
//
// This package contains the following main types:
//   - Post: one submission from a community's top listing
//   - Comment: one comment from a submission's flattened comment forest
//   - Snapshot: the posts and comments collected during a single run
//
// The field sets and their order mirror the columns of the persisted
// posts and comments tables. Downstream consumers read those columns
// verbatim, so the records carry no extra fields.
package model
