// Package pipeline runs the stages of one archive run in sequence.
//
// A run collects the top posts of a community, then the comments of every
// post, checks that the two tables agree, and finally replaces the archive.
// Each stage is a Step that receives the snapshot built so far. The first
// failing step stops the run, so an incomplete snapshot is never persisted.
package pipeline
