// Package state persists per-actor intake sessions as JSON snapshot files.
//
// Each actor has at most one session, stored at sessions/<actorID>.json and
// mirrored in an in-memory cache. Every write goes to a temp file followed by
// an atomic rename, so a reader never observes a partial snapshot. There is
// no write-ahead log: after a crash the store recovers the last snapshot that
// finished renaming.
package state
