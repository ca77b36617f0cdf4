// Package catalog persists seasons, their ordered video files and the
// forced-subscription channel allow-list.
//
// Two families of backend satisfy Store: SQLStore (SQLite by default,
// PostgreSQL or MySQL for shared deployments) and JSONStore, a single
// document rewritten atomically under a cross-process file lock. Every
// mutating call is durable before it returns. AppendFile assigns sequence
// numbers as max+1 under a per-season lock, so concurrent appends to one
// season still produce 1..N.
//
// Errors carry the services taxonomy (ErrNotFound, ErrAlreadyExists,
// ErrValidation) so callers can choose a reply without inspecting driver
// errors.
package catalog
