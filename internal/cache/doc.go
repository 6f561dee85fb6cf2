// Package cache defines the versioned cache store that backs offline-shell.
// A store holds any number of named caches (the name carries the version tag);
// each cache maps a request identity (method + absolute URL, query included)
// to a full response snapshot. Two backends are provided: a disk layout of one
// file per entry (temp file + rename) and a single SQLite database. Misses are
// reported as a false flag, never as errors, so callers can tell a cold cache
// from a broken one.
package cache
