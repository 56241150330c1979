// Package sqlite implements the auth storage contracts over a single
// SQLite database file.
package sqlite
