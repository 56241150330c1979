// Package storage defines persistence contracts for passkey ceremonies.
//
// These interfaces exist so ceremony logic can depend on stable challenge
// and credential semantics without coupling to SQLite schema details.
package storage
