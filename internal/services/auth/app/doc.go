// Package server composes and runs the auth process boundary.
//
// It hosts the passkey ceremony HTTP API over a single SQLite store so
// challenge, credential, and member state share one source of truth.
package server
