// Package http exposes the passkey ceremonies as a small JSON API.
//
// Four endpoints mirror the two ceremonies: begin/finish registration and
// begin/finish login. A finished login returns a signed session token; no
// other endpoint grants one.
package http
