// Package auth defines the authentication boundary of Menagerie.
//
// It is the single place that owns passkey credentials, ceremony
// challenges, and session token issuance so the rest of the application
// can depend on stable member IDs instead of re-implementing identity
// rules.
//
// Subpackages:
//   - app: auth server wiring and lifecycle
//   - api/http: ceremony and credential management HTTP handlers
//   - passkey: registration and authentication ceremonies
//   - session: signed session token issuance and verification
//   - member: opaque member references and directory lookup
//   - storage: persistence interfaces and SQLite implementations
package auth
