package http

import (
	"encoding/json"
	"time"
)

// BeginRegistrationRequest asks for creation options for a member.
type BeginRegistrationRequest struct {
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// FinishRegistrationRequest carries the authenticator's creation response.
//
// Response is forwarded opaquely; the ceremony layer owns its shape.
type FinishRegistrationRequest struct {
	MemberID string          `json:"member_id"`
	Label    string          `json:"label,omitempty"`
	Response json.RawMessage `json:"response"`
}

// FinishRegistrationResponse names the newly committed credential.
type FinishRegistrationResponse struct {
	CredentialID string `json:"credential_id"`
}

// FinishLoginRequest carries the authenticator's assertion response.
type FinishLoginRequest struct {
	Response json.RawMessage `json:"response"`
}

// SessionResponse is the successful login payload.
type SessionResponse struct {
	Token     string    `json:"token"`
	MemberID  string    `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CredentialSummary is the management view of a registered credential.
type CredentialSummary struct {
	CredentialID string     `json:"credential_id"`
	Label        string     `json:"label,omitempty"`
	Transports   []string   `json:"transports,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// CredentialListResponse lists a member's credentials.
type CredentialListResponse struct {
	Credentials []CredentialSummary `json:"credentials"`
}

// RenameCredentialRequest changes a credential's device label.
type RenameCredentialRequest struct {
	Label string `json:"label"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
