// Package member defines the identity boundary the auth service depends on.
//
// Member records live in the wider Menagerie application; this service only
// stores and compares their opaque identifiers for credential ownership
// checks, and reads a display label for authenticator prompts.
package member

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
)

var (
	// ErrNotFound indicates the referenced member does not exist.
	ErrNotFound = apperrors.New(apperrors.CodeMemberNotFound, "member not found")
	// ErrEmptyDisplayName indicates a missing display label.
	ErrEmptyDisplayName = apperrors.New(apperrors.CodeMemberEmptyDisplayName, "display name is required")
)

// Member is the opaque identity reference used by ceremonies.
//
// ID is never interpreted beyond equality; DisplayName is free text shown
// inside the authenticator UI.
type Member struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Directory resolves member references for ceremonies.
//
// Implementations are expected to be the external identity store (or a
// local mirror of it); the ceremonies only need point reads.
type Directory interface {
	GetMember(ctx context.Context, memberID string) (Member, error)
}

// ValidateDisplayName enforces the label constraints authenticator UIs rely on.
func ValidateDisplayName(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyDisplayName
	}
	return nil
}
