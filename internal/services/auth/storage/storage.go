package storage

import (
	"context"
	"time"

	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/member"
)

// ErrNotFound indicates a requested record is missing.
//
// ConsumeChallenge deliberately returns this single error for absent,
// expired, and wrong-purpose challenges so callers cannot build an oracle
// out of the distinction.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ChallengePurpose tags a challenge with the ceremony it belongs to.
type ChallengePurpose string

const (
	ChallengePurposeRegistration   ChallengePurpose = "registration"
	ChallengePurposeAuthentication ChallengePurpose = "authentication"
)

// Challenge stores a single-use WebAuthn ceremony challenge.
//
// Value is the base64url challenge the authenticator signs over and the
// client echoes back; it is the primary key. MemberID is set for
// registration challenges and empty for authentication challenges, where
// any discoverable credential may answer. SessionJSON carries the ceremony
// session state the verifier needs at completion.
type Challenge struct {
	Value       string
	Purpose     ChallengePurpose
	MemberID    string
	SessionJSON string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Credential stores one registered authenticator for a member.
//
// PublicKey is written once at registration and never mutated. SignCount
// only moves forward; UpdateCredentialSignCount enforces that.
type Credential struct {
	CredentialID string
	MemberID     string
	PublicKey    []byte
	SignCount    uint32
	Transports   []string
	Label        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastUsedAt   *time.Time
}

// ChallengeStore persists single-use ceremony challenges.
type ChallengeStore interface {
	// SaveChallenge persists a challenge record. Safe for concurrent use
	// across distinct challenge values.
	SaveChallenge(ctx context.Context, challenge Challenge) error
	// ConsumeChallenge atomically retrieves and deletes a challenge. A
	// second call for the same value, an expired record, or a purpose
	// mismatch all return ErrNotFound.
	ConsumeChallenge(ctx context.Context, value string, purpose ChallengePurpose, now time.Time) (Challenge, error)
	// DeleteExpiredChallenges sweeps expired records. Housekeeping only;
	// ConsumeChallenge never trusts a record past its expiry.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

// CredentialStore persists registered authenticator credentials.
type CredentialStore interface {
	// PutCredential inserts a new credential. Fails if the credential id
	// already exists.
	PutCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	// ListCredentialsByMember returns every credential a member has
	// registered, for exclusion lists during registration.
	ListCredentialsByMember(ctx context.Context, memberID string) ([]Credential, error)
	// UpdateCredentialSignCount records a successful assertion. The stored
	// counter never decreases regardless of the value passed.
	UpdateCredentialSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error
	// RenameCredential updates the human-readable device label.
	RenameCredential(ctx context.Context, credentialID string, label string, updatedAt time.Time) error
	DeleteCredential(ctx context.Context, credentialID string) error
}

// MemberStore persists the local mirror of member identity records.
type MemberStore interface {
	member.Directory
	PutMember(ctx context.Context, m member.Member) error
}
