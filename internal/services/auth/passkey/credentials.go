package passkey

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/member"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

// ErrCredentialNotFound is returned by the management operations when a
// credential does not exist or belongs to another member. Ownership is
// not disclosed separately.
var ErrCredentialNotFound = apperrors.New(apperrors.CodeNotFound, "credential not found")

// ErrEmptyLabel rejects blank device labels on rename.
var ErrEmptyLabel = apperrors.New(apperrors.CodeCredentialEmptyLabel, "credential label is required")

// ListCredentials returns a member's registered credentials for
// self-service management views.
func (s *Service) ListCredentials(ctx context.Context, memberID string) ([]storage.Credential, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, member.ErrNotFound
	}
	if _, err := s.members.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	credentials, err := s.credentials.ListCredentialsByMember(ctx, memberID)
	if err != nil {
		return nil, storageFailure("list credentials", err)
	}
	return credentials, nil
}

// RenameCredential changes the device label of a member's credential.
func (s *Service) RenameCredential(ctx context.Context, memberID string, credentialID string, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	if _, err := s.loadOwnedCredential(ctx, memberID, credentialID); err != nil {
		return err
	}
	if err := s.credentials.RenameCredential(ctx, credentialID, label, s.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return storageFailure("rename credential", err)
	}
	return nil
}

// RemoveCredential deletes a member's credential.
//
// Removing the last credential is allowed; re-registration is the
// recovery path and lives outside this service.
func (s *Service) RemoveCredential(ctx context.Context, memberID string, credentialID string) error {
	if _, err := s.loadOwnedCredential(ctx, memberID, credentialID); err != nil {
		return err
	}
	if err := s.credentials.DeleteCredential(ctx, credentialID); err != nil {
		return storageFailure("delete credential", err)
	}
	return nil
}

// loadOwnedCredential fetches a credential and checks it belongs to the
// member. A foreign credential reads as absent.
func (s *Service) loadOwnedCredential(ctx context.Context, memberID string, credentialID string) (storage.Credential, error) {
	memberID = strings.TrimSpace(memberID)
	credentialID = strings.TrimSpace(credentialID)
	if memberID == "" || credentialID == "" {
		return storage.Credential{}, ErrCredentialNotFound
	}
	record, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Credential{}, ErrCredentialNotFound
		}
		return storage.Credential{}, storageFailure("load credential", err)
	}
	if record.MemberID != memberID {
		return storage.Credential{}, ErrCredentialNotFound
	}
	return record, nil
}
