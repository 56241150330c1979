package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/member"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

// ErrChallengeInvalid covers every way a ceremony challenge can fail to
// consume: absent, expired, wrong purpose, or bound to another member. The
// causes are deliberately not distinguished.
var ErrChallengeInvalid = apperrors.New(apperrors.CodeChallengeInvalid, "challenge is invalid or expired")

// BeginRegistration starts a registration ceremony for an existing member.
//
// The returned options are forwarded verbatim to the client authenticator
// API. The embedded challenge is persisted with a registration purpose and
// the member as owner, which is the only state carried to completion.
func (s *Service) BeginRegistration(ctx context.Context, memberID string, displayLabel string) (*protocol.CredentialCreation, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, member.ErrNotFound
	}

	record, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(displayLabel) != "" {
		record.DisplayName = displayLabel
	}

	user, err := s.loadCeremonyUser(ctx, record)
	if err != nil {
		return nil, storageFailure("load member credentials", err)
	}

	// Attestation stays "none": possession plus signature is the trust
	// model here, not device provenance.
	options := []webauthn.RegistrationOption{
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		}),
	}
	if len(user.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(user.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.webAuthn.BeginRegistration(user, options...)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	if err := s.saveChallenge(ctx, session, storage.ChallengePurposeRegistration, memberID); err != nil {
		return nil, err
	}
	return creation, nil
}

// CompleteRegistration verifies an authenticator's creation response and
// commits the new credential.
//
// Replaying a response fails at the challenge consume step; nothing is
// committed unless verification succeeds first.
func (s *Service) CompleteRegistration(ctx context.Context, memberID string, response []byte, deviceLabel string) (string, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return "", ErrChallengeInvalid
	}

	parsed, err := s.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeVerificationFailed, "credential verification failed", err)
	}

	challenge, err := s.consumeChallenge(ctx, parsed.Response.CollectedClientData.Challenge, storage.ChallengePurposeRegistration)
	if err != nil {
		return "", err
	}
	if challenge.MemberID != memberID {
		// Someone else's in-flight registration; fail exactly like a
		// missing challenge.
		return "", ErrChallengeInvalid
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(challenge.SessionJSON), &session); err != nil {
		return "", apperrors.Wrap(apperrors.CodeVerificationFailed, "credential verification failed", err)
	}

	record, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return "", err
	}
	user, err := s.loadCeremonyUser(ctx, record)
	if err != nil {
		return "", storageFailure("load member credentials", err)
	}

	credential, err := s.webAuthn.CreateCredential(user, session, parsed)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeVerificationFailed, "credential verification failed", err)
	}

	credentialID := encodeCredentialID(credential.ID)
	now := s.clock().UTC()
	if err := s.credentials.PutCredential(ctx, storage.Credential{
		CredentialID: credentialID,
		MemberID:     memberID,
		PublicKey:    credential.PublicKey,
		SignCount:    credential.Authenticator.SignCount,
		Transports:   transportStrings(credential.Transport),
		Label:        strings.TrimSpace(deviceLabel),
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return "", storageFailure("store credential", err)
	}

	return credentialID, nil
}

func (s *Service) loadCeremonyUser(ctx context.Context, record member.Member) (*ceremonyUser, error) {
	stored, err := s.credentials.ListCredentialsByMember(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	credentials := make([]webauthn.Credential, 0, len(stored))
	for _, row := range stored {
		credential, err := decodeStoredCredential(row)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	return &ceremonyUser{member: record, credentials: credentials}, nil
}

func (s *Service) saveChallenge(ctx context.Context, session *webauthn.SessionData, purpose storage.ChallengePurpose, memberID string) error {
	if session == nil || session.Challenge == "" {
		return fmt.Errorf("ceremony session is missing a challenge")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode ceremony session: %w", err)
	}
	now := s.clock().UTC()
	if err := s.challenges.SaveChallenge(ctx, storage.Challenge{
		Value:       session.Challenge,
		Purpose:     purpose,
		MemberID:    memberID,
		SessionJSON: string(payload),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.config.ChallengeTTL),
	}); err != nil {
		return storageFailure("store challenge", err)
	}
	return nil
}

func (s *Service) consumeChallenge(ctx context.Context, value string, purpose storage.ChallengePurpose) (storage.Challenge, error) {
	record, err := s.challenges.ConsumeChallenge(ctx, value, purpose, s.clock().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Challenge{}, ErrChallengeInvalid
		}
		return storage.Challenge{}, storageFailure("consume challenge", err)
	}
	return record, nil
}
