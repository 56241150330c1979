package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

// authenticationFailedMessage is the single message every authentication
// failure carries. Uniformity is a security property: error text must not
// reveal whether a credential exists.
const authenticationFailedMessage = "authentication failed"

// authenticationFailure flattens a specific failure cause into the uniform
// authentication error. The cause stays on the chain for logs only.
func authenticationFailure(cause error) error {
	return apperrors.Wrap(apperrors.CodeAuthenticationFailed, authenticationFailedMessage, cause)
}

// BeginAuthentication starts a discoverable (usernameless) authentication
// ceremony.
//
// No identity is pre-selected and no allow-list is sent; any registered
// discoverable credential may answer. The challenge is persisted with an
// authentication purpose and no owner.
func (s *Service) BeginAuthentication(ctx context.Context) (*protocol.CredentialAssertion, error) {
	assertion, session, err := s.webAuthn.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationPreferred),
	)
	if err != nil {
		return nil, fmt.Errorf("begin authentication: %w", err)
	}

	if err := s.saveChallenge(ctx, session, storage.ChallengePurposeAuthentication, ""); err != nil {
		return nil, err
	}
	return assertion, nil
}

// CompleteAuthentication verifies an assertion and returns the owning
// member id so the caller can establish a session.
//
// Apart from storage unavailability, every failure surfaces as the same
// authentication error regardless of cause.
func (s *Service) CompleteAuthentication(ctx context.Context, response []byte) (string, error) {
	parsed, err := s.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return "", authenticationFailure(err)
	}

	credentialID := encodeCredentialID(parsed.RawID)
	stored, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Unregistered authenticator; a legitimate outcome that must
			// look exactly like a bad signature to the caller.
			return "", authenticationFailure(apperrors.New(apperrors.CodeCredentialNotFound, "credential not found"))
		}
		return "", storageFailure("load credential", err)
	}

	challenge, err := s.consumeChallenge(ctx, parsed.Response.CollectedClientData.Challenge, storage.ChallengePurposeAuthentication)
	if err != nil {
		if errors.Is(err, ErrChallengeInvalid) {
			return "", authenticationFailure(err)
		}
		return "", err
	}

	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(challenge.SessionJSON), &session); err != nil {
		return "", authenticationFailure(err)
	}

	_, credential, err := s.webAuthn.ValidatePasskeyLogin(s.discoverableHandler(ctx, stored), session, parsed)
	if err != nil {
		return "", authenticationFailure(err)
	}

	if credential.Authenticator.CloneWarning {
		// A nonzero stored counter failed to advance. Authenticators
		// without counter support report zero forever and never trip this.
		s.logger.WarnContext(ctx, "credential sign counter did not advance",
			"credential_id", credentialID,
			"stored_count", stored.SignCount,
			"reported_count", parsed.Response.AuthenticatorData.Counter,
		)
		if s.config.StrictCloneCheck {
			return "", authenticationFailure(fmt.Errorf("sign counter did not advance for credential %s", credentialID))
		}
	}

	if err := s.credentials.UpdateCredentialSignCount(ctx, credentialID, credential.Authenticator.SignCount, s.clock().UTC()); err != nil {
		return "", storageFailure("update credential sign count", err)
	}

	return stored.MemberID, nil
}

// discoverableHandler resolves the user handle echoed by a discoverable
// credential against the credential row already loaded for this ceremony.
func (s *Service) discoverableHandler(ctx context.Context, stored storage.Credential) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		if string(userHandle) != stored.MemberID {
			return nil, fmt.Errorf("user handle does not match credential owner")
		}
		record, err := s.members.GetMember(ctx, stored.MemberID)
		if err != nil {
			return nil, err
		}
		credential, err := decodeStoredCredential(stored)
		if err != nil {
			return nil, err
		}
		return &ceremonyUser{member: record, credentials: []webauthn.Credential{credential}}, nil
	}
}
