package passkey

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

func assertionFixtures(challenge string) (*protocol.CredentialAssertion, *webauthn.SessionData) {
	assertion := &protocol.CredentialAssertion{}
	assertion.Response.Challenge = protocol.URLEncodedBase64(challenge)
	session := &webauthn.SessionData{Challenge: challenge}
	return assertion, session
}

func parsedAssertion(challenge string, rawID []byte, counter uint32) *protocol.ParsedCredentialAssertionData {
	parsed := &protocol.ParsedCredentialAssertionData{}
	parsed.RawID = rawID
	parsed.Response.CollectedClientData.Challenge = challenge
	parsed.Response.AuthenticatorData.Counter = counter
	parsed.Response.UserHandle = []byte("member-1")
	return parsed
}

// registeredEnv seeds a test environment with one stored credential for
// member-1 and a pending authentication challenge.
func registeredEnv(t *testing.T, storedCount uint32) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t)
	credentialID := encodeCredentialID([]byte("cred-raw"))
	env.credentials.records[credentialID] = storage.Credential{
		CredentialID: credentialID,
		MemberID:     "member-1",
		PublicKey:    []byte("pk"),
		SignCount:    storedCount,
		CreatedAt:    env.now,
		UpdatedAt:    env.now,
	}
	env.provider.assertion, env.provider.assertionSession = assertionFixtures("auth-1")
	if _, err := env.svc.BeginAuthentication(context.Background()); err != nil {
		t.Fatalf("BeginAuthentication: %v", err)
	}
	return env, credentialID
}

func TestBeginAuthenticationPersistsUnownedChallenge(t *testing.T) {
	env := newTestEnv(t)
	env.provider.assertion, env.provider.assertionSession = assertionFixtures("auth-1")

	assertion, err := env.svc.BeginAuthentication(context.Background())
	if err != nil {
		t.Fatalf("BeginAuthentication: %v", err)
	}
	if assertion == nil {
		t.Fatal("expected assertion options")
	}

	record, ok := env.challenges.records["auth-1"]
	if !ok {
		t.Fatal("challenge was not persisted")
	}
	if record.Purpose != storage.ChallengePurposeAuthentication {
		t.Fatalf("Purpose = %q, want authentication", record.Purpose)
	}
	if record.MemberID != "" {
		t.Fatalf("MemberID = %q, want empty for usernameless begin", record.MemberID)
	}
}

func TestCompleteAuthenticationUpdatesSignCount(t *testing.T) {
	env, credentialID := registeredEnv(t, 3)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 4)
	env.provider.validatedCredential = &webauthn.Credential{
		ID:            []byte("cred-raw"),
		Authenticator: webauthn.Authenticator{SignCount: 4},
	}

	memberID, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("CompleteAuthentication: %v", err)
	}
	if memberID != "member-1" {
		t.Fatalf("member id = %q, want member-1", memberID)
	}

	record := env.credentials.records[credentialID]
	if record.SignCount != 4 {
		t.Fatalf("SignCount = %d, want 4", record.SignCount)
	}
	if record.LastUsedAt == nil || !record.LastUsedAt.Equal(env.now) {
		t.Fatalf("LastUsedAt = %v, want %v", record.LastUsedAt, env.now)
	}
}

func TestCompleteAuthenticationZeroCounterTolerated(t *testing.T) {
	env, credentialID := registeredEnv(t, 0)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 0)
	// Counters stuck at zero mean the authenticator does not implement
	// them; go-webauthn reports no clone warning for the 0/0 case.
	env.provider.validatedCredential = &webauthn.Credential{
		ID:            []byte("cred-raw"),
		Authenticator: webauthn.Authenticator{SignCount: 0, CloneWarning: false},
	}

	if _, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("CompleteAuthentication: %v", err)
	}
	if got := env.credentials.records[credentialID].SignCount; got != 0 {
		t.Fatalf("SignCount = %d, want 0", got)
	}
}

func TestCompleteAuthenticationCloneWarningLenient(t *testing.T) {
	env, credentialID := registeredEnv(t, 9)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 5)
	env.provider.validatedCredential = &webauthn.Credential{
		ID:            []byte("cred-raw"),
		Authenticator: webauthn.Authenticator{SignCount: 9, CloneWarning: true},
	}

	memberID, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("CompleteAuthentication: %v", err)
	}
	if memberID != "member-1" {
		t.Fatalf("member id = %q, want member-1", memberID)
	}
	// The stored counter never regresses.
	if got := env.credentials.records[credentialID].SignCount; got != 9 {
		t.Fatalf("SignCount = %d, want 9", got)
	}
}

func TestCompleteAuthenticationCloneWarningStrict(t *testing.T) {
	env, _ := registeredEnv(t, 9)
	env.svc.config.StrictCloneCheck = true
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 5)
	env.provider.validatedCredential = &webauthn.Credential{
		ID:            []byte("cred-raw"),
		Authenticator: webauthn.Authenticator{SignCount: 9, CloneWarning: true},
	}

	_, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if apperrors.GetCode(err) != apperrors.CodeAuthenticationFailed {
		t.Fatalf("error code = %v, want CodeAuthenticationFailed", apperrors.GetCode(err))
	}
}

func TestCompleteAuthenticationFailuresAreUniform(t *testing.T) {
	// Unknown credential, bad signature, and spent challenge must be
	// indistinguishable to the caller: same code, same message.
	var failures []error

	env, _ := registeredEnv(t, 0)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-unknown"), 1)
	_, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("unknown credential should fail")
	}
	failures = append(failures, err)

	env, _ = registeredEnv(t, 0)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 1)
	env.provider.validateErr = errors.New("signature verification failed")
	_, err = env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("bad signature should fail")
	}
	failures = append(failures, err)

	env, _ = registeredEnv(t, 0)
	env.parser.assertion = parsedAssertion("auth-spent", []byte("cred-raw"), 1)
	_, err = env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("unknown challenge should fail")
	}
	failures = append(failures, err)

	for i, failure := range failures {
		if apperrors.GetCode(failure) != apperrors.CodeAuthenticationFailed {
			t.Fatalf("failure %d code = %v, want CodeAuthenticationFailed", i, apperrors.GetCode(failure))
		}
		if failure.Error() != authenticationFailedMessage {
			t.Fatalf("failure %d message = %q, want %q", i, failure.Error(), authenticationFailedMessage)
		}
	}
}

func TestCompleteAuthenticationReplayFails(t *testing.T) {
	env, _ := registeredEnv(t, 0)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 1)
	env.provider.validatedCredential = &webauthn.Credential{
		ID:            []byte("cred-raw"),
		Authenticator: webauthn.Authenticator{SignCount: 1},
	}

	if _, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("first CompleteAuthentication: %v", err)
	}
	_, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if apperrors.GetCode(err) != apperrors.CodeAuthenticationFailed {
		t.Fatalf("replay error code = %v, want CodeAuthenticationFailed", apperrors.GetCode(err))
	}
}

func TestCompleteAuthenticationUserHandleMismatch(t *testing.T) {
	env, _ := registeredEnv(t, 0)
	parsed := parsedAssertion("auth-1", []byte("cred-raw"), 1)
	parsed.Response.UserHandle = []byte("member-2")
	env.parser.assertion = parsed
	env.provider.callHandler = true
	env.provider.validatedCredential = &webauthn.Credential{ID: []byte("cred-raw")}

	_, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if apperrors.GetCode(err) != apperrors.CodeAuthenticationFailed {
		t.Fatalf("error code = %v, want CodeAuthenticationFailed", apperrors.GetCode(err))
	}
}

func TestCompleteAuthenticationStorageOutageIsDistinct(t *testing.T) {
	env, _ := registeredEnv(t, 0)
	env.parser.assertion = parsedAssertion("auth-1", []byte("cred-raw"), 1)
	env.credentials.getErr = errors.New("database is locked")

	_, err := env.svc.CompleteAuthentication(context.Background(), []byte(`{}`))
	if apperrors.GetCode(err) != apperrors.CodeStorage {
		t.Fatalf("error code = %v, want CodeStorage", apperrors.GetCode(err))
	}
}

func TestChallengeSweepRemovesExpired(t *testing.T) {
	env := newTestEnv(t)
	env.provider.assertion, env.provider.assertionSession = assertionFixtures("auth-1")
	if _, err := env.svc.BeginAuthentication(context.Background()); err != nil {
		t.Fatalf("BeginAuthentication: %v", err)
	}

	later := env.now.Add(10 * time.Minute)
	if err := env.challenges.DeleteExpiredChallenges(context.Background(), later); err != nil {
		t.Fatalf("DeleteExpiredChallenges: %v", err)
	}
	if len(env.challenges.records) != 0 {
		t.Fatal("expired challenge should be swept")
	}
}
