package passkey

import (
	"context"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/mossvale/menagerie/internal/services/auth/member"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

type fakeChallengeStore struct {
	mu         sync.Mutex
	records    map[string]storage.Challenge
	saveErr    error
	consumeErr error
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{records: make(map[string]storage.Challenge)}
}

func (s *fakeChallengeStore) SaveChallenge(_ context.Context, challenge storage.Challenge) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[challenge.Value] = challenge
	return nil
}

func (s *fakeChallengeStore) ConsumeChallenge(_ context.Context, value string, purpose storage.ChallengePurpose, now time.Time) (storage.Challenge, error) {
	if s.consumeErr != nil {
		return storage.Challenge{}, s.consumeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[value]
	if !ok || record.Purpose != purpose || !record.ExpiresAt.After(now) {
		return storage.Challenge{}, storage.ErrNotFound
	}
	delete(s.records, value)
	return record, nil
}

func (s *fakeChallengeStore) DeleteExpiredChallenges(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, record := range s.records {
		if !record.ExpiresAt.After(now) {
			delete(s.records, value)
		}
	}
	return nil
}

type fakeCredentialStore struct {
	records   map[string]storage.Credential
	putErr    error
	getErr    error
	listErr   error
	updateErr error
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{records: make(map[string]storage.Credential)}
}

func (s *fakeCredentialStore) PutCredential(_ context.Context, credential storage.Credential) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.records[credential.CredentialID] = credential
	return nil
}

func (s *fakeCredentialStore) GetCredential(_ context.Context, credentialID string) (storage.Credential, error) {
	if s.getErr != nil {
		return storage.Credential{}, s.getErr
	}
	record, ok := s.records[credentialID]
	if !ok {
		return storage.Credential{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *fakeCredentialStore) ListCredentialsByMember(_ context.Context, memberID string) ([]storage.Credential, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var credentials []storage.Credential
	for _, record := range s.records {
		if record.MemberID == memberID {
			credentials = append(credentials, record)
		}
	}
	return credentials, nil
}

func (s *fakeCredentialStore) UpdateCredentialSignCount(_ context.Context, credentialID string, signCount uint32, usedAt time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	record, ok := s.records[credentialID]
	if !ok {
		return storage.ErrNotFound
	}
	if signCount > record.SignCount {
		record.SignCount = signCount
	}
	record.UpdatedAt = usedAt
	record.LastUsedAt = &usedAt
	s.records[credentialID] = record
	return nil
}

func (s *fakeCredentialStore) RenameCredential(_ context.Context, credentialID string, label string, updatedAt time.Time) error {
	record, ok := s.records[credentialID]
	if !ok {
		return storage.ErrNotFound
	}
	record.Label = label
	record.UpdatedAt = updatedAt
	s.records[credentialID] = record
	return nil
}

func (s *fakeCredentialStore) DeleteCredential(_ context.Context, credentialID string) error {
	delete(s.records, credentialID)
	return nil
}

type fakeDirectory struct {
	members map[string]member.Member
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{members: make(map[string]member.Member)}
}

func (d *fakeDirectory) GetMember(_ context.Context, memberID string) (member.Member, error) {
	record, ok := d.members[memberID]
	if !ok {
		return member.Member{}, member.ErrNotFound
	}
	return record, nil
}

type fakeProvider struct {
	creation            *protocol.CredentialCreation
	creationSession     *webauthn.SessionData
	beginRegistrationErr error
	createdCredential   *webauthn.Credential
	createErr           error
	assertion           *protocol.CredentialAssertion
	assertionSession    *webauthn.SessionData
	beginLoginErr       error
	validatedCredential *webauthn.Credential
	validateErr         error
	exclusionCount      int
	callHandler         bool
}

func (p *fakeProvider) BeginRegistration(_ webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	if p.beginRegistrationErr != nil {
		return nil, nil, p.beginRegistrationErr
	}
	creation := p.creation
	for _, opt := range opts {
		opt(&creation.Response)
	}
	p.exclusionCount = len(creation.Response.CredentialExcludeList)
	return creation, p.creationSession, nil
}

func (p *fakeProvider) CreateCredential(_ webauthn.User, _ webauthn.SessionData, _ *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	return p.createdCredential, nil
}

func (p *fakeProvider) BeginDiscoverableLogin(_ ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	if p.beginLoginErr != nil {
		return nil, nil, p.beginLoginErr
	}
	return p.assertion, p.assertionSession, nil
}

func (p *fakeProvider) ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, _ webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error) {
	if p.validateErr != nil {
		return nil, nil, p.validateErr
	}
	var user webauthn.User
	if p.callHandler {
		var err error
		user, err = handler(response.RawID, response.Response.UserHandle)
		if err != nil {
			return nil, nil, err
		}
	}
	return user, p.validatedCredential, nil
}

type fakeParser struct {
	creation     *protocol.ParsedCredentialCreationData
	creationErr  error
	assertion    *protocol.ParsedCredentialAssertionData
	assertionErr error
}

func (p *fakeParser) ParseCredentialCreationResponseBytes(_ []byte) (*protocol.ParsedCredentialCreationData, error) {
	if p.creationErr != nil {
		return nil, p.creationErr
	}
	return p.creation, nil
}

func (p *fakeParser) ParseCredentialRequestResponseBytes(_ []byte) (*protocol.ParsedCredentialAssertionData, error) {
	if p.assertionErr != nil {
		return nil, p.assertionErr
	}
	return p.assertion, nil
}
