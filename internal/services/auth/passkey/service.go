package passkey

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/member"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

// provider is the slice of the WebAuthn library the ceremonies use.
// Tests substitute it to drive verifier outcomes directly.
type provider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type parser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultParser struct{}

func (defaultParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Service runs passkey registration and authentication ceremonies.
//
// It owns when the cryptographic verifier is invoked and what gets
// persisted; challenge and credential durability live behind the storage
// contracts.
type Service struct {
	webAuthn    provider
	parser      parser
	challenges  storage.ChallengeStore
	credentials storage.CredentialStore
	members     member.Directory
	config      Config
	clock       func() time.Time
	logger      *slog.Logger
}

// NewService builds a ceremony service for the given relying party config.
func NewService(cfg Config, challenges storage.ChallengeStore, credentials storage.CredentialStore, members member.Directory) (*Service, error) {
	if challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if members == nil {
		return nil, fmt.Errorf("member directory is required")
	}
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &Service{
		webAuthn:    webAuthn,
		parser:      defaultParser{},
		challenges:  challenges,
		credentials: credentials,
		members:     members,
		config:      cfg,
		clock:       time.Now,
		logger:      slog.Default(),
	}, nil
}

// ceremonyUser adapts a member record to the webauthn.User contract.
//
// The user handle is the raw member id; it is the stable opaque value
// discoverable credentials echo back at login.
type ceremonyUser struct {
	member      member.Member
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.member.ID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.member.ID
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.member.DisplayName
}

func (u *ceremonyUser) WebAuthnIcon() string {
	return ""
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

// encodeCredentialID renders the authenticator-assigned id as the stable
// string key used across storage and transport.
func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeStoredCredential(record storage.Credential) (webauthn.Credential, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(record.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id %s: %w", record.CredentialID, err)
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(record.Transports))
	for _, transport := range record.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(transport))
	}
	return webauthn.Credential{
		ID:        rawID,
		PublicKey: record.PublicKey,
		Transport: transports,
		Authenticator: webauthn.Authenticator{
			SignCount: record.SignCount,
		},
	}, nil
}

func transportStrings(transports []protocol.AuthenticatorTransport) []string {
	if len(transports) == 0 {
		return nil
	}
	values := make([]string, 0, len(transports))
	for _, transport := range transports {
		values = append(values, string(transport))
	}
	return values
}

// storageFailure wraps backend unavailability; it is the only ceremony
// error a caller may reasonably retry (after a fresh begin).
func storageFailure(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeStorage, message, cause)
}
