// Package session issues and verifies signed member session tokens.
//
// A session token is the hand-off at the end of a successful
// authentication ceremony: a short EdDSA-signed JWT naming the member.
// Transport concerns (cookies, headers) belong to callers.
package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/platform/id"
)

// sessionEnv holds raw env values before post-parse validation.
type sessionEnv struct {
	Issuer     string        `env:"MENAGERIE_SESSION_ISSUER"      envDefault:"menagerie-auth"`
	Audience   string        `env:"MENAGERIE_SESSION_AUDIENCE"    envDefault:"menagerie"`
	PrivateKey string        `env:"MENAGERIE_SESSION_PRIVATE_KEY"`
	TTL        time.Duration `env:"MENAGERIE_SESSION_TTL"         envDefault:"24h"`
}

// Config defines how session tokens are signed and verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Claims captures the validated contents of a session token.
type Claims struct {
	MemberID  string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// sessionClaims is the internal claims type used for JWT signing and parsing.
type sessionClaims struct {
	jwt.RegisteredClaims
	MemberID string `json:"member_id"`
}

// LoadConfigFromEnv reads session signing configuration.
//
// The private key is required; a process without one cannot mint tokens
// other instances would accept. GenerateSigningKey produces a value.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw sessionEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("MENAGERIE_SESSION_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("MENAGERIE_SESSION_AUDIENCE is required")
	}
	if privateKey == "" {
		return Config{}, fmt.Errorf("MENAGERIE_SESSION_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode session private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return Config{}, fmt.Errorf("session private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return Config{}, fmt.Errorf("session ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// GenerateSigningKey mints a fresh Ed25519 signing key, base64-encoded
// for the MENAGERIE_SESSION_PRIVATE_KEY env value.
func GenerateSigningKey() (string, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(privateKey), nil
}

// Issuer signs and verifies session tokens for one relying party.
type Issuer struct {
	config Config
}

// NewIssuer builds a session issuer from a validated config.
func NewIssuer(cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("session issuer name is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("session audience is required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("session private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{config: cfg}, nil
}

// Issue mints a signed session token for a member.
func (i *Issuer) Issue(memberID string) (string, Claims, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return "", Claims{}, fmt.Errorf("member id is required")
	}

	sessionID, err := id.NewID()
	if err != nil {
		return "", Claims{}, fmt.Errorf("generate session id: %w", err)
	}
	now := i.config.Now().UTC()
	claims := Claims{
		MemberID:  memberID,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.TTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			Subject:   memberID,
			ID:        claims.SessionID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		MemberID: memberID,
	})
	signed, err := token.SignedString(i.config.Key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks a session token's signature and claims.
//
// Expiry is checked against the issuer clock rather than the library's
// so tests and clock skew policy stay in one place.
func (i *Issuer) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session token is required")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return i.config.Key.Public(), nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != i.config.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeSessionInvalid,
			"session issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, i.config.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeSessionInvalid,
			"session audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session jti is required")
	}
	if strings.TrimSpace(parsed.MemberID) == "" || parsed.MemberID != parsed.Subject {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session member claim is invalid")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeSessionInvalid, "session exp is required")
	}

	now := i.config.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeSessionExpired, "session is expired")
	}

	claims := Claims{
		MemberID:  parsed.MemberID,
		SessionID: parsed.ID,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeSessionInvalid, "session signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeSessionInvalid, "session alg is invalid")
	}
	return apperrors.New(apperrors.CodeSessionInvalid, "session token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
