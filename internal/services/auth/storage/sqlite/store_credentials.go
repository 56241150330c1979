package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

const transportSeparator = ","

// PutCredential inserts a newly registered credential.
func (s *Store) PutCredential(ctx context.Context, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.MemberID) == "" {
		return fmt.Errorf("member id is required")
	}
	if len(credential.PublicKey) == 0 {
		return fmt.Errorf("credential public key is required")
	}

	lastUsed := sql.NullInt64{}
	if credential.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*credential.LastUsedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (credential_id, member_id, public_key, sign_count, transports, label, created_at, updated_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		credential.CredentialID,
		credential.MemberID,
		credential.PublicKey,
		int64(credential.SignCount),
		strings.Join(credential.Transports, transportSeparator),
		credential.Label,
		toMillis(credential.CreatedAt),
		toMillis(credential.UpdatedAt),
		lastUsed,
	)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential fetches a stored credential by its authenticator-assigned id.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, member_id, public_key, sign_count, transports, label, created_at, updated_at, last_used_at
FROM credentials
WHERE credential_id = ?
`, credentialID)

	record, err := scanCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return record, nil
}

// ListCredentialsByMember returns every credential a member has registered.
func (s *Store) ListCredentialsByMember(ctx context.Context, memberID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(memberID) == "" {
		return nil, fmt.Errorf("member id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, member_id, public_key, sign_count, transports, label, created_at, updated_at, last_used_at
FROM credentials
WHERE member_id = ?
ORDER BY created_at
`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var credentials []storage.Credential
	for rows.Next() {
		record, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}

// UpdateCredentialSignCount records a successful assertion.
//
// MAX keeps the stored counter monotonic even if a caller passes a stale
// value; the clone policy above this layer decides what a stale counter
// means.
func (s *Store) UpdateCredentialSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials
SET sign_count = MAX(sign_count, ?), updated_at = ?, last_used_at = ?
WHERE credential_id = ?
`,
		int64(signCount),
		toMillis(usedAt),
		toMillis(usedAt),
		credentialID,
	)
	if err != nil {
		return fmt.Errorf("update credential sign count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential sign count: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RenameCredential updates the human-readable device label.
func (s *Store) RenameCredential(ctx context.Context, credentialID string, label string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials SET label = ?, updated_at = ? WHERE credential_id = ?
`, label, toMillis(updatedAt), credentialID)
	if err != nil {
		return fmt.Errorf("rename credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename credential: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCredential removes a credential record.
func (s *Store) DeleteCredential(ctx context.Context, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credentials WHERE credential_id = ?`, credentialID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func scanCredential(scan func(dest ...any) error) (storage.Credential, error) {
	var record storage.Credential
	var signCount int64
	var transports string
	var createdAt int64
	var updatedAt int64
	var lastUsed sql.NullInt64
	if err := scan(
		&record.CredentialID,
		&record.MemberID,
		&record.PublicKey,
		&signCount,
		&transports,
		&record.Label,
		&createdAt,
		&updatedAt,
		&lastUsed,
	); err != nil {
		return storage.Credential{}, err
	}
	record.SignCount = uint32(signCount)
	if transports != "" {
		record.Transports = strings.Split(transports, transportSeparator)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		record.LastUsedAt = &value
	}
	return record, nil
}
