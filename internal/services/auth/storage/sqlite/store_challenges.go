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

// SaveChallenge persists a single-use ceremony challenge.
func (s *Store) SaveChallenge(ctx context.Context, challenge storage.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(challenge.Value) == "" {
		return fmt.Errorf("challenge value is required")
	}
	if challenge.Purpose != storage.ChallengePurposeRegistration && challenge.Purpose != storage.ChallengePurposeAuthentication {
		return fmt.Errorf("challenge purpose %q is not recognized", challenge.Purpose)
	}
	if strings.TrimSpace(challenge.SessionJSON) == "" {
		return fmt.Errorf("challenge session json is required")
	}
	if challenge.ExpiresAt.IsZero() {
		return fmt.Errorf("challenge expiry is required")
	}

	memberID := sql.NullString{}
	if strings.TrimSpace(challenge.MemberID) != "" {
		memberID = sql.NullString{String: challenge.MemberID, Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO challenges (value, purpose, member_id, session_json, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		challenge.Value,
		string(challenge.Purpose),
		memberID,
		challenge.SessionJSON,
		toMillis(challenge.CreatedAt),
		toMillis(challenge.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

// ConsumeChallenge atomically retrieves and deletes a challenge record.
//
// The purpose and expiry checks live in the WHERE clause of a single
// DELETE ... RETURNING statement, so two racing completions cannot both
// observe the row, and an expired or mismatched record is indistinguishable
// from an absent one.
func (s *Store) ConsumeChallenge(ctx context.Context, value string, purpose storage.ChallengePurpose, now time.Time) (storage.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return storage.Challenge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Challenge{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(value) == "" {
		return storage.Challenge{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
DELETE FROM challenges
WHERE value = ? AND purpose = ? AND expires_at > ?
RETURNING value, purpose, member_id, session_json, created_at, expires_at
`,
		value,
		string(purpose),
		toMillis(now),
	)

	var record storage.Challenge
	var rawPurpose string
	var memberID sql.NullString
	var createdAt int64
	var expiresAt int64
	if err := row.Scan(&record.Value, &rawPurpose, &memberID, &record.SessionJSON, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Challenge{}, storage.ErrNotFound
		}
		return storage.Challenge{}, fmt.Errorf("consume challenge: %w", err)
	}

	record.Purpose = storage.ChallengePurpose(rawPurpose)
	if memberID.Valid {
		record.MemberID = memberID.String
	}
	record.CreatedAt = fromMillis(createdAt)
	record.ExpiresAt = fromMillis(expiresAt)
	return record, nil
}

// DeleteExpiredChallenges removes challenges past their expiry.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= ?`, toMillis(now)); err != nil {
		return fmt.Errorf("delete expired challenges: %w", err)
	}
	return nil
}
