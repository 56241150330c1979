package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mossvale/menagerie/internal/services/auth/member"
)

// PutMember upserts a record in the local member mirror.
func (s *Store) PutMember(ctx context.Context, m member.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("member id is required")
	}
	if err := member.ValidateDisplayName(m.DisplayName); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO members (id, display_name, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at
`,
		m.ID,
		m.DisplayName,
		toMillis(m.CreatedAt),
		toMillis(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put member: %w", err)
	}
	return nil
}

// GetMember resolves a member reference from the local mirror.
func (s *Store) GetMember(ctx context.Context, memberID string) (member.Member, error) {
	if err := ctx.Err(); err != nil {
		return member.Member{}, err
	}
	if s == nil || s.sqlDB == nil {
		return member.Member{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(memberID) == "" {
		return member.Member{}, member.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, display_name, created_at, updated_at FROM members WHERE id = ?
`, memberID)

	var record member.Member
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(&record.ID, &record.DisplayName, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return member.Member{}, member.ErrNotFound
		}
		return member.Member{}, fmt.Errorf("get member: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
