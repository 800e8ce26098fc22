package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// GetRoster retrieves the members of a group in join order.
func (s *SQLiteStore) GetRoster(ctx context.Context, groupID string) ([]models.RosterMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, nickname
		 FROM group_members
		 WHERE group_id = ?
		 ORDER BY joined_at, rowid`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	defer rows.Close()

	roster := []models.RosterMember{}
	for rows.Next() {
		var m models.RosterMember
		if err := rows.Scan(&m.UserID, &m.Nickname); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		roster = append(roster, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return roster, nil
}

// AddGroupMember inserts a member, creating the group row on first use.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, groupID string, member models.RosterMember) error {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO groups (id, name, created_at) VALUES (?, ?, ?)",
		groupID, groupID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, nickname, joined_at) VALUES (?, ?, ?, ?)",
		groupID, member.UserID, member.Nickname, now,
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
