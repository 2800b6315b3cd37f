package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smiling-critters/critter-gateway/internal/filter"
)

// Flag is a safety event awaiting parent review.
type Flag struct {
	ID             int64        `json:"id"`
	SessionID      uuid.UUID    `json:"session_id"`
	MessageID      *int64       `json:"message_id,omitempty"`
	Level          filter.Level `json:"level"`
	Reason         string       `json:"reason"`
	Note           string       `json:"note"`
	CreatedAt      time.Time    `json:"created_at"`
	Acknowledged   bool         `json:"acknowledged"`
	MessageContent string       `json:"message_content,omitempty"`
}

func (s *Store) SaveFlag(ctx context.Context, sessionID uuid.UUID, messageID int64, level filter.Level, reason, note string) (int64, error) {
	var msgID *int64
	if messageID > 0 {
		msgID = &messageID
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO safety_flags (session_id, message_id, level, reason, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, sessionID, msgID, string(level), reason, note).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert flag: %w", err)
	}
	return id, nil
}

const flagQuery = `
	SELECT f.id, f.session_id, f.message_id, f.level, f.reason, f.note,
	       f.created_at, f.acknowledged, COALESCE(m.content, '')
	FROM safety_flags f
	LEFT JOIN messages m ON f.message_id = m.id
`

// UnacknowledgedFlags returns open flags, newest first.
func (s *Store) UnacknowledgedFlags(ctx context.Context) ([]Flag, error) {
	rows, err := s.db.Query(ctx, flagQuery+`WHERE NOT f.acknowledged ORDER BY f.created_at DESC, f.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	return collectFlags(rows)
}

// AllFlags returns up to limit flags, newest first.
func (s *Store) AllFlags(ctx context.Context, limit int) ([]Flag, error) {
	rows, err := s.db.Query(ctx, flagQuery+`ORDER BY f.created_at DESC, f.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	return collectFlags(rows)
}

func (s *Store) AcknowledgeFlag(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE safety_flags SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("acknowledge flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectFlags(rows pgx.Rows) ([]Flag, error) {
	defer rows.Close()
	var out []Flag
	for rows.Next() {
		var (
			f     Flag
			level string
		)
		if err := rows.Scan(&f.ID, &f.SessionID, &f.MessageID, &level, &f.Reason, &f.Note,
			&f.CreatedAt, &f.Acknowledged, &f.MessageContent); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		f.Level = filter.Level(level)
		out = append(out, f)
	}
	return out, rows.Err()
}
