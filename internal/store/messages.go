package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smiling-critters/critter-gateway/internal/types"
)

// StoredMessage is one transcript line. Flagged holds the safety severity
// (0 safe, 1 redirect, 2 alert, 3 crisis).
type StoredMessage struct {
	ID        int64      `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	Role      types.Role `json:"role"`
	Content   string     `json:"content"`
	PersonaID string     `json:"persona"`
	CreatedAt time.Time  `json:"created_at"`
	Flagged   int        `json:"flagged"`
}

func (s *Store) SaveMessage(ctx context.Context, sessionID uuid.UUID, role types.Role, content, personaID string, flagged int) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (session_id, role, content, persona_id, flagged)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, sessionID, string(role), content, personaID, flagged).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

// SessionMessages returns a session's transcript in insertion order.
func (s *Store) SessionMessages(ctx context.Context, sessionID uuid.UUID) ([]StoredMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, role, content, persona_id, created_at, flagged
		FROM messages
		WHERE session_id = $1
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var (
			m    StoredMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.PersonaID, &m.CreatedAt, &m.Flagged); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		r, ok := types.ParseRole(role)
		if !ok {
			return nil, fmt.Errorf("message %d: unknown role %q", m.ID, role)
		}
		m.Role = r
		out = append(out, m)
	}
	return out, rows.Err()
}

// Transcript converts stored messages to the chat history sent to a backend.
func Transcript(msgs []StoredMessage) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			continue
		}
		out = append(out, types.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
