package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Session is one sitting with a persona.
type Session struct {
	ID              uuid.UUID  `json:"id"`
	PersonaID       string     `json:"persona"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int       `json:"duration_s,omitempty"`
	MessageCount    int        `json:"message_count"`
}

// Active reports whether the session has not been ended.
func (s Session) Active() bool { return s.EndedAt == nil }

// Elapsed is the time since the session started, as of now.
func (s Session) Elapsed(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

const sessionColumns = `id, persona_id, started_at, ended_at, duration_s, message_count`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.PersonaID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds, &s.MessageCount)
	return s, err
}

func (s *Store) StartSession(ctx context.Context, personaID string) (Session, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, persona_id) VALUES ($1, $2)
		RETURNING `+sessionColumns, uuid.New(), personaID))
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

// EndSession closes an active session, recording its duration and the number
// of child messages. Ending an unknown or already-ended session returns
// ErrNotFound.
func (s *Store) EndSession(ctx context.Context, id uuid.UUID) (Session, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, `
		UPDATE sessions
		SET ended_at = NOW(),
		    duration_s = GREATEST(0, EXTRACT(EPOCH FROM NOW() - started_at))::int,
		    message_count = (SELECT COUNT(*) FROM messages WHERE session_id = $1 AND role = 'user')
		WHERE id = $1 AND ended_at IS NULL
		RETURNING `+sessionColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("end session: %w", err)
	}
	return sess, nil
}

func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// MarkReminder records that the reminder for threshold minutes was shown in
// a session. It returns false if it had already been recorded.
func (s *Store) MarkReminder(ctx context.Context, sessionID uuid.UUID, minutes int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO session_reminders (session_id, minutes) VALUES ($1, $2)
		ON CONFLICT (session_id, minutes) DO NOTHING
	`, sessionID, minutes)
	if err != nil {
		return false, fmt.Errorf("mark reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
