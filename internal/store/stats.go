package store

import (
	"context"
	"fmt"
	"math"
)

type PersonaCount struct {
	PersonaID string `json:"persona"`
	Sessions  int    `json:"sessions"`
}

// UsageStats is the parent dashboard summary.
type UsageStats struct {
	TotalSessions     int            `json:"total_sessions"`
	TotalMessages     int            `json:"total_messages"`
	TotalFlags        int            `json:"total_flags"`
	UnreadFlags       int            `json:"unread_flags"`
	PersonaUsage      []PersonaCount `json:"persona_usage"`
	AvgSessionMinutes float64        `json:"avg_session_min"`
}

func (s *Store) UsageStats(ctx context.Context) (UsageStats, error) {
	var (
		st     UsageStats
		avgSec float64
	)
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM messages WHERE role = 'user'),
			(SELECT COUNT(*) FROM safety_flags),
			(SELECT COUNT(*) FROM safety_flags WHERE NOT acknowledged),
			(SELECT COALESCE(AVG(duration_s), 0)::float8 FROM sessions WHERE duration_s IS NOT NULL)
	`).Scan(&st.TotalSessions, &st.TotalMessages, &st.TotalFlags, &st.UnreadFlags, &avgSec)
	if err != nil {
		return UsageStats{}, fmt.Errorf("query usage totals: %w", err)
	}
	st.AvgSessionMinutes = math.Round(avgSec/60*10) / 10

	rows, err := s.db.Query(ctx, `
		SELECT persona_id, COUNT(*) AS n FROM sessions
		GROUP BY persona_id ORDER BY n DESC, persona_id
	`)
	if err != nil {
		return UsageStats{}, fmt.Errorf("query persona usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pc PersonaCount
		if err := rows.Scan(&pc.PersonaID, &pc.Sessions); err != nil {
			return UsageStats{}, fmt.Errorf("scan persona usage: %w", err)
		}
		st.PersonaUsage = append(st.PersonaUsage, pc)
	}
	return st, rows.Err()
}
