package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func settingCacheKey(key string) string {
	return redisKeyPrefix + "setting:" + key
}

// Get returns the value of a setting, or "" if it was never set.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, _, err := s.Lookup(ctx, key)
	return v, err
}

// Lookup is Get that also reports whether a row exists, so a value a
// parent cleared on purpose can be told apart from one never written.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool, error) {
	if s.redis != nil {
		if v, err := s.redis.Get(ctx, settingCacheKey(key)).Result(); err == nil {
			return v, true, nil
		}
	}

	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %q: %w", key, err)
	}

	if s.redis != nil {
		s.redis.Set(ctx, settingCacheKey(key), value, s.settingsTTL)
	}
	return value, true, nil
}

// Set upserts a setting and drops its cached copy so the next read sees it.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("upsert setting %q: %w", key, err)
	}
	if s.redis != nil {
		s.redis.Del(ctx, settingCacheKey(key))
	}
	return nil
}

// All returns every stored setting.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SeedDefaults inserts any missing defaults and leaves existing values alone.
// It returns the number of rows inserted.
func (s *Store) SeedDefaults(ctx context.Context, defaults map[string]string) (int, error) {
	batch := &pgx.Batch{}
	for k, v := range defaults {
		batch.Queue(`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, k, v)
	}
	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range defaults {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("seed settings: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
