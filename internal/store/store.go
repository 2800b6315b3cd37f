// Package store persists sessions, transcripts, safety flags and parent
// settings in PostgreSQL, with a Redis read-through cache for settings.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a row addressed by ID does not exist.
var ErrNotFound = errors.New("not found")

const (
	defaultSettingsTTL = 30 * time.Second
	redisKeyPrefix     = "critters:"
)

// Store is safe for concurrent use.
type Store struct {
	db          *pgxpool.Pool
	redis       *redis.Client
	settingsTTL time.Duration
}

// New creates a store. rdb may be nil, in which case settings are read from
// PostgreSQL on every call.
func New(db *pgxpool.Pool, rdb *redis.Client, settingsTTL time.Duration) *Store {
	if settingsTTL <= 0 {
		settingsTTL = defaultSettingsTTL
	}
	return &Store{db: db, redis: rdb, settingsTTL: settingsTTL}
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if maxLifetime > 0 {
		cfg.MaxConnLifetime = maxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
