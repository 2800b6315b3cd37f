package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Setting keys recognised in the settings store.
const (
	KeyLocalEndpoint   = "ollama_url"
	KeyLocalModel      = "ollama_model"
	KeyCloudAPIKey     = "gemini_key"
	KeyPreferLocal     = "llm_prefer_local"
	KeyDailyLimit      = "daily_limit_min"
	KeyReminder30      = "reminder_30"
	KeyReminder60      = "reminder_60"
	KeyQuietHoursStart = "quiet_hours_start"
	KeyQuietHoursEnd   = "quiet_hours_end"
	KeyParentPIN       = "parent_pin"
	KeyChildName       = "child_name"
)

// Environment fallbacks.
const (
	EnvLocalEndpoint = "OLLAMA_BASE_URL"
	EnvLocalModel    = "OLLAMA_MODEL"
	EnvCloudAPIKey   = "GEMINI_API_KEY"
)

const (
	DefaultLocalEndpoint = "http://localhost:11434"
	DefaultLocalModel    = "llama3.1:8b"
)

// SecretKeys are masked whenever settings are displayed.
var SecretKeys = map[string]bool{
	KeyCloudAPIKey: true,
	KeyParentPIN:   true,
}

// placeholders are values copied from sample config files that mean "unset".
var placeholders = map[string]bool{
	"your-gemini-api-key-here": true,
	"your_gemini_api_key_here": true,
	"your-api-key-here":        true,
	"your_api_key_here":        true,
	"<your-key>":               true,
	"<api-key>":                true,
	"changeme":                 true,
	"change-me":                true,
	"xxx":                      true,
}

// IsPlaceholder reports whether v is empty or an obvious sample value.
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || placeholders[strings.ToLower(v)]
}

// SettingsReader is the read side of the persistent settings store.
// Implementations return "" with a nil error for unknown keys.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, error)
}

// SettingsLookup is implemented by stores that can tell a stored empty
// value from a missing row.
type SettingsLookup interface {
	Lookup(ctx context.Context, key string) (value string, ok bool, err error)
}

// RouterConfig is the per-call backend configuration.
type RouterConfig struct {
	LocalEndpoint string
	LocalModel    string
	CloudAPIKey   string
}

func (c RouterConfig) HasCloudKey() bool { return c.CloudAPIKey != "" }

// Preferences are the parent-controlled behaviour settings.
type Preferences struct {
	PreferLocal       bool   `json:"prefer_local"`
	DailyLimitMinutes int    `json:"daily_limit_min"`
	Reminder30        bool   `json:"reminder_30"`
	Reminder60        bool   `json:"reminder_60"`
	QuietHoursStart   string `json:"quiet_hours_start"`
	QuietHoursEnd     string `json:"quiet_hours_end"`
	ChildName         string `json:"child_name"`
}

// DefaultSettings are the rows seeded into a fresh settings table.
func DefaultSettings() map[string]string {
	return map[string]string{
		KeyParentPIN:       "1234",
		KeyDailyLimit:      "45",
		KeyReminder30:      "1",
		KeyReminder60:      "1",
		KeyQuietHoursStart: "20:00",
		KeyQuietHoursEnd:   "07:00",
		KeyChildName:       "Friend",
		KeyPreferLocal:     "1",
		KeyLocalEndpoint:   "",
		KeyLocalModel:      "",
		KeyCloudAPIKey:     "",
	}
}

// Resolver merges store settings, environment and hard defaults, in that
// order of priority. It never fails: store errors degrade to the next source.
type Resolver struct {
	store     SettingsReader
	lookupEnv func(string) (string, bool)
	logger    *slog.Logger
}

// NewResolver creates a resolver. store may be nil.
func NewResolver(store SettingsReader, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, lookupEnv: os.LookupEnv, logger: logger}
}

// WithEnv replaces the environment lookup.
func (r *Resolver) WithEnv(lookup func(string) (string, bool)) *Resolver {
	r.lookupEnv = lookup
	return r
}

// Resolve is called on every routing decision so dashboard edits apply to
// the next message without a restart.
func (r *Resolver) Resolve(ctx context.Context) RouterConfig {
	return RouterConfig{
		LocalEndpoint: strings.TrimRight(r.value(ctx, KeyLocalEndpoint, EnvLocalEndpoint, DefaultLocalEndpoint), "/"),
		LocalModel:    r.value(ctx, KeyLocalModel, EnvLocalModel, DefaultLocalModel),
		CloudAPIKey:   r.value(ctx, KeyCloudAPIKey, EnvCloudAPIKey, ""),
	}
}

// Preferences resolves the behaviour settings with their defaults.
func (r *Resolver) Preferences(ctx context.Context) Preferences {
	d := DefaultSettings()
	return Preferences{
		PreferLocal:       parseBool(r.value(ctx, KeyPreferLocal, "", d[KeyPreferLocal]), true),
		DailyLimitMinutes: parseInt(r.value(ctx, KeyDailyLimit, "", d[KeyDailyLimit]), 45),
		Reminder30:        parseBool(r.value(ctx, KeyReminder30, "", d[KeyReminder30]), true),
		Reminder60:        parseBool(r.value(ctx, KeyReminder60, "", d[KeyReminder60]), true),
		QuietHoursStart:   r.clearable(ctx, KeyQuietHoursStart, d[KeyQuietHoursStart]),
		QuietHoursEnd:     r.clearable(ctx, KeyQuietHoursEnd, d[KeyQuietHoursEnd]),
		ChildName:         r.value(ctx, KeyChildName, "", d[KeyChildName]),
	}
}

func (r *Resolver) value(ctx context.Context, key, env, def string) string {
	if r.store != nil {
		v, err := r.store.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.Debug("settings store unavailable, falling back", "key", key, "error", err)
		case !IsPlaceholder(v):
			return strings.TrimSpace(v)
		}
	}
	if env != "" && r.lookupEnv != nil {
		if v, ok := r.lookupEnv(env); ok && !IsPlaceholder(v) {
			return strings.TrimSpace(v)
		}
	}
	return def
}

// clearable resolves a setting a parent may blank out. A stored row wins
// even when empty; only a missing row or a store error yields def.
func (r *Resolver) clearable(ctx context.Context, key, def string) string {
	l, ok := r.store.(SettingsLookup)
	if !ok {
		return r.value(ctx, key, "", def)
	}
	v, found, err := l.Lookup(ctx, key)
	switch {
	case err != nil:
		r.logger.Debug("settings store unavailable, falling back", "key", key, "error", err)
	case found:
		return strings.TrimSpace(v)
	}
	return def
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return def
	}
	return n
}
