// Package gateway serves the chat and parent HTTP API and runs the
// per-message safety pipeline around the router.
package gateway

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/filter"
	"github.com/smiling-critters/critter-gateway/internal/filter/policy"
	"github.com/smiling-critters/critter-gateway/internal/filter/safety"
	"github.com/smiling-critters/critter-gateway/internal/router"
	"github.com/smiling-critters/critter-gateway/internal/store"
	"github.com/smiling-critters/critter-gateway/internal/telemetry"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// Store is the persistence the handlers need.
type Store interface {
	StartSession(ctx context.Context, personaID string) (store.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (store.Session, error)
	EndSession(ctx context.Context, id uuid.UUID) (store.Session, error)
	RecentSessions(ctx context.Context, limit int) ([]store.Session, error)
	MarkReminder(ctx context.Context, sessionID uuid.UUID, minutes int) (bool, error)

	SaveMessage(ctx context.Context, sessionID uuid.UUID, role types.Role, content, personaID string, flagged int) (int64, error)
	SessionMessages(ctx context.Context, sessionID uuid.UUID) ([]store.StoredMessage, error)

	SaveFlag(ctx context.Context, sessionID uuid.UUID, messageID int64, level filter.Level, reason, note string) (int64, error)
	UnacknowledgedFlags(ctx context.Context) ([]store.Flag, error)
	AllFlags(ctx context.Context, limit int) ([]store.Flag, error)
	AcknowledgeFlag(ctx context.Context, id int64) error
	UsageStats(ctx context.Context) (store.UsageStats, error)

	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// ChatRouter produces replies and reports backend status.
type ChatRouter interface {
	SendWithOutcome(ctx context.Context, systemPrompt string, messages []types.Message, preferLocal bool, out *router.Outcome) iter.Seq[string]
	CheckStatus(ctx context.Context) router.Status
	Reset()
}

// PreferenceSource resolves the parent's behaviour settings.
type PreferenceSource interface {
	Preferences(ctx context.Context) config.Preferences
}

// PolicyChecker decides whether the child may chat right now.
type PolicyChecker interface {
	Check(ctx context.Context, input policy.Input) policy.Decision
}

// UsageTracker accumulates daily chat time.
type UsageTracker interface {
	MinutesToday(ctx context.Context, now time.Time) (int, error)
	RecordSession(ctx context.Context, now time.Time, length time.Duration) error
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	store    Store
	router   ChatRouter
	prefs    PreferenceSource
	policy   PolicyChecker
	usage    UsageTracker
	safety   *safety.Filter
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	location func() *time.Location
	now      func() time.Time
	version  string
}

// Deps are the collaborators of a Handler. Policy, Usage and Metrics may be
// nil; Safety defaults to the built-in rules.
type Deps struct {
	Store    Store
	Router   ChatRouter
	Prefs    PreferenceSource
	Policy   PolicyChecker
	Usage    UsageTracker
	Safety   *safety.Filter
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
	Location func() *time.Location
	Now      func() time.Time
	Version  string
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:    d.Store,
		router:   d.Router,
		prefs:    d.Prefs,
		policy:   d.Policy,
		usage:    d.Usage,
		safety:   d.Safety,
		metrics:  d.Metrics,
		logger:   d.Logger,
		location: d.Location,
		now:      d.Now,
		version:  d.Version,
	}
	if h.safety == nil {
		h.safety = safety.NewDefault()
	}
	if h.location == nil {
		h.location = func() *time.Location { return time.Local }
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.version == "" {
		h.version = "dev"
	}
	return h
}

// LocationFromConfig resolves the policy timezone, falling back to the
// server's local zone.
func LocationFromConfig(cfg func() config.PolicyConfig, logger *slog.Logger) func() *time.Location {
	return func() *time.Location {
		name := cfg().Timezone
		if name == "" || name == "Local" {
			return time.Local
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			logger.Warn("unknown policy timezone, using local", "timezone", name, "error", err)
			return time.Local
		}
		return loc
	}
}

func (h *Handler) minutesToday(ctx context.Context, now time.Time) int {
	if h.usage == nil {
		return 0
	}
	n, err := h.usage.MinutesToday(ctx, now)
	if err != nil {
		h.logger.Warn("daily usage unavailable", "error", err)
		return 0
	}
	return n
}
