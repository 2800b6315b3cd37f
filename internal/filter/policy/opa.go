// Package policy decides with OPA whether a child may chat right now
// (quiet hours and the daily time limit).
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/smiling-critters/critter-gateway/internal/config"
)

const query = "[data.critters.policy.allow, data.critters.policy.reason]"

// Deny reasons produced by the default policy.
const (
	ReasonQuietHours  = "quiet_hours"
	ReasonDailyLimit  = "daily_limit"
	ReasonUnavailable = "policy_unavailable"
)

var errNotLoaded = errors.New("no policies loaded")

// Input is the document sent to OPA for evaluation.
type Input struct {
	Now               Clock      `json:"now"`
	QuietHours        QuietHours `json:"quiet_hours"`
	DailyLimitMinutes int        `json:"daily_limit_minutes"`
	Usage             Usage      `json:"usage"`
}

type Clock struct {
	MinuteOfDay int    `json:"minute_of_day"`
	Weekday     string `json:"weekday"`
}

// QuietHours are minutes since midnight. Equal values disable the window.
type QuietHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Usage struct {
	MinutesToday float64 `json:"minutes_today"`
}

// NewInput builds an Input from wall-clock time, parent preferences and
// today's usage.
func NewInput(now time.Time, prefs config.Preferences, minutesToday float64) Input {
	start, okStart := ParseClock(prefs.QuietHoursStart)
	end, okEnd := ParseClock(prefs.QuietHoursEnd)
	if !okStart || !okEnd {
		start, end = 0, 0
	}
	return Input{
		Now:               Clock{MinuteOfDay: now.Hour()*60 + now.Minute(), Weekday: now.Weekday().String()},
		QuietHours:        QuietHours{Start: start, End: end},
		DailyLimitMinutes: prefs.DailyLimitMinutes,
		Usage:             Usage{MinutesToday: minutesToday},
	}
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allow  bool
	Reason string
}

// Denied reports whether reason code code is among the deny reasons.
func (d Decision) Denied(code string) bool {
	for _, r := range strings.Split(d.Reason, ",") {
		if r == code {
			return true
		}
	}
	return false
}

// Evaluator evaluates the screen-time policy.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
	logger   *slog.Logger
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig, logger *slog.Logger) *Evaluator {
	return &Evaluator{cfg: cfg, logger: logger}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles Rego modules from the bundle path, or the built-in policy
// when no bundle path is configured.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules := DefaultModules()
	if cfg.BundlePath != "" {
		loaded, err := LoadRegoFiles(cfg.BundlePath)
		if err != nil {
			return fmt.Errorf("load rego files: %w", err)
		}
		if len(loaded) == 0 {
			e.logger.Warn("no rego files found, using built-in policy", "path", cfg.BundlePath)
		} else {
			modules = loaded
		}
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	e.logger.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from provided module sources.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(query)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Evaluate runs the policy against the given input.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (Decision, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return Decision{}, errNotLoaded
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("policy evaluation: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, errors.New("no policy result")
	}

	// Result is [allow, reason]
	arr, ok := results[0].Expressions[0].Value.([]any)
	if !ok || len(arr) < 2 {
		return Decision{}, errors.New("unexpected policy result format")
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return Decision{Allow: allowed, Reason: reason}, nil
}

// Check evaluates the policy and applies the configured failure mode.
// A disabled evaluator always allows.
func (e *Evaluator) Check(ctx context.Context, input Input) Decision {
	cfg := e.cfg()
	if !cfg.Enabled {
		return Decision{Allow: true}
	}
	d, err := e.Evaluate(ctx, input)
	if err != nil {
		e.logger.Error("policy evaluation failed", "error", err, "fail_open", cfg.FailOpen)
		return Decision{Allow: cfg.FailOpen, Reason: ReasonUnavailable}
	}
	return d
}
