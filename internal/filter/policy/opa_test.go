package policy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/config"
)

func testCfg(enabled, failOpen bool) func() config.PolicyConfig {
	return func() config.PolicyConfig {
		return config.PolicyConfig{
			Enabled:           enabled,
			EvaluationTimeout: time.Second,
			FailOpen:          failOpen,
		}
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func loadTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e := NewEvaluator(testCfg(true, true), discard())
	if err := e.Load(); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return e
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

var prefs = config.Preferences{
	DailyLimitMinutes: 45,
	QuietHoursStart:   "20:00",
	QuietHoursEnd:     "07:00",
}

func TestEvaluator_QuietHoursAndDailyLimit(t *testing.T) {
	e := loadTestEvaluator(t)

	tests := []struct {
		name   string
		now    time.Time
		prefs  config.Preferences
		used   float64
		allow  bool
		reason string
	}{
		{"afternoon", at(15, 30), prefs, 10, true, ""},
		{"evening quiet", at(21, 0), prefs, 0, false, ReasonQuietHours},
		{"early morning quiet", at(6, 59), prefs, 0, false, ReasonQuietHours},
		{"quiet ends", at(7, 0), prefs, 0, true, ""},
		{"limit reached", at(16, 0), prefs, 45, false, ReasonDailyLimit},
		{"both", at(22, 0), prefs, 50, false, "daily_limit,quiet_hours"},
		{"zero limit disables", at(16, 0), config.Preferences{DailyLimitMinutes: 0, QuietHoursStart: "20:00", QuietHoursEnd: "07:00"}, 500, true, ""},
		{"same-day window", at(13, 0), config.Preferences{QuietHoursStart: "12:00", QuietHoursEnd: "14:00"}, 0, false, ReasonQuietHours},
		{"invalid window disables", at(21, 0), config.Preferences{QuietHoursStart: "late", QuietHoursEnd: "07:00"}, 0, true, ""},
		{"cleared window disables", at(21, 0), config.Preferences{QuietHoursStart: "", QuietHoursEnd: ""}, 0, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Evaluate(context.Background(), NewInput(tt.now, tt.prefs, tt.used))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Allow != tt.allow || d.Reason != tt.reason {
				t.Errorf("got %+v, want allow=%v reason=%q", d, tt.allow, tt.reason)
			}
		})
	}
}

func TestDecision_Denied(t *testing.T) {
	d := Decision{Reason: "daily_limit,quiet_hours"}
	if !d.Denied(ReasonQuietHours) || !d.Denied(ReasonDailyLimit) {
		t.Error("expected both reasons")
	}
	if d.Denied("other") {
		t.Error("unexpected reason match")
	}
}

func TestEvaluator_NotLoaded(t *testing.T) {
	input := NewInput(at(12, 0), prefs, 0)

	open := NewEvaluator(testCfg(true, true), discard())
	if d := open.Check(context.Background(), input); !d.Allow || d.Reason != ReasonUnavailable {
		t.Errorf("fail-open: got %+v", d)
	}

	closed := NewEvaluator(testCfg(true, false), discard())
	if d := closed.Check(context.Background(), input); d.Allow {
		t.Errorf("fail-closed: got %+v", d)
	}
}

func TestEvaluator_Disabled(t *testing.T) {
	e := NewEvaluator(testCfg(false, false), discard())
	if d := e.Check(context.Background(), NewInput(at(23, 0), prefs, 1000)); !d.Allow {
		t.Error("disabled evaluator must allow")
	}
}

func TestEvaluator_CustomModule(t *testing.T) {
	e := NewEvaluator(testCfg(true, true), discard())
	err := e.LoadFromModules(map[string]string{"weekend.rego": `
package critters.policy

import rego.v1

default allow := true
default reason := ""

allow := false if input.now.weekday == "Saturday"
reason := "weekend" if input.now.weekday == "Saturday"
`})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// 2026-03-14 is a Saturday.
	d := e.Check(context.Background(), NewInput(at(10, 0), prefs, 0))
	if d.Allow || d.Reason != "weekend" {
		t.Errorf("got %+v", d)
	}
}

func TestLoadFromModules_InvalidRego(t *testing.T) {
	e := NewEvaluator(testCfg(true, true), discard())
	if err := e.LoadFromModules(map[string]string{"bad.rego": "package x\nallow if {"}); err == nil {
		t.Error("expected compile error")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"20:00", 1200, true},
		{"07:05", 425, true},
		{"0:00", 0, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClock(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseClock(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
