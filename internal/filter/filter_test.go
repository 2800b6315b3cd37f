package filter

import "testing"

func TestLevelSeverity(t *testing.T) {
	tests := []struct {
		level Level
		want  int
	}{
		{LevelSafe, 0},
		{LevelRedirect, 1},
		{LevelAlert, 2},
		{LevelCrisis, 3},
		{Level("bogus"), 0},
	}
	for _, tt := range tests {
		if got := tt.level.Severity(); got != tt.want {
			t.Errorf("%s.Severity() = %d, want %d", tt.level, got, tt.want)
		}
		if tt.level != "bogus" && LevelFromSeverity(tt.want) != tt.level {
			t.Errorf("LevelFromSeverity(%d) = %s, want %s", tt.want, LevelFromSeverity(tt.want), tt.level)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
		ok    bool
	}{
		{"crisis", LevelCrisis, true},
		{" Alert ", LevelAlert, true},
		{"1", LevelRedirect, true},
		{"0", LevelSafe, true},
		{"urgent", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%s, %v), want (%s, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResultPredicates(t *testing.T) {
	tests := []struct {
		name    string
		r       Result
		short   bool
		flagged bool
	}{
		{"safe", Safe(), false, false},
		{"redirect", Result{Level: LevelRedirect, RedirectMessage: "let's talk about otters"}, true, true},
		{"zero value", Result{}, false, false},
		{"alert", Result{Level: LevelAlert, ParentNote: "Flagged message: 'x'"}, false, true},
		{"crisis", Result{Level: LevelCrisis, RedirectMessage: "tell a grown-up", ParentNote: "urgent"}, true, true},
	}
	for _, tt := range tests {
		if got := tt.r.ShortCircuits(); got != tt.short {
			t.Errorf("%s: ShortCircuits() = %v, want %v", tt.name, got, tt.short)
		}
		if got := tt.r.Flagged(); got != tt.flagged {
			t.Errorf("%s: Flagged() = %v, want %v", tt.name, got, tt.flagged)
		}
	}
}
