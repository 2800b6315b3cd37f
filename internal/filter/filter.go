package filter

import "strings"

// Level is the outcome of a safety screen, ordered by severity.
type Level string

const (
	LevelSafe     Level = "safe"
	LevelRedirect Level = "redirect"
	LevelAlert    Level = "alert"
	LevelCrisis   Level = "crisis"
)

// Severity returns the value persisted in messages.flagged.
func (l Level) Severity() int {
	switch l {
	case LevelRedirect:
		return 1
	case LevelAlert:
		return 2
	case LevelCrisis:
		return 3
	default:
		return 0
	}
}

func (l Level) String() string { return string(l) }

// ParseLevel accepts a level name or its persisted severity ("0".."3").
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe", "0":
		return LevelSafe, true
	case "redirect", "1":
		return LevelRedirect, true
	case "alert", "2":
		return LevelAlert, true
	case "crisis", "3":
		return LevelCrisis, true
	default:
		return "", false
	}
}

// LevelFromSeverity is the inverse of Level.Severity. Out of range values map to safe.
func LevelFromSeverity(n int) Level {
	switch n {
	case 1:
		return LevelRedirect
	case 2:
		return LevelAlert
	case 3:
		return LevelCrisis
	default:
		return LevelSafe
	}
}

// Result is returned by every safety screen. Empty strings mean absent.
//
// RedirectMessage is set exactly when the level stops generation (crisis and
// redirect). Alert results carry a ParentNote but let the conversation go on.
type Result struct {
	Level           Level
	Reason          string
	Category        string
	RedirectMessage string
	ParentNote      string
}

// Safe is the zero-detection result.
func Safe() Result { return Result{Level: LevelSafe} }

// ShortCircuits reports whether the caller must answer with RedirectMessage
// instead of asking a model.
func (r Result) ShortCircuits() bool { return r.RedirectMessage != "" }

// Flagged reports whether the result must be recorded for parent review.
// Every level above safe is recorded; ParentNote may still be empty.
func (r Result) Flagged() bool { return r.Level != "" && r.Level != LevelSafe }
