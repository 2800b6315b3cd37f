package safety

import "github.com/smiling-critters/critter-gateway/internal/persona"

// Reminder thresholds in minutes.
const (
	GentleReminderMinutes = 30
	StrongReminderMinutes = 60
)

// ReminderThreshold returns the highest threshold reached by elapsed
// minutes, or 0 when none has been reached.
func ReminderThreshold(elapsedMinutes float64) int {
	switch {
	case elapsedMinutes >= StrongReminderMinutes:
		return StrongReminderMinutes
	case elapsedMinutes >= GentleReminderMinutes:
		return GentleReminderMinutes
	default:
		return 0
	}
}

// WellnessReminder returns the persona's break reminder for the elapsed
// session time, or "" below the first threshold. It keeps no state; callers
// decide whether a reminder was already shown.
func WellnessReminder(elapsedMinutes float64, personaID string) string {
	p := persona.Lookup(personaID)
	switch ReminderThreshold(elapsedMinutes) {
	case StrongReminderMinutes:
		return p.Reminder60
	case GentleReminderMinutes:
		return p.Reminder30
	default:
		return ""
	}
}
