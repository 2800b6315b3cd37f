package pii

import "regexp"

// Pattern defines a personal-information pattern and the placeholder that
// replaces each match.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Placeholder string
}

// DefaultPatterns returns the built-in patterns. Order matters: earlier
// patterns are applied first.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "email",
			Regex:       regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.\w+\b`),
			Placeholder: "[email removed]",
		},
		{
			Name:        "phone",
			Regex:       regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			Placeholder: "[phone removed]",
		},
	}
}
