// Package pii strips personal contact details from text before it leaves
// the home network.
package pii

import (
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// Detection represents a matched personal detail in text.
type Detection struct {
	PatternName string
	Start       int // byte offset
	End         int // byte offset
}

// Sanitizer replaces personal details with placeholders.
type Sanitizer struct {
	patterns []Pattern
}

// NewSanitizer creates a sanitizer with the default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{patterns: DefaultPatterns()}
}

// Scan returns every detection in text without modifying it.
func (s *Sanitizer) Scan(text string) []Detection {
	var detections []Detection
	for _, p := range s.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			detections = append(detections, Detection{
				PatternName: p.Name,
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}
	return detections
}

// Sanitize returns text with every match replaced by its placeholder.
func (s *Sanitizer) Sanitize(text string) string {
	for _, p := range s.patterns {
		text = p.Regex.ReplaceAllLiteralString(text, p.Placeholder)
	}
	return text
}

// SanitizeMessages returns sanitized copies of messages. The input slice is
// left untouched. The second return value is the number of messages changed.
func (s *Sanitizer) SanitizeMessages(messages []types.Message) ([]types.Message, int) {
	out := make([]types.Message, len(messages))
	changed := 0
	for i, m := range messages {
		clean := s.Sanitize(m.Content)
		if clean != m.Content {
			changed++
		}
		out[i] = types.Message{Role: m.Role, Content: clean}
	}
	return out, changed
}
