package pii

import (
	"testing"

	"github.com/smiling-critters/critter-gateway/internal/types"
)

func TestSanitize(t *testing.T) {
	s := NewSanitizer()
	tests := []struct {
		input string
		want  string
	}{
		{"email me at a@b.com or call 555-123-4567", "email me at [email removed] or call [phone removed]"},
		{"my mum is jane.doe+kids@example.org", "my mum is [email removed]"},
		{"call 555.123.4567 or 555 123 4567 or 5551234567", "call [phone removed] or [phone removed] or [phone removed]"},
		{"I have 3 cats and 12 fish", "I have 3 cats and 12 fish"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := s.Sanitize(tt.input); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestScan(t *testing.T) {
	s := NewSanitizer()
	detections := s.Scan("a@b.com and 555-123-4567")
	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}
	if detections[0].PatternName != "email" || detections[1].PatternName != "phone" {
		t.Errorf("unexpected detections %+v", detections)
	}
	if detections[0].Start != 0 || detections[0].End != 7 {
		t.Errorf("email offsets = [%d,%d), want [0,7)", detections[0].Start, detections[0].End)
	}
}

func TestSanitizeMessages_DoesNotMutateInput(t *testing.T) {
	s := NewSanitizer()
	in := []types.Message{
		{Role: types.RoleUser, Content: "my email is kid@home.net"},
		{Role: types.RoleAssistant, Content: "Thanks for telling me!"},
	}
	out, changed := s.SanitizeMessages(in)

	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	if in[0].Content != "my email is kid@home.net" {
		t.Error("input message was modified")
	}
	if out[0].Content != "my email is [email removed]" {
		t.Errorf("got %q", out[0].Content)
	}
	if out[0].Role != types.RoleUser || out[1].Content != in[1].Content {
		t.Error("roles and clean content must be preserved")
	}
}
