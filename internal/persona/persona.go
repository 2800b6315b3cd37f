// Package persona holds the closed set of critter companions. Every
// user-facing string a persona contributes (system prompt, redirect line,
// wellness reminders) lives here as data.
package persona

import (
	"fmt"
	"strings"
)

type ID string

const (
	Bubba  ID = "bubba"
	Bobby  ID = "bobby"
	DogDay ID = "dogday"
	CatNap ID = "catnap"
	Kickin ID = "kickin"
	Hoppy  ID = "hoppy"
	Piggy  ID = "piggy"
	Crafty ID = "crafty"
)

// Default is used whenever an unknown identifier is supplied.
const Default = Bubba

type Persona struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Animal      string `json:"animal"`
	Tagline     string `json:"tagline"`
	Specialty   string `json:"specialty"`
	Catchphrase string `json:"-"`

	// Voice is folded into the system prompt.
	Voice []string `json:"-"`

	Redirect   string `json:"-"`
	Reminder30 string `json:"-"`
	Reminder60 string `json:"-"`
	// Pause is spoken when screen-time policy stops the conversation.
	Pause string `json:"-"`
}

// Lookup returns the persona for id, falling back to Default for unknown ids.
func Lookup(id string) Persona {
	if p, ok := catalogue[ID(strings.ToLower(strings.TrimSpace(id)))]; ok {
		return p
	}
	return catalogue[Default]
}

// Known reports whether id names a persona in the catalogue.
func Known(id string) bool {
	_, ok := catalogue[ID(strings.ToLower(strings.TrimSpace(id)))]
	return ok
}

// All returns the catalogue in display order.
func All() []Persona {
	out := make([]Persona, 0, len(order))
	for _, id := range order {
		out = append(out, catalogue[id])
	}
	return out
}

// SystemPrompt assembles the layer-one safety prompt for this persona.
func (p Persona) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s the %s, a warm and gentle companion for a child.\n\n", p.Name, p.Animal)
	b.WriteString("PERSONALITY:\n")
	for _, line := range p.Voice {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "- Catchphrase, used now and then: %q\n\n", p.Catchphrase)
	fmt.Fprintf(&b, "SPECIALTY: %s.\n\n", p.Specialty)
	b.WriteString(sharedStyle)
	b.WriteString("\nIMPORTANT RULES (follow strictly):\n")
	b.WriteString(sharedRules)
	fmt.Fprintf(&b, "- If asked about something unsafe, gently say: %q\n", p.Redirect)
	return b.String()
}

// Greeting is the persona's opening line for a new session.
func (p Persona) Greeting(childName string) string {
	if strings.TrimSpace(childName) == "" {
		childName = "friend"
	}
	return fmt.Sprintf("Hi %s! %s I'm %s. %s", childName, p.Emoji, p.Name, p.Catchphrase)
}
