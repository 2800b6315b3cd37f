// Package safety implements the input and output screens of the
// conversation safety pipeline. The first layer, the persona system prompt,
// lives in package persona.
package safety

import (
	"fmt"
	"strings"

	"github.com/smiling-critters/critter-gateway/internal/filter"
	"github.com/smiling-critters/critter-gateway/internal/persona"
)

const (
	reasonInputCrisis    = "Crisis language detected in child's message"
	reasonInputAlert     = "Distress/safety topic in child's message"
	reasonInputRedirect  = "Off-limits topic"
	reasonOutputCrisis   = "Crisis content in LLM output, replaced"
	reasonOutputRedirect = "Off-limits content in LLM output, replaced"

	crisisExcerptRunes = 80
	alertExcerptRunes  = 120
)

// CrisisResponse is shown instead of a model reply whenever a child's
// message contains crisis language. It is the same for every persona.
const CrisisResponse = `I hear you, and I care about you so much 💜

What you're feeling sounds really, really hard. You don't have to feel this way alone.

**Please tell a grown-up you trust right now** — a parent, teacher, or someone at home. They love you and they want to help.

If you need to talk to someone right now, you can also text or call a helpline for kids — ask a grown-up to help you find one.

You are loved. You matter. 💜🦋`

const (
	OutputCrisisReplacement   = "I'm here with you 💜 Can you find a grown-up you trust to talk to right now?"
	OutputRedirectReplacement = "Oops, my brain went a bit fuzzy! Let's talk about something fun instead ✨"
	outputCrisisNote          = "LLM output contained crisis-level content and was blocked."
)

// Detection records a matched rule.
type Detection struct {
	RuleName string
	Level    filter.Level
	Category string
	Start    int
	End      int
}

// Filter screens text against the crisis, alert and redirect rule classes.
// It is stateless and safe for concurrent use.
type Filter struct {
	crisis   []Rule
	alert    []Rule
	redirect []Rule
}

// New creates a filter from rules, grouping them by class.
func New(rules []Rule) *Filter {
	f := &Filter{}
	for _, r := range rules {
		switch r.Level {
		case filter.LevelCrisis:
			f.crisis = append(f.crisis, r)
		case filter.LevelAlert:
			f.alert = append(f.alert, r)
		case filter.LevelRedirect:
			f.redirect = append(f.redirect, r)
		}
	}
	return f
}

// NewDefault creates a filter with the built-in rules.
func NewDefault() *Filter {
	return New(DefaultRules())
}

// Scan returns every rule match in text, in class order.
func (f *Filter) Scan(text string) []Detection {
	var detections []Detection
	for _, class := range [][]Rule{f.crisis, f.alert, f.redirect} {
		for _, r := range class {
			for _, loc := range r.Regex.FindAllStringIndex(text, -1) {
				detections = append(detections, Detection{
					RuleName: r.Name,
					Level:    r.Level,
					Category: r.Category,
					Start:    loc[0],
					End:      loc[1],
				})
			}
		}
	}
	return detections
}

// CheckInput screens a child's message before any model sees it.
// Precedence is crisis, then alert, then redirect.
func (f *Filter) CheckInput(text, personaID string) filter.Result {
	t := strings.TrimSpace(text)
	if t == "" {
		return filter.Safe()
	}

	if r, ok := firstMatch(f.crisis, t); ok {
		return filter.Result{
			Level:           filter.LevelCrisis,
			Reason:          reasonInputCrisis,
			Category:        r.Category,
			RedirectMessage: CrisisResponse,
			ParentNote:      fmt.Sprintf("⚠️ URGENT: Crisis language detected: '%s...'", truncateRunes(t, crisisExcerptRunes)),
		}
	}

	if r, ok := firstMatch(f.alert, t); ok {
		return filter.Result{
			Level:      filter.LevelAlert,
			Reason:     reasonInputAlert,
			Category:   r.Category,
			ParentNote: fmt.Sprintf("Flagged message: '%s'", truncateRunes(t, alertExcerptRunes)),
		}
	}

	if r, ok := firstMatch(f.redirect, t); ok {
		return filter.Result{
			Level:           filter.LevelRedirect,
			Reason:          reasonInputRedirect,
			Category:        r.Category,
			RedirectMessage: persona.Lookup(personaID).Redirect,
		}
	}

	return filter.Safe()
}

// CheckOutput screens an assembled model reply before it is shown or stored.
// Only the crisis and redirect classes apply; replacement text is generic.
func (f *Filter) CheckOutput(text string) filter.Result {
	if r, ok := firstMatch(f.crisis, text); ok {
		return filter.Result{
			Level:           filter.LevelCrisis,
			Reason:          reasonOutputCrisis,
			Category:        r.Category,
			RedirectMessage: OutputCrisisReplacement,
			ParentNote:      outputCrisisNote,
		}
	}

	if r, ok := firstMatch(f.redirect, text); ok {
		return filter.Result{
			Level:           filter.LevelRedirect,
			Reason:          reasonOutputRedirect,
			Category:        r.Category,
			RedirectMessage: OutputRedirectReplacement,
		}
	}

	return filter.Safe()
}

func firstMatch(rules []Rule, text string) (Rule, bool) {
	for _, r := range rules {
		if r.Regex.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var defaultFilter = NewDefault()

// CheckInput screens text with the built-in rules.
func CheckInput(text, personaID string) filter.Result {
	return defaultFilter.CheckInput(text, personaID)
}

// CheckOutput screens text with the built-in rules.
func CheckOutput(text string) filter.Result {
	return defaultFilter.CheckOutput(text)
}
