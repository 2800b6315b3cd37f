package safety

import (
	"regexp"

	"github.com/smiling-critters/critter-gateway/internal/filter"
)

// Rule is one pattern of a rule class. Category is reported back in
// filter.Result so parents can see why a message was flagged.
type Rule struct {
	Name     string
	Level    filter.Level
	Category string
	Regex    *regexp.Regexp
}

// DefaultRules returns the built-in rules of all three classes.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "self_harm",
			Level:    filter.LevelCrisis,
			Category: "self_harm",
			Regex:    regexp.MustCompile(`(?i)\b(hurt myself|hurt my self|cut myself|kill myself|suicide|want to die|end it all|don't want to be here|i hate myself)\b`),
		},
		{
			Name:     "hopelessness",
			Level:    filter.LevelCrisis,
			Category: "self_harm",
			Regex:    regexp.MustCompile(`(?i)\b(self.?harm|no one cares|no one would miss me|everyone would be better without me)\b`),
		},
		{
			Name:     "bullying",
			Level:    filter.LevelAlert,
			Category: "bullying",
			Regex:    regexp.MustCompile(`(?i)\b(bully|bullying|they hate me|nobody likes me|they made fun|excluded|left out|no friends)\b`),
		},
		{
			Name:     "personal_info",
			Level:    filter.LevelAlert,
			Category: "personal_info",
			Regex:    regexp.MustCompile(`(?i)\b(my address|my school|where i live|my phone number|come find me)\b`),
		},
		{
			Name:     "being_hurt",
			Level:    filter.LevelAlert,
			Category: "being_hurt",
			Regex:    regexp.MustCompile(`(?i)\b(hitting me|hurting me|someone hit|someone touched|abuse)\b`),
		},
		{
			Name:     "violence",
			Level:    filter.LevelRedirect,
			Category: "violence",
			Regex:    regexp.MustCompile(`(?i)\b(kill|murder|stab|shoot|gun|knife|weapon|bomb|explode|blood|gore|hurt\s+someone)\b`),
		},
		{
			Name:     "adult_content",
			Level:    filter.LevelRedirect,
			Category: "adult_content",
			Regex:    regexp.MustCompile(`(?i)\b(sex|porn|naked|adult|xxx|nsfw)\b`),
		},
		{
			Name:     "drugs",
			Level:    filter.LevelRedirect,
			Category: "drugs",
			Regex:    regexp.MustCompile(`(?i)\b(drug|weed|cocaine|alcohol|drunk|smoke|vape)\b`),
		},
		{
			Name:     "scary_media",
			Level:    filter.LevelRedirect,
			Category: "scary_media",
			Regex:    regexp.MustCompile(`(?i)\b(horror|scary movie|nightmare|demon|ghost attack)\b`),
		},
	}
}
