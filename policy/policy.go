// Package policy implements the keyword content filter that gates every
// generation request.
//
// Matching is plain lower-case substring containment. There is no word
// boundary handling, so "skill" matches "kill" and "Sussex" matches "sex".
// That over-blocking is accepted.
package policy

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// RejectionMessage is shown to the user when a prompt is blocked.
const RejectionMessage = "This prompt violates ethical content guidelines. Please modify it."

// Category names a group of banned keywords.
type Category string

const (
	CategorySexualContent     Category = "sexual_content"
	CategoryViolence          Category = "violence"
	CategoryIllegalActivities Category = "illegal_activities"
	CategoryHateSpeech        Category = "hate_speech"
	CategoryWeapons           Category = "weapons"
	CategorySelfHarm          Category = "self_harm"
)

// bannedCategories is the fixed keyword table. Keywords are lower case.
var bannedCategories = map[Category][]string{
	CategorySexualContent:     {"nude", "naked", "porn", "sex", "erotic", "explicit"},
	CategoryViolence:          {"gore", "murder", "kill", "torture", "beheading"},
	CategoryIllegalActivities: {"bomb", "drug dealing", "counterfeit", "terrorist", "hack bank"},
	CategoryHateSpeech:        {"genocide", "nazi", "supremacist", "ethnic cleansing"},
	CategoryWeapons:           {"gun", "rifle", "grenade", "explosive", "weapon"},
	CategorySelfHarm:          {"suicide", "self harm", "cutting", "overdose"},
}

// instructionPhrases mark requests for procedural how-to content.
var instructionPhrases = []string{
	"how to make",
	"how to build",
	"step by step",
	"tutorial for",
	"instructions for",
}

// categoryOrder gives Evaluate a stable iteration order over the map.
var categoryOrder = func() []Category {
	keys := lo.Keys(bannedCategories)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}()

// bannedKeywords is the flattened union of every category.
var bannedKeywords = lo.Flatten(lo.Map(categoryOrder, func(c Category, _ int) []string {
	return bannedCategories[c]
}))

// Decision is the detailed outcome of evaluating a prompt.
type Decision struct {
	Allowed bool

	// Category and Keyword identify the first banned keyword found.
	// Both are empty when the prompt is allowed.
	Category Category
	Keyword  string

	// Instruction is set when the prompt also asks for step-by-step
	// instructions alongside a banned keyword.
	Instruction bool
}

// IsPromptAllowed reports whether prompt passes the content filter.
// The empty prompt is allowed.
func IsPromptAllowed(prompt string) bool {
	return Evaluate(prompt).Allowed
}

// Evaluate runs the filter and reports what, if anything, matched.
//
// Two rules are checked in order: an instruction phrase combined with a
// banned keyword, then a banned keyword on its own. The first rule can
// only fire when the second would too, so Allowed always equals "contains
// no banned keyword". The first rule is kept so that Decision.Instruction
// can distinguish how-to requests in logs.
func Evaluate(prompt string) Decision {
	lowered := strings.ToLower(prompt)

	category, keyword, found := findBanned(lowered)
	if !found {
		return Decision{Allowed: true}
	}

	instruction := lo.SomeBy(instructionPhrases, func(p string) bool {
		return strings.Contains(lowered, p)
	})

	return Decision{
		Allowed:     false,
		Category:    category,
		Keyword:     keyword,
		Instruction: instruction,
	}
}

func findBanned(lowered string) (Category, string, bool) {
	for _, category := range categoryOrder {
		keyword, ok := lo.Find(bannedCategories[category], func(k string) bool {
			return strings.Contains(lowered, k)
		})
		if ok {
			return category, keyword, true
		}
	}
	return "", "", false
}

// Categories returns the category names in stable order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// Keywords returns a copy of the keywords for category.
func Keywords(category Category) []string {
	return append([]string(nil), bannedCategories[category]...)
}

// AllKeywords returns every banned keyword across all categories.
func AllKeywords() []string {
	return append([]string(nil), bannedKeywords...)
}
