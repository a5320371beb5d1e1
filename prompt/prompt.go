// Package prompt composes the positive and negative prompts sent to the
// image engine from the user's raw text and a chosen style.
package prompt

import "strings"

// Style selects a descriptor appended to the user's prompt.
type Style string

const (
	StylePhotorealistic Style = "Photorealistic"
	StyleArtistic       Style = "Artistic"
	StyleCartoon        Style = "Cartoon"

	// StyleNone appends nothing.
	StyleNone Style = "None"
)

// BaseNegativePrompt is always sent as the negative prompt, extended by any
// user supplied terms.
const BaseNegativePrompt = "low quality, blurry, deformed, bad anatomy, distorted, watermark, text"

var descriptors = map[Style]string{
	StylePhotorealistic: "highly detailed, ultra realistic, 4k, DSLR photography, sharp focus",
	StyleArtistic:       "digital art, highly detailed, concept art, matte painting",
	StyleCartoon:        "cartoon style, 2D illustration, bold outlines, flat colors",
}

// Styles lists the selectable styles in display order.
func Styles() []Style {
	return []Style{StylePhotorealistic, StyleArtistic, StyleCartoon, StyleNone}
}

// Descriptor returns the text appended for s, or "" if s has none.
func (s Style) Descriptor() string {
	return descriptors[s]
}

// ParseStyle maps a UI value to a Style. Lookup is case-sensitive; unknown
// values are returned as-is and carry no descriptor.
func ParseStyle(name string) Style {
	if name == "" {
		return StyleNone
	}
	return Style(name)
}

// BuildPrompt trims userPrompt and appends the style descriptor when the
// style has one.
func BuildPrompt(userPrompt string, style Style) string {
	p := strings.TrimSpace(userPrompt)
	if d := style.Descriptor(); d != "" {
		p += ", " + d
	}
	return p
}

// BuildNegativePrompt returns BaseNegativePrompt, extended with userNegative
// when that is non-empty. userNegative is appended verbatim.
func BuildNegativePrompt(userNegative string) string {
	if userNegative == "" {
		return BaseNegativePrompt
	}
	return BaseNegativePrompt + ", " + userNegative
}
