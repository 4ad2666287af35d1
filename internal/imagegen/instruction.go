package imagegen

import "strings"

// BuildInstruction assembles the final edit instruction: the guard clause
// first, an optional "preserve these properties" line produced by the
// analysis pre-pass, then the user's literal request. Without the guard the
// model frequently ignores the supplied image and paints a fresh scene.
func BuildInstruction(guard, userPrompt, description, locale string) string {
	parts := []string{strings.TrimSpace(guard)}
	if description = strings.TrimSpace(description); description != "" {
		parts = append(parts, "Preserve these properties of the original image: "+description)
	}
	parts = append(parts, "Requested change: "+strings.TrimSpace(userPrompt))
	if locale = strings.TrimSpace(locale); locale != "" {
		parts = append(parts, "Locale: "+locale)
	}
	return strings.Join(parts, "\n")
}
