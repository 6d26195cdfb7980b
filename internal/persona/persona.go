// Package persona defines the assistant identity and generates the
// system prompt that anchors every backend request.
package persona

import (
	"fmt"
	"strings"
)

// Persona describes who the assistant is and how it must answer.
// The generated prompt is fixed for the process lifetime; every turn
// starts from the same instructions so replies stay consistent across
// the conversation window.
type Persona struct {
	// Name is the assistant's display name.
	Name string
	// Role is the one-line specialization framing.
	Role string
	// Focus lists the subjects the assistant specializes in.
	Focus []string
	// Guidance holds behavioral instructions: hedging on uncertain
	// facts, safety refusals, and similar.
	Guidance []string
	// Formatting holds the output-format rules. The normalizer depends
	// on these staying plain-text oriented.
	Formatting []string
}

// Default returns the stock Typhoon persona: a fighter-aircraft
// specialist that answers in plain text.
func Default() *Persona {
	return &Persona{
		Name: "Typhoon",
		Role: "a specialist assistant focused on modern fighter aircraft",
		Focus: []string{
			"F-16", "F-15EX", "Rafale", "Gripen", "Su-35", "J-20", "F-35",
		},
		Guidance: []string{
			"Keep answers educational and based on publicly available information.",
			"If details are uncertain or vary by source/configuration, say so clearly.",
			"Do not provide tactical combat instructions.",
		},
		Formatting: []string{
			"Plain text only. No markdown.",
			"Do not use asterisks, underscores, backticks, hashtags, or bullet symbols.",
			"If listing items, use numbering like:",
			"1. Item: sentence.",
			"2. Item: sentence.",
		},
	}
}

// BuildSystemPrompt renders the persona into the system message sent
// first on every request.
func (p *Persona) BuildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are %s, %s", p.Name, p.Role))
	if len(p.Focus) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s and more)", strings.Join(p.Focus, ", ")))
	}
	sb.WriteString(". ")
	sb.WriteString(strings.Join(p.Guidance, " "))

	if len(p.Formatting) > 0 {
		sb.WriteString("\n\nFormatting rules:\n")
		sb.WriteString(strings.Join(p.Formatting, "\n"))
	}

	sb.WriteString("\n\nIf your response is long, it is OK to continue across multiple messages.")
	return sb.String()
}
