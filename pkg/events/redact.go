package events

import (
	"fmt"
	"regexp"
	"strings"
)

const redactedMarker = "[REDACTED]"

var namedPatterns = map[string]string{
	"email": `(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
	"cc16":  `\b(?:\d[ -]?){16}\b`,
	"jwt":   `eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9._-]+\.[A-Za-z0-9._-]+`,
}

// Redactor masks sensitive substrings in typed text before it is persisted.
//
// The zero value is a no-op redactor.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the built-in email expression when redactEmails is set
// and every custom expression. Custom entries may name a built-in pattern
// ("email", "cc16", "jwt") instead of spelling out a regular expression.
func NewRedactor(redactEmails bool, custom []string) (Redactor, error) {
	patterns := make([]*regexp.Regexp, 0, len(custom)+1)

	if redactEmails {
		patterns = append(patterns, regexp.MustCompile(namedPatterns["email"]))
	}

	for _, expr := range custom {
		trimmed := strings.TrimSpace(expr)
		if trimmed == "" {
			continue
		}
		candidate := trimmed
		if mapped, ok := namedPatterns[strings.ToLower(trimmed)]; ok {
			candidate = mapped
		}
		rx, err := regexp.Compile(candidate)
		if err != nil {
			return Redactor{}, fmt.Errorf("compile redact pattern %q: %w", trimmed, err)
		}
		patterns = append(patterns, rx)
	}

	return Redactor{patterns: patterns}, nil
}

// Enabled reports whether any pattern is configured.
func (r Redactor) Enabled() bool {
	return len(r.patterns) > 0
}

// ApplyString masks every match in input.
func (r Redactor) ApplyString(input string) string {
	redacted := input
	for _, rx := range r.patterns {
		redacted = rx.ReplaceAllString(redacted, redactedMarker)
	}
	return redacted
}

// ApplyEvent returns event with its free-text fields redacted. Only typed text
// carries user content; other variants are returned unchanged.
func (r Redactor) ApplyEvent(event Event) Event {
	if !r.Enabled() {
		return event
	}
	if typed, ok := event.(Typing); ok {
		typed.Text = r.ApplyString(typed.Text)
		return typed
	}
	return event
}
