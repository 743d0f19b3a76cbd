// Package dismiss flags end-of-conversation intent in transcribed speech.
// Detection is a stateless pattern match over the transcript; the caller
// decides when the resulting dismissal takes effect.
package dismiss

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultPatterns covers the goodbye phrases the appliance understands,
// Portuguese first since that is the primary deployment language.
// RE2's \b is ASCII-only, so phrases that start or end on an accented
// letter carry explicit boundaries instead.
var defaultPatterns = []string{
	// Portuguese
	`\btchau\b`,
	`\baté\s+(logo|mais|depois|breve)\b`,
	`\baté\s+(a\s+)?próxima\b`,
	`\badeus\b`,
	`\bpode\s+(ir|desligar|parar|dormir)\b`,
	`\bvaleu\b`,
	`\bfalou\b`,
	`\bvai\s+(embora|dormir)\b`,
	`\bvou\s+desligar\b`,
	`\bestá\s+bom\b`,
	`(?:^|\s)é\s+isso(\s+aí)?\s*$`,

	// English
	`\bgoodbye\b`,
	`\bbye\b`,
	`\bsee\s+you\b`,
	`\bthat'?s\s+all\b`,
	`\bthanks,?\s+bye\b`,
	`\bfarewell\b`,
	`\blater\b`,
	`\bcatch\s+you\s+later\b`,
	`\bgotta\s+go\b`,
	`\bhave\s+to\s+go\b`,
	`\btake\s+care\b`,
	`\bgood\s*night\b`,
	`\bsleep\s+now\b`,
	`\bshut\s+down\b`,
	`\bturn\s+off\b`,
	`\bstop\s+listening\b`,
}

// Detector matches dismissal phrases in transcribed text.
// The zero value is not usable; construct with New or NewWithPatterns.
type Detector struct {
	patterns []*regexp.Regexp
}

// New creates a detector with the built-in Portuguese and English phrases.
func New() *Detector {
	d, err := NewWithPatterns(defaultPatterns)
	if err != nil {
		// The built-in set is compile-checked by tests.
		panic(err)
	}
	return d
}

// NewWithPatterns creates a detector from custom regular expressions.
// Patterns are matched case-insensitively against the whole transcript.
func NewWithPatterns(patterns []string) (*Detector, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("dismiss: bad pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Detector{patterns: compiled}, nil
}

// Detect reports whether the text contains a dismissal phrase.
func (d *Detector) Detect(text string) bool {
	_, ok := d.Match(text)
	return ok
}

// Match returns the matched phrase and true when the text contains a
// dismissal, or "" and false otherwise.
func (d *Detector) Match(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, re := range d.patterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m), true
		}
	}
	return "", false
}

// Patterns returns the number of compiled patterns, for diagnostics.
func (d *Detector) Patterns() int {
	return len(d.patterns)
}
