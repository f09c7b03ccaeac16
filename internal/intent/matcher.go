// Package intent implements the keyword-based intent classifier used by
// intent nodes. It is deliberately low-cost: no scoring, no stemming, first
// match in configured order wins.
package intent

import "strings"

// Matcher classifies free-text user input against configured intent labels.
// The keyword table is passed in explicitly so tenants or languages can
// override it without code changes.
type Matcher struct {
	keywords map[string][]string
}

// NewMatcher creates a Matcher with the given keyword table. Pass
// DefaultKeywords() for the built-in table; a nil map means every intent
// label is matched by itself only.
func NewMatcher(keywords map[string][]string) *Matcher {
	return &Matcher{keywords: keywords}
}

// Match returns the first configured intent whose keyword list has a
// substring match in the lowercased message. Intents are checked in the
// order given, so overlapping keyword sets resolve by configuration order.
// An intent without a keyword list is matched by its own label.
func (m *Matcher) Match(intents []string, message string) (string, bool) {
	msg := strings.ToLower(message)
	if msg == "" {
		return "", false
	}

	for _, label := range intents {
		keywords, ok := m.keywords[label]
		if !ok || len(keywords) == 0 {
			keywords = []string{strings.ToLower(label)}
		}
		for _, kw := range keywords {
			if kw != "" && strings.Contains(msg, strings.ToLower(kw)) {
				return label, true
			}
		}
	}
	return "", false
}
