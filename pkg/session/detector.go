package session

import "strings"

// EndDetector decides from the agent's own words whether the call is over.
type EndDetector interface {
	ShouldEnd(agentText string) bool
}

// EndDetectorFunc adapts a function to EndDetector.
type EndDetectorFunc func(string) bool

// ShouldEnd calls f(text).
func (f EndDetectorFunc) ShouldEnd(text string) bool {
	return f(text)
}

// DefaultPhrases end a call when the agent says any of them.
func DefaultPhrases() []string {
	return []string{"goodbye", "bye", "have a great day", "ending call"}
}

// PhraseDetector matches phrases as case-insensitive substrings.
type PhraseDetector struct {
	phrases []string
}

// NewPhraseDetector returns a detector for phrases, or DefaultPhrases when
// none are given.
func NewPhraseDetector(phrases ...string) PhraseDetector {
	if len(phrases) == 0 {
		phrases = DefaultPhrases()
	}
	lower := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lower = append(lower, p)
		}
	}
	return PhraseDetector{phrases: lower}
}

// ShouldEnd implements EndDetector.
func (d PhraseDetector) ShouldEnd(text string) bool {
	t := strings.ToLower(text)
	for _, p := range d.phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
