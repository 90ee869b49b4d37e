package whisper

import (
	"strings"
	"unicode"

	"github.com/petems/earshot/internal/transcriber"
)

// UnrecognizedToken replaces out-of-vocabulary words when the vocabulary
// includes it.
const UnrecognizedToken = "[unk]"

// Vocabulary limits what a backend reports. Whisper cannot be constrained to
// a grammar, so the words are used as an initial prompt to bias decoding and
// anything outside them is replaced or dropped afterwards.
//
// A nil *Vocabulary allows everything.
type Vocabulary struct {
	words               []string
	allowed             map[string]struct{}
	includeUnrecognized bool
}

// RestrictVocabulary builds a vocabulary from words, dropping duplicates and
// blanks. Matching ignores case and surrounding punctuation.
func RestrictVocabulary(words []string, includeUnrecognized bool) *Vocabulary {
	v := &Vocabulary{
		allowed:             make(map[string]struct{}, len(words)),
		includeUnrecognized: includeUnrecognized,
	}
	for _, w := range words {
		key := normalizeWord(w)
		if key == "" {
			continue
		}
		if _, seen := v.allowed[key]; seen {
			continue
		}
		v.allowed[key] = struct{}{}
		v.words = append(v.words, strings.TrimSpace(w))
	}
	return v
}

// Words returns the deduplicated vocabulary in first-seen order, plus
// UnrecognizedToken when it is included.
func (v *Vocabulary) Words() []string {
	if v == nil {
		return nil
	}
	out := append([]string(nil), v.words...)
	if v.includeUnrecognized {
		out = append(out, UnrecognizedToken)
	}
	return out
}

// Prompt is the initial prompt used to bias decoding towards the vocabulary.
func (v *Vocabulary) Prompt() string {
	if v == nil {
		return ""
	}
	return strings.Join(v.words, ", ")
}

func (v *Vocabulary) allows(word string) bool {
	if v == nil {
		return true
	}
	_, ok := v.allowed[normalizeWord(word)]
	return ok
}

// Apply rewrites text so that it only contains vocabulary words.
func (v *Vocabulary) Apply(text string) string {
	if v == nil {
		return strings.TrimSpace(text)
	}

	var kept []string
	for _, word := range strings.Fields(text) {
		switch {
		case v.allows(word):
			kept = append(kept, word)
		case v.includeUnrecognized:
			kept = append(kept, UnrecognizedToken)
		}
	}
	return strings.Join(kept, " ")
}

// ApplySegments is Apply for word segments; timings are kept.
func (v *Vocabulary) ApplySegments(segments []transcriber.Segment) []transcriber.Segment {
	if v == nil || segments == nil {
		return segments
	}

	out := make([]transcriber.Segment, 0, len(segments))
	for _, s := range segments {
		switch {
		case v.allows(s.Text):
			out = append(out, s)
		case v.includeUnrecognized:
			s.Text = UnrecognizedToken
			out = append(out, s)
		}
	}
	return out
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}
