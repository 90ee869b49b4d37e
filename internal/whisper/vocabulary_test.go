package whisper

import (
	"testing"
	"time"

	"github.com/petems/earshot/internal/transcriber"
)

func TestRestrictVocabularyDeduplicates(t *testing.T) {
	tests := []struct {
		name                string
		includeUnrecognized bool
		want                []string
	}{
		{"without unknown token", false, []string{"words", "to", "restrict"}},
		{"with unknown token", true, []string{"words", "to", "restrict", UnrecognizedToken}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := RestrictVocabulary([]string{"words", "to", "restrict", "to", "  ", "Words"}, tt.includeUnrecognized)
			got := v.Words()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestVocabularyPrompt(t *testing.T) {
	v := RestrictVocabulary([]string{"left", "right", "stop"}, true)
	if got := v.Prompt(); got != "left, right, stop" {
		t.Fatalf("unexpected prompt %q", got)
	}

	var none *Vocabulary
	if none.Prompt() != "" {
		t.Fatal("expected empty prompt without a vocabulary")
	}
}

func TestVocabularyApply(t *testing.T) {
	tests := []struct {
		name                string
		includeUnrecognized bool
		text                string
		want                string
	}{
		{"drops unknown words", false, "Turn left, then stop.", "left, stop."},
		{"marks unknown words", true, "Turn left, then stop.", "[unk] left, [unk] stop."},
		{"nothing recognised", false, "hello there", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := RestrictVocabulary([]string{"left", "right", "stop"}, tt.includeUnrecognized)
			if got := v.Apply(tt.text); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNilVocabularyAllowsEverything(t *testing.T) {
	var v *Vocabulary
	if got := v.Apply("  anything goes "); got != "anything goes" {
		t.Fatalf("unexpected text %q", got)
	}
	segs := []transcriber.Segment{{Text: "anything"}}
	if got := v.ApplySegments(segs); len(got) != 1 {
		t.Fatalf("expected segments untouched, got %v", got)
	}
}

func TestVocabularyApplySegments(t *testing.T) {
	segs := []transcriber.Segment{
		{Text: "go", Start: 0, End: 200 * time.Millisecond},
		{Text: "Left", Start: 200 * time.Millisecond, End: 500 * time.Millisecond},
	}

	dropped := RestrictVocabulary([]string{"left"}, false).ApplySegments(segs)
	if len(dropped) != 1 || dropped[0].Text != "Left" {
		t.Fatalf("unexpected segments %v", dropped)
	}

	marked := RestrictVocabulary([]string{"left"}, true).ApplySegments(segs)
	if len(marked) != 2 || marked[0].Text != UnrecognizedToken || marked[0].End != 200*time.Millisecond {
		t.Fatalf("unexpected segments %v", marked)
	}
}
