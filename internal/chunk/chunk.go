// Package chunk splits freeform text into speech-synthesis sized segments on
// sentence boundaries.
//
// Sentence delimiters cover Latin and CJK punctuation (. ! ? 。 ？ ！) plus
// newline. Chunks are accumulated greedily up to a soft target length; a
// single sentence longer than the target is kept whole rather than cut
// mid-sentence. Fragments without any pronounceable character are dropped so
// bare punctuation is never sent to a synthesizer.
package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTarget is the soft chunk length in characters.
const DefaultTarget = 250

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	sentenceRE    = regexp.MustCompile(`[^.!?。？！\n]+[.!?。？！\n]+`)
)

// Split returns the ordered chunks of text. target <= 0 selects
// [DefaultTarget]. Empty or whitespace-only input yields nil.
func Split(text string, target int) []string {
	if target <= 0 {
		target = DefaultTarget
	}

	normalized := strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if normalized == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range sentences(normalized) {
		sentenceLen := utf8.RuneCountInString(sentence)
		if currentLen > 0 && currentLen+sentenceLen > target {
			chunks = appendPronounceable(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}
	if currentLen > 0 {
		chunks = appendPronounceable(chunks, current.String())
	}
	return chunks
}

// sentences splits normalized text into trimmed sentences, keeping their
// terminating punctuation. Text after the last delimiter forms a final
// sentence; text with no delimiter at all is a single sentence.
func sentences(s string) []string {
	locs := sentenceRE.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return []string{s}
	}

	out := make([]string, 0, len(locs)+1)
	last := 0
	for _, loc := range locs {
		// Leading delimiters (e.g. "...Hello.") have no preceding body and are
		// skipped by the pattern; fold them into the sentence that follows.
		if sent := strings.TrimSpace(s[last:loc[1]]); sent != "" {
			out = append(out, sent)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(s[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func appendPronounceable(chunks []string, c string) []string {
	c = strings.TrimSpace(c)
	if !Pronounceable(c) {
		return chunks
	}
	return append(chunks, c)
}

// Pronounceable reports whether s contains at least one letter, digit, or
// CJK ideograph.
func Pronounceable(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
