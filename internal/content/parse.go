package content

import (
	"cmp"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/lectern/pkg/types"
)

const (
	headerMarker     = "---HEADER---"
	transcriptMarker = "---TRANSCRIPT---"
	endMarker        = "---END---"

	// minScriptRunes is the shortest transcript kept as-is; anything shorter
	// is replaced by the profile's fallback dialogue.
	minScriptRunes = 50
)

var jsonFenceRE = regexp.MustCompile("```json\\s*|\\s*```")

// cleanJSON strips markdown fences and keeps the text from the first '{'
// through the last '}'. Input without braces is returned fence-stripped.
func cleanJSON(s string) string {
	s = jsonFenceRE.ReplaceAllString(s, "")
	first, last := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if first != -1 && last != -1 && first < last {
		s = s[first : last+1]
	}
	return s
}

// header is the JSON metadata block preceding the transcript.
type header struct {
	Title     string `json:"title"`
	TechStack string `json:"techStack"`
	Overview  string `json:"overview"`
}

// legacyBody is the single-object reply some models produce instead of the
// delimited format.
type legacyBody struct {
	Topic  *types.Topic `json:"topic"`
	Script string       `json:"script"`
}

// parseResponse decodes a model reply in the ---HEADER--- / ---TRANSCRIPT---
// / ---END--- format into a search result (without timestamp).
func (p Profile) parseResponse(full, query string) (types.SearchResult, error) {
	if strings.TrimSpace(full) == "" {
		return types.SearchResult{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	idx := strings.Index(full, transcriptMarker)
	if idx == -1 {
		var body legacyBody
		if err := json.Unmarshal([]byte(cleanJSON(full)), &body); err != nil {
			return types.SearchResult{}, fmt.Errorf("%w: no transcript delimiter: %w", ErrMalformedResponse, err)
		}
		if body.Topic == nil {
			return types.SearchResult{}, fmt.Errorf("%w: no transcript delimiter and no topic", ErrMalformedResponse)
		}
		return types.SearchResult{
			Topic: *body.Topic,
			Passage: types.Passage{
				Reference: body.Topic.Title,
				Text:      body.Topic.Overview,
				Context:   body.Script,
			},
		}, nil
	}

	headerText := strings.Replace(full[:idx], headerMarker, "", 1)
	script := full[idx+len(transcriptMarker):]
	script = strings.TrimSpace(strings.Replace(script, endMarker, "", 1))

	var h header
	if err := json.Unmarshal([]byte(cleanJSON(headerText)), &h); err != nil {
		h = header{Title: query, TechStack: p.HeaderTechStack, Overview: p.HeaderOverview}
	}

	if utf8.RuneCountInString(script) < minScriptRunes {
		fb, err := p.render(p.fallback, promptData{Title: h.Title, Overview: h.Overview})
		if err != nil {
			return types.SearchResult{}, err
		}
		script = fb
	}

	title := cmp.Or(h.Title, query)
	return types.SearchResult{
		Topic: types.Topic{
			Title:     title,
			TechStack: cmp.Or(h.TechStack, p.DefaultTechStack),
			Overview:  cmp.Or(h.Overview, p.DefaultOverview),
		},
		Passage: types.Passage{
			Reference: title,
			Text:      h.Overview,
			Context:   script,
		},
	}, nil
}

