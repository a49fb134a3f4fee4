package api

import (
	"net/http"
	"strings"

	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/pkg/types"
)

type lyricsRequest struct {
	Reference string         `json:"reference"`
	Passage   string         `json:"passage"`
	Language  types.Language `json:"language"`
}

type lyricsResponse struct {
	Lyrics string `json:"lyrics"`
}

type topicsResponse struct {
	Profile    string                  `json:"profile"`
	Categories []content.TopicCategory `json:"categories"`
}

type adjacentResponse struct {
	Query string `json:"query"`
}

func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	var req lyricsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeError(w, r, badRequest("reference must not be empty"))
		return
	}
	lang, err := s.language(req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}

	text, err := s.cfg.Content.Lyrics(r.Context(), req.Reference, req.Passage, lang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lyricsResponse{Lyrics: text})
}

func (s *Server) handleTopics(w http.ResponseWriter, _ *http.Request) {
	p := s.cfg.Content.Profile()
	cats := p.Topics
	if cats == nil {
		cats = []content.TopicCategory{}
	}
	writeJSON(w, http.StatusOK, topicsResponse{Profile: p.Name, Categories: cats})
}

func (s *Server) handleAdjacentTopic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := direction(q.Get("direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	next, ok := s.cfg.Content.Profile().AdjacentTopic(q.Get("current"), dir)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no adjacent topic"})
		return
	}
	writeJSON(w, http.StatusOK, adjacentResponse{Query: next})
}

func (s *Server) handleAdjacentChapter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := direction(q.Get("direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang, err := s.language(types.Language(q.Get("language")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	next, ok := content.AdjacentChapter(q.Get("reference"), dir, lang)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no adjacent chapter"})
		return
	}
	writeJSON(w, http.StatusOK, adjacentResponse{Query: next})
}

// direction parses the direction query parameter, defaulting to next.
func direction(v string) (content.Direction, error) {
	if v == "" {
		return content.Next, nil
	}
	d, err := content.ParseDirection(v)
	if err != nil {
		return d, badRequest("direction must be next or prev")
	}
	return d, nil
}
