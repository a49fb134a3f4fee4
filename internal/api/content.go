package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/pkg/types"
)

type searchRequest struct {
	Query         string         `json:"query"`
	Language      types.Language `json:"language"`
	LengthMinutes int            `json:"length_minutes"`
	ForceRefresh  bool           `json:"force_refresh"`
}

type lectureRequest struct {
	Title         string         `json:"title"`
	Overview      string         `json:"overview"`
	Language      types.Language `json:"language"`
	LengthMinutes int            `json:"length_minutes"`
	ForceRefresh  bool           `json:"force_refresh"`
}

type lectureResponse struct {
	Script string `json:"script"`
}

type imageRequest struct {
	Topic string `json:"topic"`
}

type imageResponse struct {
	MIMEType string `json:"mime_type"`
	DataURL  string `json:"data_url"`
}

type prepareResponse struct {
	Result types.SearchResult `json:"result"`
	Script string             `json:"script"`
	Image  *imageResponse     `json:"image,omitempty"`
}

// language validates l, substituting the configured default when empty.
func (s *Server) language(l types.Language) (types.Language, error) {
	if l == "" {
		return s.cfg.DefaultLanguage, nil
	}
	if !l.IsValid() {
		return "", badRequest("unsupported language %q", l)
	}
	return l, nil
}

func (s *Server) minutes(n int) int {
	if n <= 0 {
		return s.cfg.DefaultMinutes
	}
	return n
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, badRequest("query must not be empty"))
		return
	}
	lang, err := s.language(req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.cfg.Content.Search(r.Context(), req.Query, lang, s.minutes(req.LengthMinutes), req.ForceRefresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang, err := s.language(types.Language(q.Get("language")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, ok := s.cfg.Content.CheckCacheExistence(q.Get("query"), lang)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not cached"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	lang, err := s.language(types.Language(r.URL.Query().Get("language")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Content.History(lang))
}

func (s *Server) handleLecture(w http.ResponseWriter, r *http.Request) {
	var req lectureRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, r, badRequest("title must not be empty"))
		return
	}
	lang, err := s.language(req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}

	script, err := s.cfg.Content.Lecture(r.Context(), req.Title, req.Overview, lang, s.minutes(req.LengthMinutes), req.ForceRefresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lectureResponse{Script: script})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, r, badRequest("topic must not be empty"))
		return
	}

	img, err := s.cfg.Content.Image(r.Context(), req.Topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toImageResponse(img))
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, badRequest("query must not be empty"))
		return
	}
	lang, err := s.language(req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.cfg.Content.Prepare(r.Context(), req.Query, lang, s.minutes(req.LengthMinutes), req.ForceRefresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := prepareResponse{Result: b.Result, Script: b.Script()}
	if b.Image != nil {
		img := toImageResponse(*b.Image)
		resp.Image = &img
	}
	writeJSON(w, http.StatusOK, resp)
}

// prepareScript resolves a query into a transcript and title for a new
// session.
func (s *Server) prepareScript(r *http.Request, query string, lang types.Language, minutes int) (string, string, error) {
	if s.cfg.Content == nil {
		return "", "", errors.New("api: content service not configured")
	}
	b, err := s.cfg.Content.Prepare(r.Context(), query, lang, minutes, false)
	if err != nil {
		return "", "", err
	}
	return b.Script(), b.Result.Topic.Title, nil
}

func toImageResponse(img types.Image) imageResponse {
	return imageResponse{MIMEType: img.MIMEType, DataURL: content.DataURL(img)}
}
