// Package api serves Lectern over HTTP.
//
// Routes (all JSON unless noted):
//
//	POST   /v1/search                       generate or load a topic and transcript
//	GET    /v1/cache?query=&language=       cached search result, 404 on miss
//	GET    /v1/history?language=            cached searches, newest first
//	POST   /v1/lecture                      separate lecture script
//	POST   /v1/image                        illustration as a data URL
//	POST   /v1/prepare                      search, lecture and image in one call
//	POST   /v1/lyrics                       song lyrics for a passage
//	GET    /v1/topics                       curated topic catalog
//	GET    /v1/topics/adjacent?current=&direction=
//	                                        next or previous catalog topic
//	GET    /v1/chapters/adjacent?reference=&direction=&language=
//	                                        next or previous Bible chapter
//	GET    /v1/sessions                     live sessions
//	POST   /v1/sessions                     start a playback session
//	GET    /v1/sessions/{id}                session snapshot
//	DELETE /v1/sessions/{id}                stop a session
//	GET    /v1/sessions/{id}/segments/{n}   segment audio (audio/wav)
//	POST   /v1/sessions/{id}/{command}      ended, pause, resume, seek, jump
//	GET    /v1/sessions/{id}/events         websocket event stream
//	GET    /healthz, /readyz                probes
//	GET    /metrics                         Prometheus scrape
package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/internal/health"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/session"
	"github.com/MrWong99/lectern/pkg/types"
)

// maxBodyBytes bounds request bodies. Transcripts are the largest payload.
const maxBodyBytes = 1 << 20

// Config holds the dependencies of a [Server].
type Config struct {
	Content  *content.Service
	Sessions *session.Manager
	Health   *health.Handler

	// DefaultLanguage and DefaultMinutes fill omitted request fields.
	DefaultLanguage types.Language
	DefaultMinutes  int

	// Gatherer serves /metrics. Default: [prometheus.DefaultGatherer].
	Gatherer prometheus.Gatherer

	// OriginPatterns authorises cross-origin websocket clients.
	OriginPatterns []string

	Metrics *observe.Metrics
}

// Server routes HTTP requests to the content service and session manager.
type Server struct {
	cfg Config
	mux *http.ServeMux
}

// New creates a Server and registers every route.
func New(cfg Config) *Server {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = types.LangEnglish
	}
	if cfg.DefaultMinutes <= 0 {
		cfg.DefaultMinutes = 3
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/search", s.handleSearch)
	s.mux.HandleFunc("GET /v1/cache", s.handleCache)
	s.mux.HandleFunc("GET /v1/history", s.handleHistory)
	s.mux.HandleFunc("POST /v1/lecture", s.handleLecture)
	s.mux.HandleFunc("POST /v1/image", s.handleImage)
	s.mux.HandleFunc("POST /v1/prepare", s.handlePrepare)
	s.mux.HandleFunc("POST /v1/lyrics", s.handleLyrics)
	s.mux.HandleFunc("GET /v1/topics", s.handleTopics)
	s.mux.HandleFunc("GET /v1/topics/adjacent", s.handleAdjacentTopic)
	s.mux.HandleFunc("GET /v1/chapters/adjacent", s.handleAdjacentChapter)

	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}/segments/{index}", s.handleSegment)
	s.mux.HandleFunc("POST /v1/sessions/{id}/ended", s.handleEnded)
	s.mux.HandleFunc("POST /v1/sessions/{id}/pause", s.handlePause)
	s.mux.HandleFunc("POST /v1/sessions/{id}/resume", s.handleResume)
	s.mux.HandleFunc("POST /v1/sessions/{id}/seek", s.handleSeek)
	s.mux.HandleFunc("POST /v1/sessions/{id}/jump", s.handleJump)
	s.mux.HandleFunc("GET /v1/sessions/{id}/events", s.handleEvents)

	if s.cfg.Health != nil {
		s.cfg.Health.Register(s.mux)
	}
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed handler wrapped in tracing and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.cfg.Metrics)(s.mux)
}

// SegmentPath is the URL path of a session segment's audio.
func SegmentPath(id string, index int) string {
	return fmt.Sprintf("/v1/sessions/%s/segments/%d", id, index)
}
