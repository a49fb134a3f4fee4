package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/lectern/internal/playback"
	"github.com/MrWong99/lectern/internal/session"
	"github.com/MrWong99/lectern/pkg/types"
)

// eventWriteTimeout bounds one websocket write.
const eventWriteTimeout = 10 * time.Second

type createSessionRequest struct {
	Script         string         `json:"script"`
	Query          string         `json:"query"`
	Title          string         `json:"title"`
	Voice          types.VoiceID  `json:"voice"`
	SecondaryVoice types.VoiceID  `json:"secondary_voice"`
	Language       types.Language `json:"language"`
	LengthMinutes  int            `json:"length_minutes"`
}

type createSessionResponse struct {
	ID       string            `json:"id"`
	Tier     string            `json:"tier"`
	Items    types.Playlist    `json:"items"`
	Snapshot playback.Snapshot `json:"snapshot"`
	Events   string            `json:"events"`
}

type seekRequest struct {
	OffsetMS int64 `json:"offset_ms"`
}

type seekResponse struct {
	OffsetMS int64 `json:"offset_ms"`
}

type jumpRequest struct {
	Index int `json:"index"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.cfg.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Sessions.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	script, title := req.Script, req.Title
	if strings.TrimSpace(script) == "" {
		if strings.TrimSpace(req.Query) == "" {
			writeError(w, r, badRequest("either script or query is required"))
			return
		}
		lang, err := s.language(req.Language)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var topic string
		script, topic, err = s.prepareScript(r, req.Query, lang, s.minutes(req.LengthMinutes))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if title == "" {
			title = topic
		}
	}

	sess, err := s.cfg.Sessions.Create(r.Context(), session.CreateRequest{
		Script:         script,
		Title:          title,
		PrimaryVoice:   req.Voice,
		SecondaryVoice: req.SecondaryVoice,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:       sess.ID,
		Tier:     sess.Tier.String(),
		Items:    sess.Playlist(),
		Snapshot: sess.Controller.Snapshot(),
		Events:   "/v1/sessions/" + sess.ID + "/events",
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, r, badRequest("segment index %q is not a number", r.PathValue("index")))
		return
	}

	seg, err := sess.Segment(r.Context(), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(seg.WAV)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Segment-Duration-Ms", strconv.FormatInt(seg.Duration.Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(seg.WAV)
}

// command runs a controller transition and replies with the new snapshot.
func (s *Server) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c *playback.Controller) error) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), sess.Controller); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Controller.Snapshot())
}

func (s *Server) handleEnded(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(ctx context.Context, c *playback.Controller) error {
		return c.SegmentEnded(ctx)
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(_ context.Context, c *playback.Controller) error { return c.Pause() })
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(_ context.Context, c *playback.Controller) error { return c.Resume() })
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req seekRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	applied, err := sess.Controller.Seek(time.Duration(req.OffsetMS) * time.Millisecond)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seekResponse{OffsetMS: applied.Milliseconds()})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.command(w, r, func(ctx context.Context, c *playback.Controller) error {
		return c.Jump(ctx, req.Index)
	})
}

// handleEvents streams the session's events over a websocket until the
// client disconnects or the session is deleted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	events, cancel := sess.Events.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(wctx, conn, e)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}
