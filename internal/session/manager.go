// Package session owns the live playback sessions of a server.
//
// A [Session] bundles a parsed playlist, its own [segment.Fetcher] and
// [playback.Controller], and a [Hub] that streams the controller's commands to
// clients. The [Manager] creates sessions from transcripts, looks them up by
// id and tears them down. Tuning changes apply to sessions created afterwards.
package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/playback"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/internal/script"
	"github.com/MrWong99/lectern/internal/segment"
	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/types"
)

// DefaultMaxSessions bounds concurrent sessions when Config.MaxSessions is 0.
const DefaultMaxSessions = 64

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session: not found")

	// ErrTooManySessions is returned by Create when the session limit is
	// reached.
	ErrTooManySessions = errors.New("session: too many active sessions")

	// ErrUnknownVoice is returned by Create for a voice outside
	// [types.KnownVoices].
	ErrUnknownVoice = errors.New("session: unknown voice")
)

// Tuning holds the per-session knobs that may change at runtime.
type Tuning struct {
	ChunkTarget         int
	PrefetchWindow      int
	PrimaryVoice        types.VoiceID
	SecondaryVoice      types.VoiceID
	SampleRate          int
	MaxConsecutiveSkips int
	Retry               resilience.RetryPolicy
}

// Config holds all dependencies for a [Manager].
type Config struct {
	// Labels are the speaker spellings passed to the script parser.
	Labels map[types.Role][]string

	Tuning Tuning

	// MaxSessions defaults to [DefaultMaxSessions].
	MaxSessions int

	// ProviderName labels speech metrics.
	ProviderName string

	// SegmentURL builds the audio URL published in play events.
	SegmentURL func(id string, index int) string

	Metrics *observe.Metrics
}

// Info is a summary of a live session.
type Info struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Tier      string            `json:"tier"`
	Length    int               `json:"length"`
	CreatedAt time.Time         `json:"created_at"`
	Snapshot  playback.Snapshot `json:"snapshot"`
}

// Session is one live playback session.
type Session struct {
	ID        string
	Title     string
	Tier      script.Tier
	CreatedAt time.Time

	Controller *playback.Controller
	Events     *Hub

	playlist types.Playlist
	fetcher  *segment.Fetcher
}

// Playlist returns the parsed playlist.
func (s *Session) Playlist() types.Playlist { return s.playlist }

// Segment returns the audio of playlist[index], synthesising it if needed.
func (s *Session) Segment(ctx context.Context, index int) (types.SegmentAudio, error) {
	if index < 0 || index >= len(s.playlist) {
		return types.SegmentAudio{}, fmt.Errorf("%w: %d not in [0,%d)", playback.ErrIndexOutOfRange, index, len(s.playlist))
	}
	return s.fetcher.Fetch(ctx, index, s.playlist[index])
}

// FetchStats reports the session's segment cache counters.
func (s *Session) FetchStats() segment.Stats { return s.fetcher.Stats() }

// Info summarises the session.
func (s *Session) Info() Info {
	return Info{
		ID:        s.ID,
		Title:     s.Title,
		Tier:      s.Tier.String(),
		Length:    len(s.playlist),
		CreatedAt: s.CreatedAt,
		Snapshot:  s.Controller.Snapshot(),
	}
}

func (s *Session) close() {
	s.Controller.Close()
	s.Events.Close()
}

// CreateRequest describes a new session.
type CreateRequest struct {
	Script string
	Title  string

	// Voice overrides apply to this session only. Empty keeps the tuning.
	PrimaryVoice   types.VoiceID
	SecondaryVoice types.VoiceID
}

// Manager manages the lifecycle of playback sessions. All exported methods
// are safe for concurrent use.
type Manager struct {
	tts tts.Provider

	mu       sync.Mutex
	cfg      Config
	sessions map[string]*Session
}

// NewManager creates a Manager that synthesises speech through provider.
func NewManager(provider tts.Provider, cfg Config) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Manager{tts: provider, cfg: cfg, sessions: make(map[string]*Session)}
}

// SetTuning replaces the tuning used for sessions created from now on.
func (m *Manager) SetTuning(t Tuning) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Tuning = t
}

// Tuning returns the current tuning.
func (m *Manager) Tuning() Tuning {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Tuning
}

// Create parses req.Script, registers a session and starts playback from
// the first segment. It blocks until that segment is ready. If the session is
// deleted meanwhile, Create still returns it with an idle controller.
//
// An empty playlist yields [playback.ErrNothingToPlay]. When the first
// segment cannot be produced the session is removed and the error returned.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	for _, v := range []types.VoiceID{req.PrimaryVoice, req.SecondaryVoice} {
		if v != "" && !v.IsKnown() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, v)
		}
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	cfg := m.cfg
	m.mu.Unlock()

	t := cfg.Tuning
	res := script.Parse(req.Script, script.Options{
		Labels:         cfg.Labels,
		PrimaryVoice:   cmp.Or(req.PrimaryVoice, t.PrimaryVoice),
		SecondaryVoice: cmp.Or(req.SecondaryVoice, t.SecondaryVoice),
		ChunkTarget:    t.ChunkTarget,
	})
	if res.Err != nil {
		slog.Warn("session: script parse recovered", "tier", res.Tier, "err", res.Err)
	}
	if len(res.Items) == 0 {
		return nil, playback.ErrNothingToPlay
	}

	id := uuid.NewString()
	var segmentURL func(int) string
	if cfg.SegmentURL != nil {
		segmentURL = func(i int) string { return cfg.SegmentURL(id, i) }
	}
	fetcher := segment.New(m.tts, segment.Config{
		Window:       t.PrefetchWindow,
		Retry:        t.Retry,
		SampleRate:   t.SampleRate,
		ProviderName: cfg.ProviderName,
		Metrics:      cfg.Metrics,
	})
	hub := NewHub(segmentURL)
	ctl := playback.New(fetcher, hub, playback.Config{
		MaxConsecutiveSkips: t.MaxConsecutiveSkips,
		Metrics:             cfg.Metrics,
	})
	ctl.OnStateChange(hub.State)

	s := &Session{
		ID:         id,
		Title:      req.Title,
		Tier:       res.Tier,
		CreatedAt:  time.Now().UTC(),
		Controller: ctl,
		Events:     hub,
		playlist:   res.Items,
		fetcher:    fetcher,
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = s
	m.mu.Unlock()
	cfg.Metrics.ActiveSessions.Add(ctx, 1)

	slog.Info("session created", "session", id, "title", req.Title, "tier", res.Tier, "segments", len(res.Items))

	if err := ctl.Start(ctx, res.Items, req.Title); err != nil {
		_ = m.Delete(context.WithoutCancel(ctx), id)
		return nil, err
	}
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Delete stops and removes a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.close()
	m.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("session stopped", "session", id)
	return nil
}

// List returns every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Delete(ctx, id)
	}
}
