// Package playback drives one listening session through its playlist.
//
// A [Controller] is a small state machine (Idle, Loading, Playing, Paused,
// Buffering) that advances strictly by index. It asks a [Fetcher] for each
// segment's audio, hands ready audio to a [Sink] and keeps the look-ahead
// window warm through prefetching. Every transition that awaits audio carries
// a generation number; when a newer transition (a restart, a jump, a close)
// supersedes it, the late completion is ignored.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/pkg/types"
)

// DefaultMaxConsecutiveSkips bounds how many failed segments in a row are
// skipped before the session stops.
const DefaultMaxConsecutiveSkips = 2

var (
	// ErrNothingToPlay is returned by Start for an empty playlist and by Jump
	// when no playlist is loaded.
	ErrNothingToPlay = errors.New("playback: nothing to play")

	// ErrInvalidState is returned when a command is not valid in the current
	// state, e.g. Pause while Idle.
	ErrInvalidState = errors.New("playback: invalid state for command")

	// ErrIndexOutOfRange is returned by Jump for an index outside the playlist.
	ErrIndexOutOfRange = errors.New("playback: index out of range")
)

// State is the controller's playback state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateBuffering
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fetcher supplies segment audio. [segment.Fetcher] is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context, index int, item types.PlaylistItem) (types.SegmentAudio, error)
	Prefetch(ctx context.Context, from int, items types.Playlist)
	Cached(index int) bool
	Reset()
}

// Sink receives playback commands for the audio output. Methods are called
// with the controller's lock held, in transition order; they must not block
// and must not call back into the [Controller].
type Sink interface {
	Play(ctx context.Context, seg types.SegmentAudio, item types.PlaylistItem)
	Pause()
	Resume()
	Seek(offset time.Duration)
	Stop()
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	State     State         `json:"state"`
	Index     int           `json:"index"`
	Title     string        `json:"title"`
	Length    int           `json:"length"`
	Position  time.Duration `json:"position"`
	Duration  time.Duration `json:"duration"`
	Finished  bool          `json:"finished"`
	LastError string        `json:"last_error,omitempty"`
}

// Config tunes a [Controller].
type Config struct {
	// MaxConsecutiveSkips is the number of failed segments in a row that are
	// skipped over; the next failure stops the session. Default:
	// [DefaultMaxConsecutiveSkips].
	MaxConsecutiveSkips int

	// Metrics records skipped segments. Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Controller runs one playback session. It is safe for concurrent use.
type Controller struct {
	fetcher Fetcher
	sink    Sink
	cfg     Config

	mu        sync.Mutex
	gen       uint64
	state     State
	playlist  types.Playlist
	title     string
	index     int
	position  time.Duration
	duration  time.Duration
	finished  bool
	lastErr   error
	listeners []func(Snapshot)
}

// New creates an idle Controller.
func New(fetcher Fetcher, sink Sink, cfg Config) *Controller {
	if cfg.MaxConsecutiveSkips <= 0 {
		cfg.MaxConsecutiveSkips = DefaultMaxConsecutiveSkips
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Controller{fetcher: fetcher, sink: sink, cfg: cfg}
}

// OnStateChange registers fn to be called after every state transition. fn
// runs with the controller's lock held and must not call back into it.
func (c *Controller) OnStateChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start replaces the playlist and begins playback from the first segment. It
// blocks until segment 0 is ready. On failure the controller returns to Idle
// and the error is returned; if another transition superseded this one
// meanwhile, Start returns nil without touching state.
func (c *Controller) Start(ctx context.Context, playlist types.Playlist, title string) error {
	if len(playlist) == 0 {
		return ErrNothingToPlay
	}

	c.mu.Lock()
	c.sink.Stop()
	c.fetcher.Reset()
	c.gen++
	gen := c.gen
	c.playlist = playlist
	c.title = title
	c.index = 0
	c.position = 0
	c.duration = 0
	c.finished = false
	c.lastErr = nil
	c.setState(StateLoading)
	c.mu.Unlock()

	seg, err := c.fetcher.Fetch(ctx, 0, playlist[0])

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	if err != nil {
		c.lastErr = err
		c.setState(StateIdle)
		return fmt.Errorf("playback: start: %w", err)
	}
	c.play(ctx, 0, seg)
	return nil
}

// SegmentEnded advances to the next segment once the current one finished
// playing. A ready segment starts immediately; otherwise the controller
// enters Buffering and waits for it. After the last segment the controller
// stops in Idle with Finished set.
//
// A segment that cannot be produced is skipped, up to MaxConsecutiveSkips in
// a row. The session stops with the error when that bound is exceeded or when
// the last segment fails.
func (c *Controller) SegmentEnded(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePlaying && c.state != StatePaused {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: segment ended while %s", ErrInvalidState, st)
	}
	c.gen++
	gen, next, playlist := c.gen, c.index+1, c.playlist
	c.mu.Unlock()

	return c.advance(ctx, gen, next, playlist)
}

// Jump plays the segment at index, as when the listener selects a transcript
// line. It supersedes any transition still waiting for audio.
func (c *Controller) Jump(ctx context.Context, index int) error {
	c.mu.Lock()
	if len(c.playlist) == 0 {
		c.mu.Unlock()
		return ErrNothingToPlay
	}
	if index < 0 || index >= len(c.playlist) {
		n := len(c.playlist)
		c.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, n)
	}
	c.sink.Stop()
	c.gen++
	c.finished = false
	gen, playlist := c.gen, c.playlist
	c.mu.Unlock()

	return c.advance(ctx, gen, index, playlist)
}

// advance plays playlist[next], skipping failed segments under the skip
// policy. It must be called without the lock held. A transition is not
// abandoned when the caller's context is cancelled: the fetch is bounded by
// the retry policy, and a newer command or Close supersedes it through gen.
func (c *Controller) advance(ctx context.Context, gen uint64, next int, playlist types.Playlist) error {
	ctx = context.WithoutCancel(ctx)
	failures := 0
	for ; ; next++ {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return nil
		}
		if next >= len(playlist) {
			c.sink.Stop()
			c.finished = true
			c.position = 0
			c.setState(StateIdle)
			c.mu.Unlock()
			return nil
		}
		c.index = next
		c.position = 0
		if !c.fetcher.Cached(next) {
			c.setState(StateBuffering)
		}
		c.mu.Unlock()

		seg, err := c.fetcher.Fetch(ctx, next, playlist[next])

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return nil
		}
		if err == nil {
			c.play(ctx, next, seg)
			c.mu.Unlock()
			return nil
		}

		c.lastErr = err
		failures++
		if failures > c.cfg.MaxConsecutiveSkips || next == len(playlist)-1 {
			c.sink.Stop()
			c.setState(StateIdle)
			c.mu.Unlock()
			slog.Warn("playback: stopping after segment failure", "index", next, "failures", failures, "err", err)
			return fmt.Errorf("playback: segment %d: %w", next, err)
		}
		c.mu.Unlock()

		c.cfg.Metrics.SegmentSkips.Add(ctx, 1)
		slog.Warn("playback: skipping segment", "index", next, "err", err)
	}
}

// play switches to a ready segment. c.mu must be held.
func (c *Controller) play(ctx context.Context, index int, seg types.SegmentAudio) {
	c.index = index
	c.position = 0
	c.duration = seg.Duration
	c.sink.Play(ctx, seg, c.playlist[index])
	c.setState(StatePlaying)
	c.fetcher.Prefetch(ctx, index+1, c.playlist)
}

// Pause suspends the playing segment.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePaused:
		return nil
	case StatePlaying:
		c.sink.Pause()
		c.setState(StatePaused)
		return nil
	default:
		return fmt.Errorf("%w: pause while %s", ErrInvalidState, c.state)
	}
}

// Resume continues a paused segment.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused:
		c.sink.Resume()
		c.setState(StatePlaying)
		return nil
	default:
		return fmt.Errorf("%w: resume while %s", ErrInvalidState, c.state)
	}
}

// Seek moves within the current segment. The offset is clamped to
// [0, duration] and the applied value is returned.
func (c *Controller) Seek(offset time.Duration) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying && c.state != StatePaused {
		return 0, fmt.Errorf("%w: seek while %s", ErrInvalidState, c.state)
	}
	offset = max(0, min(offset, c.duration))
	c.position = offset
	c.sink.Seek(offset)
	return offset, nil
}

// Close stops playback and discards the playlist, cached audio and position.
// Any pending transition is superseded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.sink.Stop()
	c.fetcher.Reset()
	c.playlist = nil
	c.title = ""
	c.index = 0
	c.position = 0
	c.duration = 0
	c.finished = false
	c.lastErr = nil
	c.setState(StateIdle)
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Playlist returns the loaded playlist.
func (c *Controller) Playlist() types.Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		State:    c.state,
		Index:    c.index,
		Title:    c.title,
		Length:   len(c.playlist),
		Position: c.position,
		Duration: c.duration,
		Finished: c.finished,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// setState records a transition and notifies listeners. c.mu must be held.
func (c *Controller) setState(s State) {
	from := c.state
	c.state = s
	if from != s {
		slog.Debug("playback: state change", "from", from, "to", s, "index", c.index)
	}
	snap := c.snapshot()
	for _, fn := range c.listeners {
		fn(snap)
	}
}
