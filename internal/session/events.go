package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lectern/internal/playback"
	"github.com/MrWong99/lectern/pkg/types"
)

// subscriberBuffer is the per-subscriber event queue length. Events for a
// subscriber whose queue is full are dropped.
const subscriberBuffer = 32

// EventType names what an [Event] reports.
type EventType string

const (
	EventState  EventType = "state"
	EventPlay   EventType = "play"
	EventPause  EventType = "pause"
	EventResume EventType = "resume"
	EventSeek   EventType = "seek"
	EventStop   EventType = "stop"
)

// Event is one message on a session's event stream.
type Event struct {
	Type EventType `json:"type"`

	// Snapshot is set for [EventState].
	Snapshot *playback.Snapshot `json:"snapshot,omitempty"`

	// Index, Item, SegmentURL and Duration are set for [EventPlay].
	Index      int                 `json:"index"`
	Item       *types.PlaylistItem `json:"item,omitempty"`
	SegmentURL string              `json:"segment_url,omitempty"`
	Duration   time.Duration       `json:"duration,omitempty"`

	// Offset is set for [EventSeek].
	Offset time.Duration `json:"offset,omitempty"`
}

// Hub fans playback commands and state changes out to event subscribers. It
// implements [playback.Sink]; every method is non-blocking.
type Hub struct {
	segmentURL func(index int) string

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	last   *Event
	play   *Event
	closed bool
}

// NewHub creates a Hub. segmentURL builds the URL clients fetch segment audio
// from and may be nil.
func NewHub(segmentURL func(index int) string) *Hub {
	return &Hub{segmentURL: segmentURL, subs: make(map[chan Event]struct{})}
}

var _ playback.Sink = (*Hub)(nil)

// Subscribe returns a channel of events and a function that cancels the
// subscription. A new subscriber first receives the play event of the
// current segment, if one is playing, and then the latest state. The channel
// is closed when the hub closes or the subscription is cancelled.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.play != nil {
		ch <- *h.play
	}
	if h.last != nil {
		ch <- *h.last
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// State publishes a controller snapshot. Register it with
// [playback.Controller.OnStateChange].
func (h *Hub) State(snap playback.Snapshot) {
	h.publish(Event{Type: EventState, Index: snap.Index, Snapshot: &snap})
}

func (h *Hub) Play(_ context.Context, seg types.SegmentAudio, item types.PlaylistItem) {
	e := Event{Type: EventPlay, Index: seg.Index, Item: &item, Duration: seg.Duration}
	if h.segmentURL != nil {
		e.SegmentURL = h.segmentURL(seg.Index)
	}
	h.publish(e)
}

func (h *Hub) Pause()  { h.publish(Event{Type: EventPause}) }
func (h *Hub) Resume() { h.publish(Event{Type: EventResume}) }
func (h *Hub) Stop()   { h.publish(Event{Type: EventStop}) }

func (h *Hub) Seek(offset time.Duration) {
	h.publish(Event{Type: EventSeek, Offset: offset})
}

// Close ends every subscription. Later events are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

func (h *Hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	switch e.Type {
	case EventState:
		h.last = &e
	case EventPlay:
		h.play = &e
	case EventStop:
		h.play = nil
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("session: dropping event for slow subscriber", "type", e.Type)
		}
	}
}
