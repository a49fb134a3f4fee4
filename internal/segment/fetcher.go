// Package segment turns playlist items into playable WAV audio.
//
// A [Fetcher] is the single path from text to sound. It caches finished
// segments by playlist index, deduplicates concurrent requests for the same
// index so a segment is synthesised at most once at a time, and retries failed
// syntheses under a [resilience.RetryPolicy]. A generation counter separates
// playback sessions: [Fetcher.Reset] bumps it, and results produced for an
// older generation are dropped instead of being cached.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/lectern/internal/chunk"
	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/pkg/audio"
	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/types"
)

// DefaultWindow is the number of segments prefetched ahead of the playing one.
const DefaultWindow = 2

// ErrUnpronounceable is returned for items whose text has no letter, digit or
// ideograph. No synthesis call is made for them.
var ErrUnpronounceable = errors.New("segment: text has no pronounceable characters")

// Config tunes a [Fetcher]. The zero value is usable.
type Config struct {
	// Window is the prefetch look-ahead. Default: [DefaultWindow].
	Window int

	// Retry governs synthesis attempts. Zero fields take the values of
	// [resilience.DefaultRetryPolicy].
	Retry resilience.RetryPolicy

	// SampleRate is the rate of the produced WAV. Zero keeps the provider's
	// native rate.
	SampleRate int

	// ProviderName labels provider metrics. Default: "tts".
	ProviderName string

	// Metrics receives fetch and synthesis measurements. Default:
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Stats counts fetcher lookups since construction.
type Stats struct {
	Hits     int64
	Misses   int64
	Joins    int64
	Failures int64
}

// Fetcher produces and caches segment audio. All methods are safe for
// concurrent use.
type Fetcher struct {
	provider tts.Provider
	cfg      Config

	mu    sync.Mutex
	gen   uint64
	cache map[int]types.SegmentAudio

	group singleflight.Group
	wg    sync.WaitGroup

	hits, misses, joins, failures atomic.Int64
}

// New creates a Fetcher backed by provider.
func New(provider tts.Provider, cfg Config) *Fetcher {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "tts"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Fetcher{
		provider: provider,
		cfg:      cfg,
		cache:    make(map[int]types.SegmentAudio),
	}
}

// Window returns the configured prefetch look-ahead.
func (f *Fetcher) Window() int { return f.cfg.Window }

// Fetch returns the audio for the item at index, synthesising it if needed.
//
// A cached segment is returned immediately. When a synthesis for the same
// index is already running, the call waits for that one instead of starting
// another. Synthesis runs on a context detached from ctx, so a caller that
// gives up does not cancel work another caller may be waiting on; ctx only
// bounds how long this call waits.
func (f *Fetcher) Fetch(ctx context.Context, index int, item types.PlaylistItem) (types.SegmentAudio, error) {
	if !chunk.Pronounceable(item.Text) {
		f.failures.Add(1)
		f.cfg.Metrics.RecordSegmentFetch(ctx, observe.FetchError)
		return types.SegmentAudio{}, fmt.Errorf("segment: fetch %d: %w", index, ErrUnpronounceable)
	}

	f.mu.Lock()
	if seg, ok := f.cache[index]; ok {
		f.mu.Unlock()
		f.hits.Add(1)
		f.cfg.Metrics.RecordSegmentFetch(ctx, observe.FetchHit)
		return seg, nil
	}
	gen := f.gen
	f.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	leader := false
	ch := f.group.DoChan(fmt.Sprintf("%d/%d", gen, index), func() (any, error) {
		leader = true
		return f.synthesize(detached, gen, index, item)
	})

	select {
	case res := <-ch:
		outcome := observe.FetchMiss
		if !leader {
			outcome = observe.FetchJoin
			f.joins.Add(1)
		} else {
			f.misses.Add(1)
		}
		if res.Err != nil {
			f.cfg.Metrics.RecordSegmentFetch(ctx, observe.FetchError)
			return types.SegmentAudio{}, res.Err
		}
		f.cfg.Metrics.RecordSegmentFetch(ctx, outcome)
		return res.Val.(types.SegmentAudio), nil
	case <-ctx.Done():
		return types.SegmentAudio{}, fmt.Errorf("segment: fetch %d: %w", index, ctx.Err())
	}
}

// synthesize runs the retried provider call and stores the result when the
// generation it was started for is still current.
func (f *Fetcher) synthesize(ctx context.Context, gen uint64, index int, item types.PlaylistItem) (seg types.SegmentAudio, err error) {
	ctx, span := observe.StartSpan(ctx, "segment.synthesize",
		observe.KeySegment.Int(index),
		observe.KeyVoice.String(string(item.Voice)),
		observe.KeyProvider.String(f.cfg.ProviderName),
	)
	start := time.Now()
	defer func() {
		f.cfg.Metrics.SegmentFetchDuration.Record(ctx, time.Since(start).Seconds())
		observe.EndSpan(span, err)
	}()

	pcm, err := resilience.RetryValue(ctx, f.cfg.Retry, func(ctx context.Context) ([]byte, error) {
		attemptStart := time.Now()
		pcm, err := f.provider.Synthesize(ctx, item.Text, item.Voice)
		f.cfg.Metrics.TTSDuration.Record(ctx, time.Since(attemptStart).Seconds(),
			metric.WithAttributes(observe.Attr("provider", f.cfg.ProviderName)))
		if err == nil && len(pcm) == 0 {
			err = tts.ErrNoAudio
		}
		status := "ok"
		if err != nil {
			status = "error"
			f.cfg.Metrics.RecordProviderError(ctx, f.cfg.ProviderName, "tts")
		}
		f.cfg.Metrics.RecordProviderRequest(ctx, f.cfg.ProviderName, "tts", status)
		return pcm, err
	})
	if err != nil {
		f.failures.Add(1)
		return types.SegmentAudio{}, fmt.Errorf("segment: fetch %d: %w", index, err)
	}

	srcRate := f.provider.SampleRate()
	dstRate := f.cfg.SampleRate
	if dstRate <= 0 {
		dstRate = srcRate
	}
	pcm = audio.Normalize(pcm, srcRate, dstRate)
	wav, err := audio.PCMToWAV(pcm, dstRate)
	if err != nil {
		f.failures.Add(1)
		return types.SegmentAudio{}, fmt.Errorf("segment: fetch %d: %w", index, err)
	}

	seg = types.SegmentAudio{
		Index:      index,
		WAV:        wav,
		SampleRate: dstRate,
		Duration:   audio.PCMDuration(len(pcm), dstRate),
	}

	f.mu.Lock()
	if f.gen == gen {
		f.cache[index] = seg
	} else {
		slog.Debug("segment: dropping stale result", "index", index, "generation", gen)
	}
	f.mu.Unlock()
	return seg, nil
}

// Prefetch starts background fetches for up to Window items beginning at
// from. Indices that are cached or out of range are skipped; ones already in
// flight are joined rather than duplicated. Errors are logged and otherwise
// ignored, since the playback path fetches again on demand.
func (f *Fetcher) Prefetch(ctx context.Context, from int, items types.Playlist) {
	if from < 0 {
		from = 0
	}
	ctx = context.WithoutCancel(ctx)
	for i := from; i < from+f.cfg.Window && i < len(items); i++ {
		if f.Cached(i) || !chunk.Pronounceable(items[i].Text) {
			continue
		}
		f.wg.Add(1)
		go func(i int, item types.PlaylistItem) {
			defer f.wg.Done()
			if _, err := f.Fetch(ctx, i, item); err != nil {
				slog.Debug("segment: prefetch failed", "index", i, "err", err)
			}
		}(i, items[i])
	}
}

// Wait blocks until every prefetch started so far has finished.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Cached reports whether the segment at index is ready.
func (f *Fetcher) Cached(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cache[index]
	return ok
}

// Reset discards every cached segment and starts a new generation. Syntheses
// still running for the old generation complete but are not cached.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.cache = make(map[int]types.SegmentAudio)
}

// Stats returns a snapshot of the lookup counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Hits:     f.hits.Load(),
		Misses:   f.misses.Load(),
		Joins:    f.joins.Load(),
		Failures: f.failures.Load(),
	}
}
