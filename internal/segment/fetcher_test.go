package segment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/pkg/audio"
	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/provider/tts/mock"
	"github.com/MrWong99/lectern/pkg/types"
)

var fastRetry = resilience.RetryPolicy{Attempts: 3, Delay: time.Millisecond, AttemptTimeout: time.Second}

func item(text string) types.PlaylistItem {
	return types.PlaylistItem{Text: text, Role: types.RoleTeacher, Voice: types.VoiceFenrir}
}

// waitFor polls cond until it is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFetch_CachesResult(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{PCM: make([]byte, 4800)}
	f := New(p, Config{Retry: fastRetry})

	seg, err := f.Fetch(context.Background(), 0, item("Hello there."))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(seg.WAV) != audio.WAVHeaderSize+4800 {
		t.Errorf("wav size = %d, want %d", len(seg.WAV), audio.WAVHeaderSize+4800)
	}
	if seg.Duration != 100*time.Millisecond {
		t.Errorf("duration = %v, want 100ms", seg.Duration)
	}
	if !f.Cached(0) {
		t.Error("segment 0 not cached after fetch")
	}

	if _, err := f.Fetch(context.Background(), 0, item("Hello there.")); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := p.CallCount(); got != 1 {
		t.Errorf("synthesis calls = %d, want 1", got)
	}
	if s := f.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", s)
	}

	calls := p.Calls()
	if calls[0].Voice != types.VoiceFenrir {
		t.Errorf("voice = %q, want %q", calls[0].Voice, types.VoiceFenrir)
	}
}

func TestFetch_ConcurrentCallsShareOneSynthesis(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &mock.Provider{
		SynthesizeFunc: func(ctx context.Context, _ string, _ types.VoiceID) ([]byte, error) {
			<-release
			return make([]byte, 480), nil
		},
	}
	f := New(p, Config{Retry: fastRetry})

	const callers = 5
	var wg sync.WaitGroup
	var failed atomic.Int32
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), 3, item("Same line.")); err != nil {
				failed.Add(1)
			}
		}()
	}

	waitFor(t, func() bool { return p.CallCount() == 1 })
	close(release)
	wg.Wait()

	if failed.Load() != 0 {
		t.Errorf("%d callers failed", failed.Load())
	}
	if got := p.CallCount(); got != 1 {
		t.Errorf("synthesis calls = %d, want 1", got)
	}
	s := f.Stats()
	if s.Misses != 1 {
		t.Errorf("misses = %d, want 1", s.Misses)
	}
	if s.Joins+s.Hits != callers-1 {
		t.Errorf("joins+hits = %d, want %d", s.Joins+s.Hits, callers-1)
	}
}

func TestFetch_EmptyAudioIsRetried(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	p := &mock.Provider{
		SynthesizeFunc: func(context.Context, string, types.VoiceID) ([]byte, error) {
			if n.Add(1) == 1 {
				return nil, nil
			}
			return make([]byte, 960), nil
		},
	}
	f := New(p, Config{Retry: fastRetry})

	if _, err := f.Fetch(context.Background(), 0, item("Retry me.")); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := p.CallCount(); got != 2 {
		t.Errorf("synthesis calls = %d, want 2", got)
	}
}

func TestFetch_FailureIsNotCached(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Err: errors.New("quota")}
	f := New(p, Config{Retry: resilience.RetryPolicy{Attempts: 2, Delay: time.Millisecond}})

	_, err := f.Fetch(context.Background(), 1, item("Will fail."))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := p.CallCount(); got != 2 {
		t.Errorf("synthesis calls = %d, want 2", got)
	}
	if f.Cached(1) {
		t.Error("failed segment must not be cached")
	}
	if s := f.Stats(); s.Failures != 1 {
		t.Errorf("failures = %d, want 1", s.Failures)
	}

	p.Err = nil
	p.PCM = make([]byte, 480)
	if _, err := f.Fetch(context.Background(), 1, item("Will fail.")); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if !f.Cached(1) {
		t.Error("segment not cached after successful retry")
	}
}

func TestFetch_AllAttemptsEmpty(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	f := New(p, Config{Retry: fastRetry})

	_, err := f.Fetch(context.Background(), 0, item("Silence."))
	if !errors.Is(err, tts.ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
	if got := p.CallCount(); got != 3 {
		t.Errorf("synthesis calls = %d, want 3", got)
	}
}

func TestFetch_Unpronounceable(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{PCM: make([]byte, 480)}
	f := New(p, Config{Retry: fastRetry})

	_, err := f.Fetch(context.Background(), 0, item("!!! ..."))
	if !errors.Is(err, ErrUnpronounceable) {
		t.Errorf("err = %v, want ErrUnpronounceable", err)
	}
	if p.CallCount() != 0 {
		t.Error("unpronounceable text reached the provider")
	}
}

func TestFetch_ResetDropsStaleResult(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &mock.Provider{
		SynthesizeFunc: func(context.Context, string, types.VoiceID) ([]byte, error) {
			<-release
			return make([]byte, 480), nil
		},
	}
	f := New(p, Config{Retry: fastRetry})

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(context.Background(), 0, item("Old session."))
		done <- err
	}()

	waitFor(t, func() bool { return p.CallCount() == 1 })
	f.Reset()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if f.Cached(0) {
		t.Error("result from a previous generation was cached")
	}
}

func TestFetch_CallerCancelDoesNotAbortSynthesis(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &mock.Provider{
		SynthesizeFunc: func(ctx context.Context, _ string, _ types.VoiceID) ([]byte, error) {
			select {
			case <-release:
				return make([]byte, 480), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	f := New(p, Config{Retry: fastRetry})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, 0, item("Keep going."))
		done <- err
	}()

	waitFor(t, func() bool { return p.CallCount() == 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(release)
	waitFor(t, func() bool { return f.Cached(0) })
	if got := p.CallCount(); got != 1 {
		t.Errorf("synthesis calls = %d, want 1", got)
	}
}

func TestFetch_ResamplesToConfiguredRate(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{PCM: make([]byte, 3200), Rate: 16000}
	f := New(p, Config{Retry: fastRetry, SampleRate: 24000})

	seg, err := f.Fetch(context.Background(), 0, item("Resample."))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if seg.SampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", seg.SampleRate)
	}
	if seg.Duration != 100*time.Millisecond {
		t.Errorf("duration = %v, want 100ms", seg.Duration)
	}
}

func TestPrefetch_Window(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{PCM: make([]byte, 480)}
	f := New(p, Config{Retry: fastRetry})
	items := types.Playlist{item("Zero."), item("One."), item("Two."), item("Three."), item("...")}

	f.Prefetch(context.Background(), 1, items)
	f.Wait()

	for i, want := range []bool{false, true, true, false, false} {
		if got := f.Cached(i); got != want {
			t.Errorf("Cached(%d) = %v, want %v", i, got, want)
		}
	}

	// Index 3 is fetched and the unpronounceable tail is skipped.
	f.Prefetch(context.Background(), 3, items)
	f.Wait()
	if got := p.CallCount(); got != 3 {
		t.Errorf("synthesis calls = %d, want 3", got)
	}
	if f.Cached(4) {
		t.Error("unpronounceable segment cached")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	f := New(&mock.Provider{}, Config{})
	if f.Window() != DefaultWindow {
		t.Errorf("Window = %d, want %d", f.Window(), DefaultWindow)
	}
}
