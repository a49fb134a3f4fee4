package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrWong99/lectern/internal/content"
	"github.com/MrWong99/lectern/internal/health"
	"github.com/MrWong99/lectern/internal/playback"
	"github.com/MrWong99/lectern/internal/resilience"
	"github.com/MrWong99/lectern/internal/respcache"
	"github.com/MrWong99/lectern/internal/session"
	imagemock "github.com/MrWong99/lectern/pkg/provider/image/mock"
	"github.com/MrWong99/lectern/pkg/provider/llm"
	llmmock "github.com/MrWong99/lectern/pkg/provider/llm/mock"
	ttsmock "github.com/MrWong99/lectern/pkg/provider/tts/mock"
	"github.com/MrWong99/lectern/pkg/storage/memory"
	"github.com/MrWong99/lectern/pkg/types"
)

const modelReply = "---HEADER---\n" +
	`{"title":"Page Tables","techStack":"mm/","overview":"Virtual to physical."}` +
	"\n---TRANSCRIPT---\n" +
	"Teacher: Every process has its own page table rooted in CR3.\n\n" +
	"Student: And the TLB caches the translations?\n\n" +
	"Teacher: Exactly, and a context switch may flush it.\n---END---"

const transcript = "Teacher: First line of the lesson.\n\nStudent: A question.\n\nTeacher: The answer."

type offline struct{ off atomic.Bool }

func (o *offline) Online() bool { return !o.off.Load() }

type fixture struct {
	srv      *httptest.Server
	net      *offline
	sessions *session.Manager

	// reply is the text model's answer; ttsDown fails every synthesis.
	reply   atomic.Pointer[string]
	ttsDown atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	profile, err := content.LookupProfile("linux")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{net: &offline{}}
	f.setReply(modelReply)
	text := &llmmock.Provider{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: *f.reply.Load()}, nil
		},
	}
	speech := &ttsmock.Provider{
		SynthesizeFunc: func(context.Context, string, types.VoiceID) ([]byte, error) {
			if f.ttsDown.Load() {
				return nil, errors.New("tts down")
			}
			return make([]byte, 4800), nil
		},
	}
	images := &imagemock.Provider{Image: types.Image{MIMEType: "image/png", Data: []byte("png")}}
	cache := respcache.New(memory.New(), respcache.Config{Namespace: profile.Namespace})
	svc := content.New(text, images, cache, content.Config{Profile: profile, Online: f.net})

	f.sessions = session.NewManager(speech, session.Config{
		Labels: profile.Labels(),
		Tuning: session.Tuning{
			PrefetchWindow: 1,
			Retry:          resilience.RetryPolicy{Attempts: 1, Delay: time.Millisecond, AttemptTimeout: time.Second},
		},
		SegmentURL: SegmentPath,
	})
	t.Cleanup(func() { f.sessions.Close(context.Background()) })

	s := New(Config{
		Content:  svc,
		Sessions: f.sessions,
		Health:   health.New(),
		Gatherer: prometheus.NewRegistry(),
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) setReply(s string) { f.reply.Store(&s) }

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeAs[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestSearchAndCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/v1/cache?query=page+tables&language=en", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cache before search = %d, want 404", resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodPost, "/v1/search", searchRequest{Query: "Page Tables", Language: types.LangEnglish})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search = %d: %s", resp.StatusCode, body)
	}
	res := decodeAs[types.SearchResult](t, body)
	if res.Topic.Title != "Page Tables" || !strings.HasPrefix(res.Passage.Context, "Teacher:") {
		t.Errorf("result = %+v", res)
	}

	resp, _ = f.do(t, http.MethodGet, "/v1/cache?query=page+tables&language=en", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cache after search = %d, want 200", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/history?language=en", nil)
	hist := decodeAs[[]types.HistoryItem](t, body)
	if resp.StatusCode != http.StatusOK || len(hist) != 1 || hist[0].Query != "page tables" {
		t.Errorf("history = %d %+v", resp.StatusCode, hist)
	}
}

func TestSearch_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"empty query", searchRequest{Query: " "}, http.StatusBadRequest},
		{"bad language", searchRequest{Query: "x", Language: "fr"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"query": "x", "bogus": 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, body := f.do(t, http.MethodPost, "/v1/search", tt.body)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.status)
		}
		if e := decodeAs[errorBody](t, body); e.Error == "" {
			t.Errorf("%s: empty error body", tt.name)
		}
	}

	f.net.off.Store(true)
	resp, _ := f.do(t, http.MethodPost, "/v1/search", searchRequest{Query: "uncached"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("offline status = %d, want 503", resp.StatusCode)
	}

	f.net.off.Store(false)
	f.setReply("no structure here")
	resp, _ = f.do(t, http.MethodPost, "/v1/search", searchRequest{Query: "garbled"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("malformed status = %d, want 502", resp.StatusCode)
	}
}

func TestLectureImagePrepare(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/lecture", lectureRequest{Title: "Page Tables", LengthMinutes: 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lecture = %d: %s", resp.StatusCode, body)
	}
	if lr := decodeAs[lectureResponse](t, body); lr.Script != modelReply {
		t.Errorf("lecture script = %q", lr.Script)
	}

	resp, body = f.do(t, http.MethodPost, "/v1/image", imageRequest{Topic: "Page Tables"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("image = %d: %s", resp.StatusCode, body)
	}
	if ir := decodeAs[imageResponse](t, body); ir.DataURL != "data:image/png;base64,cG5n" {
		t.Errorf("data url = %q", ir.DataURL)
	}

	resp, body = f.do(t, http.MethodPost, "/v1/prepare", searchRequest{Query: "Page Tables"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prepare = %d: %s", resp.StatusCode, body)
	}
	pr := decodeAs[prepareResponse](t, body)
	if pr.Image == nil || pr.Script == "" || pr.Result.Topic.Title != "Page Tables" {
		t.Errorf("prepare = %+v", pr)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/sessions", createSessionRequest{Script: transcript, Title: "Lesson", Voice: types.VoiceKore})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d: %s", resp.StatusCode, body)
	}
	created := decodeAs[createSessionResponse](t, body)
	if created.ID == "" || created.Tier != "structured" || len(created.Items) != 3 {
		t.Fatalf("created = %+v", created)
	}
	if created.Items[0].Voice != types.VoiceKore {
		t.Errorf("voice = %q, want Kore", created.Items[0].Voice)
	}
	if created.Snapshot.State != playback.StatePlaying {
		t.Errorf("state = %s, want playing", created.Snapshot.State)
	}
	base := "/v1/sessions/" + created.ID

	resp, body = f.do(t, http.MethodGet, base+"/segments/0", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "audio/wav" {
		t.Fatalf("segment = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("RIFF")) || resp.Header.Get("X-Segment-Duration-Ms") != "100" {
		t.Errorf("segment body/headers wrong: %d bytes, duration %q", len(body), resp.Header.Get("X-Segment-Duration-Ms"))
	}
	if resp, _ := f.do(t, http.MethodGet, base+"/segments/9", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("out of range segment = %d, want 404", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, base+"/segments/x", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad segment index = %d, want 400", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodPost, base+"/pause", nil)
	if snap := decodeAs[playback.Snapshot](t, body); resp.StatusCode != http.StatusOK || snap.State != playback.StatePaused {
		t.Errorf("pause = %d %+v", resp.StatusCode, snap)
	}
	resp, body = f.do(t, http.MethodPost, base+"/seek", seekRequest{OffsetMS: 5000})
	if sr := decodeAs[seekResponse](t, body); resp.StatusCode != http.StatusOK || sr.OffsetMS != 100 {
		t.Errorf("seek = %d %+v", resp.StatusCode, sr)
	}
	if resp, _ := f.do(t, http.MethodPost, base+"/resume", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("resume = %d", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodPost, base+"/ended", nil)
	if snap := decodeAs[playback.Snapshot](t, body); resp.StatusCode != http.StatusOK || snap.Index != 1 || snap.State != playback.StatePlaying {
		t.Errorf("ended = %d %+v", resp.StatusCode, snap)
	}

	resp, body = f.do(t, http.MethodPost, base+"/jump", jumpRequest{Index: 2})
	if snap := decodeAs[playback.Snapshot](t, body); resp.StatusCode != http.StatusOK || snap.Index != 2 {
		t.Errorf("jump = %d %+v", resp.StatusCode, snap)
	}
	if resp, _ := f.do(t, http.MethodPost, base+"/jump", jumpRequest{Index: 7}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("jump out of range = %d, want 404", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodPost, base+"/ended", nil)
	if snap := decodeAs[playback.Snapshot](t, body); !snap.Finished || snap.State != playback.StateIdle {
		t.Errorf("final ended = %d %+v", resp.StatusCode, snap)
	}
	if resp, _ := f.do(t, http.MethodPost, base+"/pause", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("pause while idle = %d, want 409", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/sessions", nil)
	if list := decodeAs[[]session.Info](t, body); len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}

	if resp, _ := f.do(t, http.MethodDelete, base, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, base, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name   string
		req    createSessionRequest
		status int
	}{
		{"nothing given", createSessionRequest{}, http.StatusBadRequest},
		{"unknown voice", createSessionRequest{Script: transcript, Voice: "Robot"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if resp, body := f.do(t, http.MethodPost, "/v1/sessions", tt.req); resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, resp.StatusCode, tt.status, body)
		}
	}

	f.ttsDown.Store(true)
	if resp, _ := f.do(t, http.MethodPost, "/v1/sessions", createSessionRequest{Script: transcript}); resp.StatusCode < 500 {
		t.Errorf("synthesis failure status = %d, want 5xx", resp.StatusCode)
	}
}

func TestCreateSession_FromQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/sessions", createSessionRequest{Query: "page tables"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d: %s", resp.StatusCode, body)
	}
	created := decodeAs[createSessionResponse](t, body)
	if created.Snapshot.Title != "Page Tables" {
		t.Errorf("title = %q, want topic title", created.Snapshot.Title)
	}
	if len(created.Items) == 0 {
		t.Error("empty playlist")
	}
}

func TestEventsWebsocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, body := f.do(t, http.MethodPost, "/v1/sessions", createSessionRequest{Script: transcript})
	created := decodeAs[createSessionResponse](t, body)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + created.Events
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// A late subscriber first learns which segment is playing, then the state.
	var first, second session.Event
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Type != session.EventPlay || first.Index != 0 || first.SegmentURL != SegmentPath(created.ID, 0) {
		t.Errorf("first event = %+v", first)
	}
	if err := wsjson.Read(ctx, conn, &second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if second.Type != session.EventState || second.Snapshot == nil || second.Snapshot.State != playback.StatePlaying {
		t.Errorf("second event = %+v", second)
	}

	f.do(t, http.MethodPost, "/v1/sessions/"+created.ID+"/ended", nil)

	var sawPlay bool
	for !sawPlay {
		var e session.Event
		if err := wsjson.Read(ctx, conn, &e); err != nil {
			t.Fatalf("read: %v", err)
		}
		if e.Type == session.EventPlay {
			sawPlay = true
			if e.Index != 1 || e.SegmentURL != SegmentPath(created.ID, 1) {
				t.Errorf("play event = %+v", e)
			}
		}
	}

	f.do(t, http.MethodDelete, "/v1/sessions/"+created.ID, nil)
	for {
		var e session.Event
		err := wsjson.Read(ctx, conn, &e)
		if err == nil {
			continue
		}
		if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			t.Errorf("close = %v, want normal closure", err)
		}
		break
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if resp, _ := f.do(t, http.MethodGet, path, nil); resp.StatusCode != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, resp.StatusCode)
		}
	}
	if resp, _ := f.do(t, http.MethodGet, "/v1/nope", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown route = %d, want 404", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{playback.ErrNothingToPlay, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", content.ErrOffline), http.StatusServiceUnavailable},
		{session.ErrNotFound, http.StatusNotFound},
		{playback.ErrInvalidState, http.StatusConflict},
		{session.ErrTooManySessions, http.StatusTooManyRequests},
		{content.ErrNoImageProvider, http.StatusNotImplemented},
		{resilience.ErrAllFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
