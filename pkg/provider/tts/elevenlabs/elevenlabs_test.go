package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lectern/pkg/provider/tts"
	"github.com/MrWong99/lectern/pkg/types"
)

// fakeStream accepts one stream-input session, records the text messages and
// replies with frames.
func fakeStream(t *testing.T, frames []audioResponse, got chan<- []textMessage, gotPath chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.CloseNow()
		gotPath <- r.URL.RequestURI()

		var msgs []textMessage
		for len(msgs) < 3 {
			_, data, err := c.Read(r.Context())
			if err != nil {
				t.Errorf("server read: %v", err)
				return
			}
			var m textMessage
			if err := json.Unmarshal(data, &m); err != nil {
				t.Errorf("server unmarshal: %v", err)
				return
			}
			msgs = append(msgs, m)
		}
		got <- msgs

		for _, f := range frames {
			b, _ := json.Marshal(f)
			if err := c.Write(r.Context(), websocket.MessageText, b); err != nil {
				return
			}
		}
		c.Close(websocket.StatusNormalClosure, "")
	}))
}

func TestSynthesize_CollectsUntilFinal(t *testing.T) {
	frames := []audioResponse{
		{Audio: base64.StdEncoding.EncodeToString([]byte{1, 2})},
		{Audio: base64.StdEncoding.EncodeToString([]byte{3, 4})},
		{IsFinal: true},
	}
	got := make(chan []textMessage, 1)
	gotPath := make(chan string, 1)
	srv := fakeStream(t, frames, got, gotPath)
	defer srv.Close()

	p, err := New("key-123",
		WithBaseURL(srv.URL),
		WithVoiceMap(map[types.VoiceID]string{types.VoiceFenrir: "el-voice"}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pcm, err := p.Synthesize(ctx, "Hello there.", types.VoiceFenrir)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(pcm) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("pcm = %v, want [1 2 3 4]", pcm)
	}

	path := <-gotPath
	if !strings.HasPrefix(path, "/v1/text-to-speech/el-voice/stream-input?") {
		t.Errorf("path = %q", path)
	}
	if !strings.Contains(path, "output_format=pcm_24000") {
		t.Errorf("path %q missing output format", path)
	}

	msgs := <-got
	if msgs[0].XiAPIKey != "key-123" || msgs[0].Text != " " {
		t.Errorf("opening message = %+v", msgs[0])
	}
	if msgs[1].Text != "Hello there. " {
		t.Errorf("text message = %+v", msgs[1])
	}
	if msgs[2].Text != "" {
		t.Errorf("end-of-input message = %+v", msgs[2])
	}
}

func TestSynthesize_NoAudio(t *testing.T) {
	got := make(chan []textMessage, 1)
	gotPath := make(chan string, 1)
	srv := fakeStream(t, []audioResponse{{IsFinal: true}}, got, gotPath)
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "Hi.", "voice")
	if !errors.Is(err, tts.ErrNoAudio) {
		t.Fatalf("err = %v, want ErrNoAudio", err)
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	got := make(chan []textMessage, 1)
	gotPath := make(chan string, 1)
	srv := fakeStream(t, []audioResponse{{Error: "quota exceeded"}}, got, gotPath)
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), "Hi.", "voice")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want server error", err)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("xi-api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Rachel","category":"premade"},{"voice_id":"def","name":"Adam"}]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].ID != "abc" || voices[0].Name != "Rachel" || voices[0].Provider != "elevenlabs" {
		t.Errorf("voices[0] = %+v", voices[0])
	}
}

func TestListVoices_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("wrong", WithBaseURL(srv.URL))
	if _, err := p.ListVoices(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestNew_Options(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}

	p, err := New("k", WithModel("eleven_multilingual_v2"), WithOutputFormat("pcm_16000"), WithBaseURL("https://example.test/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" {
		t.Errorf("model = %q", p.model)
	}
	if p.SampleRate() != 16000 {
		t.Errorf("SampleRate = %d, want 16000", p.SampleRate())
	}
	if p.wsBase != "wss://example.test" || p.httpBase != "https://example.test" {
		t.Errorf("bases = %q / %q", p.wsBase, p.httpBase)
	}

	p, _ = New("k", WithOutputFormat("mp3_44100_128"))
	if p.SampleRate() != 24000 {
		t.Errorf("non-PCM format should be ignored, SampleRate = %d", p.SampleRate())
	}
}

func TestParsePCMRate(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"pcm_24000", 24000, true},
		{"pcm_16000", 16000, true},
		{"pcm_", 0, false},
		{"pcm_abc", 0, false},
		{"mp3_44100", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePCMRate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parsePCMRate(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
