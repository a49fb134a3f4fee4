// Package content generates the material a session plays: a topic header and
// two-speaker transcript from the text model, optional longer lecture scripts
// and an illustration from the image model.
//
// Every result is cached in a [respcache.Cache] under profile-namespaced keys.
// Cached results are served even when the network is down; uncached requests
// fail fast with [ErrOffline] while the [OnlineChecker] reports offline.
package content

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lectern/internal/observe"
	"github.com/MrWong99/lectern/internal/respcache"
	"github.com/MrWong99/lectern/pkg/provider/image"
	"github.com/MrWong99/lectern/pkg/provider/llm"
	"github.com/MrWong99/lectern/pkg/types"
)

// LectureFailureText is returned by [Service.Lecture] in place of an error.
const LectureFailureText = "Failed to generate lecture."

var (
	// ErrOffline is returned for uncached requests while offline.
	ErrOffline = errors.New("content: offline and not cached")

	// ErrMalformedResponse is returned when a model reply matches neither the
	// delimited format nor the single-object fallback.
	ErrMalformedResponse = errors.New("content: malformed model response")

	// ErrNoImageProvider is returned by Image when no image model is wired.
	ErrNoImageProvider = errors.New("content: no image provider configured")

	// ErrNoLyrics is returned by Lyrics for profiles without a song prompt.
	ErrNoLyrics = errors.New("content: profile does not write lyrics")
)

// OnlineChecker reports network reachability.
type OnlineChecker interface {
	Online() bool
}

// Config configures a [Service].
type Config struct {
	// Profile selects prompts, labels and cache namespace.
	Profile Profile

	// Online gates uncached generation. Nil means always online.
	Online OnlineChecker

	// LLMName and ImageName label provider metrics.
	LLMName   string
	ImageName string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now defaults to [time.Now].
	Now func() time.Time
}

// Service is the content-generation front end. It is safe for concurrent use.
type Service struct {
	llm    llm.Provider
	images image.Provider
	cache  *respcache.Cache
	cfg    Config
}

// New creates a Service. images may be nil, in which case [Service.Image]
// returns [ErrNoImageProvider].
func New(text llm.Provider, images image.Provider, cache *respcache.Cache, cfg Config) *Service {
	if cfg.LLMName == "" {
		cfg.LLMName = "llm"
	}
	if cfg.ImageName == "" {
		cfg.ImageName = "image"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{llm: text, images: images, cache: cache, cfg: cfg}
}

// Profile returns the active profile.
func (s *Service) Profile() Profile { return s.cfg.Profile }

func (s *Service) online() bool {
	return s.cfg.Online == nil || s.cfg.Online.Online()
}

func (s *Service) ns() string { return s.cfg.Profile.Namespace }

// Search returns the topic header and transcript for query. A cached result
// is returned unless force is set; otherwise the text model is prompted and
// its reply cached.
func (s *Service) Search(ctx context.Context, query string, lang types.Language, minutes int, force bool) (types.SearchResult, error) {
	key := respcache.SearchKey(s.ns(), string(lang), query)
	if !force {
		var cached types.SearchResult
		if s.cache.Get(key, &cached) {
			return cached, nil
		}
	}
	if !s.online() {
		return types.SearchResult{}, ErrOffline
	}

	p := s.cfg.Profile
	prompt, err := p.render(p.search, promptData{
		Query:        query,
		Minutes:      minutes,
		LanguageHint: p.languageHint(lang),
	})
	if err != nil {
		return types.SearchResult{}, err
	}

	reply, err := s.complete(ctx, prompt)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("content: search %q: %w", query, err)
	}

	res, err := p.parseResponse(reply, query)
	if err != nil {
		slog.Warn("content: unparseable search reply", "query", query, "err", err)
		return types.SearchResult{}, err
	}
	res.Timestamp = s.cfg.Now()
	s.cache.Put(ctx, key, res)
	return res, nil
}

// CheckCacheExistence returns the cached search result for query, if any.
func (s *Service) CheckCacheExistence(query string, lang types.Language) (types.SearchResult, bool) {
	var res types.SearchResult
	ok := s.cache.Get(respcache.SearchKey(s.ns(), string(lang), query), &res)
	return res, ok
}

// History lists cached searches for lang, newest first.
func (s *Service) History(lang types.Language) []types.HistoryItem {
	entries := s.cache.Scan(respcache.SearchPrefix(s.ns(), string(lang)))
	items := make([]types.HistoryItem, 0, len(entries))
	for _, e := range entries {
		var res types.SearchResult
		if !s.cache.Get(e.Key, &res) {
			continue
		}
		ts := res.Timestamp
		if ts.IsZero() {
			ts = e.Timestamp
		}
		items = append(items, types.HistoryItem{
			Key:       e.Key,
			Query:     respcache.QueryFromSearchKey(s.ns(), string(lang), e.Key),
			Title:     res.Topic.Title,
			Timestamp: ts,
			Language:  lang,
		})
	}
	return items
}

// TargetWords is the requested lecture length for minutes of speech.
func TargetWords(minutes int) int {
	return max(200, minutes*150)
}

// Lecture generates a standalone dialogue script for title. Any failure is
// logged and reported as [LectureFailureText] with a nil error.
func (s *Service) Lecture(ctx context.Context, title, overview string, lang types.Language, minutes int, force bool) (string, error) {
	key := respcache.LectureKey(s.ns(), string(lang), minutes, title)
	if !force {
		var cached string
		if s.cache.Get(key, &cached) {
			return cached, nil
		}
	}
	if !s.online() {
		slog.Warn("content: lecture requested while offline", "title", title)
		return LectureFailureText, nil
	}

	p := s.cfg.Profile
	prompt, err := p.render(p.lecture, promptData{
		Title:        title,
		Overview:     overview,
		Minutes:      minutes,
		TargetWords:  TargetWords(minutes),
		LanguageHint: p.languageHint(lang),
	})
	if err != nil {
		slog.Error("content: lecture prompt", "err", err)
		return LectureFailureText, nil
	}

	text, err := s.complete(ctx, prompt)
	if err != nil {
		slog.Warn("content: lecture generation failed", "title", title, "err", err)
		return LectureFailureText, nil
	}
	if strings.TrimSpace(text) != "" {
		s.cache.Put(ctx, key, text)
	}
	return text, nil
}

// Image returns an illustration for topic, generating and caching it on a
// miss. Images are optional: callers should treat an error as "no image".
func (s *Service) Image(ctx context.Context, topic string) (types.Image, error) {
	key := respcache.ImageKey(s.ns(), topic)
	var url string
	if s.cache.Get(key, &url) {
		if img, err := ParseDataURL(url); err == nil {
			return img, nil
		}
	}
	if s.images == nil {
		return types.Image{}, ErrNoImageProvider
	}
	if !s.online() {
		return types.Image{}, ErrOffline
	}

	p := s.cfg.Profile
	prompt, err := p.render(p.image, promptData{Query: topic})
	if err != nil {
		return types.Image{}, err
	}

	start := time.Now()
	img, err := s.images.Generate(ctx, prompt)
	s.cfg.Metrics.ImageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", s.cfg.ImageName)))
	s.recordRequest(ctx, s.cfg.ImageName, "image", err)
	if err != nil {
		return types.Image{}, fmt.Errorf("content: image %q: %w", topic, err)
	}

	s.cache.Put(ctx, key, DataURL(img))
	return img, nil
}

// Lyrics writes song lyrics for a passage. Results are cached per reference
// and language and served offline; an uncached request while offline fails
// with [ErrOffline]. Model errors are returned, and an empty reply is
// returned but not cached.
func (s *Service) Lyrics(ctx context.Context, reference, passage string, lang types.Language) (string, error) {
	p := s.cfg.Profile
	if !p.HasLyrics() {
		return "", ErrNoLyrics
	}
	key := respcache.LyricsKey(s.ns(), string(lang), reference)
	var cached string
	if s.cache.Get(key, &cached) {
		return cached, nil
	}
	if !s.online() {
		return "", ErrOffline
	}

	prompt, err := p.render(p.lyrics, promptData{
		Title:        reference,
		Passage:      passage,
		LanguageHint: lyricsHint(lang),
	})
	if err != nil {
		return "", err
	}
	text, err := s.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("content: lyrics %q: %w", reference, err)
	}
	if strings.TrimSpace(text) != "" {
		s.cache.Put(ctx, key, text)
	}
	return text, nil
}

func lyricsHint(lang types.Language) string {
	if lang == types.LangChinese {
		return "Write lyrics in Traditional Chinese."
	}
	return "Write lyrics in English."
}

// Bundle is everything needed to start a session for a query.
type Bundle struct {
	Result types.SearchResult `json:"result"`

	// Image is nil when no illustration could be produced.
	Image *types.Image `json:"image,omitempty"`
}

// Script returns the transcript to play: the separate lecture when one was
// generated, the search transcript otherwise.
func (b Bundle) Script() string {
	if l := b.Result.Topic.LectureScript; l != "" && l != LectureFailureText {
		return l
	}
	return b.Result.Passage.Context
}

// Prepare runs Search and then, concurrently, the lecture (for profiles with
// SeparateLecture) and the illustration. Only a Search failure is returned;
// the lecture and image are best effort.
func (s *Service) Prepare(ctx context.Context, query string, lang types.Language, minutes int, force bool) (Bundle, error) {
	res, err := s.Search(ctx, query, lang, minutes, force)
	if err != nil {
		return Bundle{}, err
	}
	b := Bundle{Result: res}

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Profile.SeparateLecture {
		g.Go(func() error {
			script, _ := s.Lecture(gctx, res.Topic.Title, res.Topic.Overview, lang, minutes, force)
			b.Result.Topic.LectureScript = script
			return nil
		})
	}
	if s.images != nil {
		g.Go(func() error {
			img, err := s.Image(gctx, res.Topic.Title)
			if err != nil {
				slog.Info("content: continuing without image", "topic", res.Topic.Title, "err", err)
				return nil
			}
			b.Image = &img
			return nil
		})
	}
	_ = g.Wait()
	return b, nil
}

// complete sends a single-turn prompt to the text model and records metrics.
func (s *Service) complete(ctx context.Context, prompt string) (_ string, err error) {
	ctx, span := observe.StartSpan(ctx, "content.complete", observe.KeyProvider.String(s.cfg.LLMName))
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	resp, err := s.llm.Complete(ctx, llm.UserPrompt("", prompt))
	s.cfg.Metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", s.cfg.LLMName)))
	s.recordRequest(ctx, s.cfg.LLMName, "llm", err)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *Service) recordRequest(ctx context.Context, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.cfg.Metrics.RecordProviderError(ctx, provider, kind)
	}
	s.cfg.Metrics.RecordProviderRequest(ctx, provider, kind, status)
}

// DataURL encodes img as a base64 data URL.
func DataURL(img types.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURL decodes a base64 data URL produced by [DataURL].
func ParseDataURL(url string) (types.Image, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return types.Image{}, fmt.Errorf("content: not a data url")
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return types.Image{}, fmt.Errorf("content: data url is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return types.Image{}, fmt.Errorf("content: decode data url: %w", err)
	}
	if len(data) == 0 {
		return types.Image{}, fmt.Errorf("content: empty data url")
	}
	return types.Image{MIMEType: mime, Data: data}, nil
}
