// Package script turns a labelled two-speaker transcript into a playlist.
//
// A transcript interleaves speaker labels ("Teacher:", "Interviewer (Host):",
// "Student 2:" …) with free text and fenced code blocks. [Parse] attributes
// every chunk of text to one of the two [types.Role] values and attaches each
// code block to the item spoken just before it. Parsing never fails hard:
// degenerate input falls back through explicit [Tier] values so callers can
// tell which path produced the playlist.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/lectern/internal/chunk"
	"github.com/MrWong99/lectern/pkg/types"
)

// Tier reports which parsing path produced a [Result].
type Tier int

const (
	// TierEmpty means the transcript was blank; the playlist is empty.
	TierEmpty Tier = iota

	// TierStructured means speaker labels and code blocks were honoured.
	TierStructured

	// TierMonologue means no labelled item could be built and the whole
	// transcript was chunked as the primary speaker.
	TierMonologue

	// TierPlaceholder means even the monologue was empty (or parsing
	// panicked) and a single notice item was returned.
	TierPlaceholder
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierEmpty:
		return "empty"
	case TierStructured:
		return "structured"
	case TierMonologue:
		return "monologue"
	case TierPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// PlaceholderText is spoken when a transcript cannot be parsed at all.
const PlaceholderText = "Error parsing script. Playing full text."

// CodeLeadIn is the synthetic item created when a code block appears before
// any spoken text.
const CodeLeadIn = "Code example:"

// DefaultLabels are the speaker spellings recognised for each role across the
// content profiles.
var DefaultLabels = map[types.Role][]string{
	types.RoleTeacher: {"Teacher", "Interviewer", "Master", "Narrator", "Host", "Professor", "Mentor"},
	types.RoleStudent: {"Student", "Candidate", "Guest", "Learner"},
}

// Options configures [Parse]. The zero value uses [DefaultLabels], Fenrir for
// the primary role, Puck for the secondary role and [chunk.DefaultTarget].
type Options struct {
	Labels         map[types.Role][]string
	PrimaryVoice   types.VoiceID
	SecondaryVoice types.VoiceID
	ChunkTarget    int
}

func (o Options) withDefaults() Options {
	if len(o.Labels) == 0 {
		o.Labels = DefaultLabels
	}
	if o.PrimaryVoice == "" {
		o.PrimaryVoice = types.VoiceFenrir
	}
	if o.SecondaryVoice == "" {
		o.SecondaryVoice = types.VoicePuck
	}
	if o.ChunkTarget <= 0 {
		o.ChunkTarget = chunk.DefaultTarget
	}
	return o
}

func (o Options) voiceFor(r types.Role) types.VoiceID {
	if r == types.RoleStudent {
		return o.SecondaryVoice
	}
	return o.PrimaryVoice
}

// Result is the outcome of [Parse].
type Result struct {
	Items types.Playlist
	Tier  Tier

	// Err is set when a panic was recovered on the way to TierPlaceholder.
	Err error
}

var (
	fenceRE       = regexp.MustCompile("(?s)```.*?```")
	fenceOpenRE   = regexp.MustCompile("^```\\w*\\s*")
	fenceCloseRE  = regexp.MustCompile("\\s*```$")
	emphasisRE    = regexp.MustCompile(`[*#_]`)
	placeholderRE = regexp.MustCompile("\x00(\\d+)\x00")
)

// Parse converts raw into a playlist. It never panics and never returns an
// error; see [Tier] for the fallback order.
func Parse(raw string, opts Options) (res Result) {
	opts = opts.withDefaults()
	if strings.TrimSpace(raw) == "" {
		return Result{Tier: TierEmpty}
	}

	defer func() {
		if r := recover(); r != nil {
			res = placeholder(opts, fmt.Errorf("script: parse panic: %v", r))
		}
	}()

	body, code := extractFences(raw)
	body = emphasisRE.ReplaceAllString(body, "")

	p := parser{opts: opts, code: code}
	p.walk(body)
	if len(p.items) > 0 {
		return Result{Items: p.items, Tier: TierStructured}
	}

	monologue := strings.TrimSpace(placeholderRE.ReplaceAllString(body, " "))
	var items types.Playlist
	for _, c := range chunk.Split(monologue, opts.ChunkTarget) {
		items = append(items, types.PlaylistItem{Text: c, Role: types.RoleTeacher, Voice: opts.PrimaryVoice})
	}
	if len(items) > 0 {
		return Result{Items: items, Tier: TierMonologue}
	}
	return placeholder(opts, nil)
}

func placeholder(opts Options, err error) Result {
	return Result{
		Items: types.Playlist{{Text: PlaceholderText, Role: types.RoleTeacher, Voice: opts.PrimaryVoice}},
		Tier:  TierPlaceholder,
		Err:   err,
	}
}

// extractFences replaces every closed ``` fence with a NUL-delimited index
// token and returns the trimmed code bodies. Unterminated fences stay in the
// text verbatim. Markdown stripping happens afterwards so identifiers inside
// code keep their underscores.
func extractFences(raw string) (string, []string) {
	var code []string
	body := fenceRE.ReplaceAllStringFunc(raw, func(block string) string {
		inner := fenceOpenRE.ReplaceAllString(block, "")
		inner = strings.TrimSpace(fenceCloseRE.ReplaceAllString(inner, ""))
		code = append(code, inner)
		return "\x00" + strconv.Itoa(len(code)-1) + "\x00"
	})
	return body, code
}

type parser struct {
	opts  Options
	code  []string
	items types.Playlist
	role  types.Role
}

// walk splits body on speaker labels and feeds each attributed span to emit.
// Untagged leading text belongs to the primary role.
func (p *parser) walk(body string) {
	p.role = types.RoleTeacher
	labelRE, roles := labelPattern(p.opts.Labels)

	last := 0
	for _, m := range labelRE.FindAllStringSubmatchIndex(body, -1) {
		p.emit(body[last:m[0]])
		if r, ok := roles[strings.ToLower(body[m[2]:m[3]])]; ok {
			p.role = r
		}
		last = m[1]
	}
	p.emit(body[last:])
}

// emit turns one role-attributed span into items, attaching code blocks to the
// item immediately before them.
func (p *parser) emit(span string) {
	last := 0
	for _, m := range placeholderRE.FindAllStringSubmatchIndex(span, -1) {
		p.speak(span[last:m[0]])
		idx, err := strconv.Atoi(span[m[2]:m[3]])
		if err == nil && idx < len(p.code) {
			p.attach(p.code[idx])
		}
		last = m[1]
	}
	p.speak(span[last:])
}

func (p *parser) speak(text string) {
	for _, c := range chunk.Split(text, p.opts.ChunkTarget) {
		p.items = append(p.items, types.PlaylistItem{
			Text:  c,
			Role:  p.role,
			Voice: p.opts.voiceFor(p.role),
		})
	}
}

func (p *parser) attach(code string) {
	if code == "" {
		return
	}
	if len(p.items) == 0 {
		p.items = append(p.items, types.PlaylistItem{
			Text:  CodeLeadIn,
			Role:  p.role,
			Voice: p.opts.voiceFor(p.role),
		})
	}
	last := &p.items[len(p.items)-1]
	if last.CodeSnippet != "" {
		last.CodeSnippet += "\n\n" + code
		return
	}
	last.CodeSnippet = code
}

// labelPattern compiles a case-insensitive matcher for every label followed by
// an optional qualifier ("(Host)", " 2") and a Latin or full-width colon.
func labelPattern(labels map[types.Role][]string) (*regexp.Regexp, map[string]types.Role) {
	roles := make(map[string]types.Role)
	var alts []string
	for _, role := range []types.Role{types.RoleTeacher, types.RoleStudent} {
		for _, l := range labels[role] {
			if l == "" {
				continue
			}
			roles[strings.ToLower(l)] = role
			alts = append(alts, regexp.QuoteMeta(l))
		}
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(alts, "|") + `)[^\n:：]*?[:：]`), roles
}
