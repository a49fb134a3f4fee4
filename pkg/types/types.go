// Package types defines the shared types used across all Lectern packages.
//
// These types form the lingua franca between the content service, the script
// parser, the segment fetcher and the playback controller. Each package keeps
// its own domain types; cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Role is the speaker attribution of a playlist segment. It selects the
// synthesis voice and the transcript styling.
type Role string

const (
	// RoleTeacher is the primary speaker (teacher, interviewer, master, host).
	RoleTeacher Role = "Teacher"

	// RoleStudent is the secondary speaker (student, candidate, guest).
	RoleStudent Role = "Student"
)

// IsValid reports whether r is one of the two recognised roles.
func (r Role) IsValid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// VoiceID names a prebuilt synthesis voice.
type VoiceID string

// Prebuilt voices offered by the hosted speech model.
const (
	VoiceKore   VoiceID = "Kore"
	VoicePuck   VoiceID = "Puck"
	VoiceCharon VoiceID = "Charon"
	VoiceFenrir VoiceID = "Fenrir"
	VoiceZephyr VoiceID = "Zephyr"
)

// KnownVoices lists every prebuilt voice in display order.
var KnownVoices = []VoiceID{VoiceKore, VoicePuck, VoiceCharon, VoiceFenrir, VoiceZephyr}

// IsKnown reports whether v is one of [KnownVoices].
func (v VoiceID) IsKnown() bool {
	for _, k := range KnownVoices {
		if k == v {
			return true
		}
	}
	return false
}

// PlaylistItem is one segment of a playback session: a pronounceable chunk of
// text attributed to a speaker, optionally carrying a code snippet to display
// while it plays. Items are immutable once constructed.
type PlaylistItem struct {
	Text        string  `json:"text"`
	Role        Role    `json:"role"`
	Voice       VoiceID `json:"voice"`
	CodeSnippet string  `json:"code_snippet,omitempty"`
}

// Playlist is the ordered sequence of segments for one playback session.
// Insertion order is playback order. A playlist is replaced wholesale, never
// mutated in place.
type Playlist []PlaylistItem

// SegmentAudio is the playable rendition of one playlist segment.
type SegmentAudio struct {
	// Index is the playlist index this audio belongs to.
	Index int

	// WAV is a complete RIFF/WAVE container (44-byte header + PCM payload).
	WAV []byte

	// SampleRate of the PCM payload in Hz.
	SampleRate int

	// Duration is the playable length of the segment.
	Duration time.Duration
}

// Language selects the output language of generated content.
type Language string

const (
	LangEnglish Language = "en"
	LangChinese Language = "zh"
)

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	return l == LangEnglish || l == LangChinese
}

// Topic is the structured header produced by the content-generation service.
type Topic struct {
	Title         string `json:"title"`
	TechStack     string `json:"techStack"`
	Overview      string `json:"overview"`
	LectureScript string `json:"lectureScript,omitempty"`
}

// Passage carries the reference text and the raw two-speaker transcript.
type Passage struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Context   string `json:"context"`
}

// SearchResult is the cached outcome of one content-generation call.
type SearchResult struct {
	Topic     Topic     `json:"topic"`
	Passage   Passage   `json:"passage"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryItem summarises a cached search for the history listing.
type HistoryItem struct {
	Key       string    `json:"key"`
	Query     string    `json:"query"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Language  Language  `json:"language"`
}

// Image is a generated illustration.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}
