package content

import (
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/MrWong99/lectern/pkg/types"
)

// Profile is one content flavour: who the two speakers are, how the model is
// prompted and what to fall back to when its answer is incomplete.
type Profile struct {
	// Name selects the profile in configuration.
	Name string

	// Namespace prefixes every cache key written for this profile.
	Namespace string

	// PrimaryLabel and SecondaryLabel are the speaker labels the model is
	// told to use. They map to [types.RoleTeacher] and [types.RoleStudent].
	PrimaryLabel   string
	SecondaryLabel string

	// LabelAliases are further spellings the parser accepts per role. They
	// are never used in prompts.
	LabelAliases map[types.Role][]string

	// HeaderTechStack and HeaderOverview replace a header that is not valid
	// JSON.
	HeaderTechStack string
	HeaderOverview  string

	// DefaultTechStack and DefaultOverview fill fields the header left empty.
	DefaultTechStack string
	DefaultOverview  string

	// LanguageHints is appended to every prompt for the requested language.
	LanguageHints map[types.Language]string

	// SeparateLecture requests a second, longer dialogue through
	// [Service.Lecture] when preparing a session.
	SeparateLecture bool

	// Topics is the curated catalog offered for browsing. Empty for
	// profiles navigated another way.
	Topics []TopicCategory

	search   *template.Template
	lecture  *template.Template
	image    *template.Template
	fallback *template.Template
	lyrics   *template.Template
}

// Labels returns the speaker label spellings for the script parser: the
// profile's own labels, its aliases and the generic Teacher/Student pair.
func (p Profile) Labels() map[types.Role][]string {
	primary := append([]string{p.PrimaryLabel}, p.LabelAliases[types.RoleTeacher]...)
	secondary := append([]string{p.SecondaryLabel}, p.LabelAliases[types.RoleStudent]...)
	return map[types.Role][]string{
		types.RoleTeacher: uniq(append(primary, "Teacher")...),
		types.RoleStudent: uniq(append(secondary, "Student")...),
	}
}

// HasLyrics reports whether [Service.Lyrics] is available for p.
func (p Profile) HasLyrics() bool { return p.lyrics != nil }

func uniq(labels ...string) []string {
	var out []string
	for _, l := range labels {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// promptData feeds every profile template.
type promptData struct {
	Query        string
	Title        string
	Overview     string
	Passage      string
	Minutes      int
	TargetWords  int
	LanguageHint string
	Primary      string
	Secondary    string
}

func (p Profile) render(t *template.Template, d promptData) (string, error) {
	d.Primary, d.Secondary = p.PrimaryLabel, p.SecondaryLabel
	var b strings.Builder
	if err := t.Execute(&b, d); err != nil {
		return "", fmt.Errorf("content: render %s prompt for %s: %w", t.Name(), p.Name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

func (p Profile) languageHint(lang types.Language) string {
	if h, ok := p.LanguageHints[lang]; ok {
		return h
	}
	return p.LanguageHints[types.LangEnglish]
}

// LookupProfile returns the built-in profile called name.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("content: unknown profile %q (known: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the built-in profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

const searchFormat = `
Format requirements:
1. Output strictly in two parts separated by "---TRANSCRIPT---".
2. The first part is JSON metadata with the fields title, techStack and overview.
3. The second part is the raw transcript dialogue.
4. Use "{{.Primary}}:" and "{{.Secondary}}:" as speaker labels.
5. Put source code or quoted text in markdown code blocks.
6. End the transcript with "---END---".

Structure:
---HEADER---
{"title": "...", "techStack": "...", "overview": "..."}
---TRANSCRIPT---
{{.Primary}}: ...

{{.Secondary}}: ...
---END---

{{.LanguageHint}}`

func mustProfile(p Profile, search, lecture, image, fallback string) Profile {
	p.search = template.Must(template.New("search").Parse(search + searchFormat))
	p.lecture = template.Must(template.New("lecture").Parse(lecture))
	p.image = template.Must(template.New("image").Parse(image))
	p.fallback = template.Must(template.New("fallback").Parse(fallback))
	return p
}

func withLyrics(p Profile, lyrics string) Profile {
	p.lyrics = template.Must(template.New("lyrics").Parse(lyrics))
	return p
}

var profiles = map[string]Profile{
	"interview": mustProfile(Profile{
		Name:             "interview",
		Namespace:        "interview",
		PrimaryLabel:     "Interviewer",
		SecondaryLabel:   "Candidate",
		HeaderTechStack:  "Software Interview",
		HeaderOverview:   "Mock Interview Session",
		DefaultTechStack: "Interview Prep",
		DefaultOverview:  "Deep dive mock interview.",
		LanguageHints: map[types.Language]string{
			types.LangEnglish: "Output in English.",
			types.LangChinese: "Output in Traditional Chinese (Technical Terms in English).",
		},
		Topics: interviewTopics,
	},
		`You are a Senior Staff Engineer and hiring manager conducting a mock interview.
Topic: "{{.Query}}"
Task: create a mock interview script of about {{.Minutes}} minutes spoken.
The {{.Primary}} asks tough, deep questions and challenges assumptions.
The {{.Secondary}} answers with the STAR method or a structured engineering approach and states trade-offs clearly.`,
		`Act as a {{.Primary}} running a follow-up round with a {{.Secondary}}.
Topic: {{.Title}}
Context: {{.Overview}}
Length: about {{.TargetWords}} words.
Start every spoken paragraph with "{{.Primary}}:" or "{{.Secondary}}:". Put code in markdown code blocks.
{{.LanguageHint}}`,
		`Clean whiteboard system design diagram for {{.Query}}. Boxes and arrows, minimal, high resolution.`,
		"{{.Primary}}: Tell me about {{.Title}}. {{.Overview}}\n\n{{.Secondary}}: Sure. Here is my approach...",
	),

	"linux": mustProfile(Profile{
		Name:             "linux",
		Namespace:        "linux",
		PrimaryLabel:     "Teacher",
		SecondaryLabel:   "Student",
		HeaderTechStack:  "Linux Kernel",
		HeaderOverview:   "Generated Lecture",
		DefaultTechStack: "Kernel Internals",
		DefaultOverview:  "Deep dive into Linux kernel internals.",
		SeparateLecture:  true,
		LanguageHints: map[types.Language]string{
			types.LangEnglish: "Output in English.",
			types.LangChinese: "Output in Traditional Chinese.",
		},
		Topics: linuxTopics,
	},
		`You are a Senior Linux Kernel Maintainer and OS architect.
Topic: "{{.Query}}"
Task: create a structured lecture of about {{.Minutes}} minutes spoken, naming the core kernel subsystem and focusing on internal mechanics.`,
		`Act as a Senior Linux Kernel Maintainer ({{.Primary}}) mentoring a junior kernel developer ({{.Secondary}}).
Topic: {{.Title}}
Context: {{.Overview}}
Length: about {{.TargetWords}} words.
The {{.Primary}} explains mechanisms deeply, the {{.Secondary}} asks about race conditions and edge cases, and the {{.Primary}} answers with real C code from the kernel tree in markdown code blocks.
Start every spoken paragraph strictly with "{{.Primary}}:" or "{{.Secondary}}:".
{{.LanguageHint}}`,
		`Detailed computer science system architecture diagram for {{.Query}}. Dark mode, neon green lines, Linux kernel internals, memory maps, schematic style, high resolution.`,
		"{{.Primary}}: Let me explain {{.Title}}. {{.Overview}}\n\n{{.Secondary}}: Can you show me the code?\n\n{{.Primary}}: Let's look at the source.",
	),

	"database": mustProfile(Profile{
		Name:             "database",
		Namespace:        "db",
		PrimaryLabel:     "Teacher",
		SecondaryLabel:   "Student",
		HeaderTechStack:  "Database Internals",
		HeaderOverview:   "Generated Lecture",
		DefaultTechStack: "DB Internal",
		DefaultOverview:  "Detailed analysis of database architecture.",
		LanguageHints: map[types.Language]string{
			types.LangEnglish: "Output in English.",
			types.LangChinese: "Output in Traditional Chinese (Technical Terms in English).",
		},
		Topics: databaseTopics,
	},
		`You are a Senior Database Kernel Engineer and professor with deep experience in MySQL, PostgreSQL and distributed systems.
Topic: "{{.Query}}"
Task: create a structured lecture script of about {{.Minutes}} minutes spoken, with C/C++ source snippets from real engines.`,
		`Act as a database kernel {{.Primary}} mentoring a {{.Secondary}}.
Topic: {{.Title}}
Context: {{.Overview}}
Length: about {{.TargetWords}} words.
Reference real structs and source files. Start every spoken paragraph with "{{.Primary}}:" or "{{.Secondary}}:".
{{.LanguageHint}}`,
		`Database engine internals diagram for {{.Query}}: B+ trees, buffer pool, WAL. Blueprint style, high resolution.`,
		"{{.Primary}}: Let me explain {{.Title}}. {{.Overview}}\n\n{{.Secondary}}: Can you show me the code?\n\n{{.Primary}}: Let's look at the source.",
	),

	"poem": mustProfile(Profile{
		Name:             "poem",
		Namespace:        "poem",
		PrimaryLabel:     "Master",
		SecondaryLabel:   "Student",
		HeaderTechStack:  "Chinese Poetry",
		HeaderOverview:   "Poetry Appreciation",
		DefaultTechStack: "Classical Poetry",
		DefaultOverview:  "Appreciation of a classical Chinese poem.",
		LanguageHints: map[types.Language]string{
			types.LangEnglish: "Output primarily in English but keep the poem in Chinese.",
			types.LangChinese: "Output primarily in Traditional Chinese.",
		},
		LabelAliases: map[types.Role][]string{
			types.RoleTeacher: {"Interviewer"},
			types.RoleStudent: {"Candidate"},
		},
		Topics: poemTopics,
	},
		`You are a wise Chinese literature master teaching a student about classical poetry.
Topic: "{{.Query}}"
Task: create a poem appreciation lesson of about {{.Minutes}} minutes spoken.
The {{.Primary}} is calm and poetic and explains history, emotion and imagery. The {{.Secondary}} asks about word meanings and historical context.
Place the original poem in a markdown code block near the start. Use the header field techStack for the dynasty and poet.`,
		`Act as a {{.Primary}} of classical Chinese literature teaching a {{.Secondary}}.
Poem: {{.Title}}
Context: {{.Overview}}
Length: about {{.TargetWords}} words.
Start every spoken paragraph with "{{.Primary}}:" or "{{.Secondary}}:". Quote verses in markdown code blocks.
{{.LanguageHint}}`,
		`Traditional Chinese ink wash painting illustrating the poem {{.Query}}. Soft brush strokes, misty mountains, moonlight.`,
		"{{.Primary}}: Let us discuss {{.Title}}. {{.Overview}}\n\n{{.Secondary}}: Please teach me.",
	),

	"scripture": withLyrics(mustProfile(Profile{
		Name:             "scripture",
		Namespace:        "scripture",
		PrimaryLabel:     "Pastor",
		SecondaryLabel:   "Seeker",
		HeaderTechStack:  "Scripture",
		HeaderOverview:   "Devotional Reading",
		DefaultTechStack: "Bible Study",
		DefaultOverview:  "A devotional reflection on the passage.",
		LanguageHints: map[types.Language]string{
			types.LangEnglish: "Quote scripture in English (NIV/ESV).",
			types.LangChinese: "Quote scripture in Traditional Chinese (Chinese Union Version).",
		},
	},
		`Find the single most relevant Bible passage for: "{{.Query}}".
Task: create a devotional conversation of about {{.Minutes}} minutes spoken covering historical background, theological depth and practical application.
Use the header field title for the reference and put the passage text in a markdown code block. The tone is warm, pastoral and encouraging.`,
		`Write a deep, inspiring devotional dialogue between a {{.Primary}} and a {{.Secondary}}.
Passage: {{.Title}}
Summary: {{.Overview}}
Length: about {{.TargetWords}} words.
Start every spoken paragraph with "{{.Primary}}:" or "{{.Secondary}}:".
{{.LanguageHint}}`,
		`Reverent painting inspired by {{.Query}}. Warm light, classical oil painting style.`,
		"{{.Primary}}: Let us read {{.Title}} together. {{.Overview}}\n\n{{.Secondary}}: What does it mean for us today?",
	),
		`Create a song transcript (lyrics) based on this scripture.
Reference: {{.Title}}
Text: "{{.Passage}}"
{{.LanguageHint}}
Include a title, verses, a chorus and a bridge.`,
	),
}
