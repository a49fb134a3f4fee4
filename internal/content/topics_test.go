package content

import (
	"testing"

	"github.com/MrWong99/lectern/internal/script"
	"github.com/MrWong99/lectern/pkg/types"
)

func TestAdjacentTopic(t *testing.T) {
	t.Parallel()
	linux, err := LookupProfile("linux")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		current string
		dir     Direction
		want    string
		ok      bool
	}{
		{"within category", "Runqueues & Load Balancing", Next, "Context Switching (switch_to)", true},
		{"across categories", "cgroups v2 Resource Control", Next, "Virtual Memory Areas (VMA)", true},
		{"previous across categories", " rcu (read-copy-update) implementation ", Previous, "OOM Killer Mechanics", true},
		{"before first", "struct task_struct Internals", Previous, "", false},
		{"after last", "Service Mesh Sidecar Proxies", Next, "", false},
		{"unknown topic", "Plan 9 namespaces", Next, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := linux.AdjacentTopic(tt.current, tt.dir)
			if got != tt.want || ok != tt.ok {
				t.Errorf("AdjacentTopic(%q, %v) = %q, %v; want %q, %v", tt.current, tt.dir, got, ok, tt.want, tt.ok)
			}
		})
	}

	scripture, _ := LookupProfile("scripture")
	if _, ok := scripture.AdjacentTopic("John 3", Next); ok {
		t.Error("scripture profile has no topic catalog")
	}
}

func TestProfileCatalogs(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"interview", "linux", "database", "poem"} {
		p, _ := LookupProfile(name)
		if len(p.Topics) == 0 {
			t.Errorf("%s: empty catalog", name)
		}
		for _, c := range p.Topics {
			if c.Category == "" || c.Icon == "" || len(c.Topics) == 0 {
				t.Errorf("%s: incomplete category %+v", name, c)
			}
		}
	}
}

func TestParseDirection(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Direction{"next": Next, "PREV": Previous, " previous ": Previous} {
		if got, err := ParseDirection(in); err != nil || got != want {
			t.Errorf("ParseDirection(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("unknown direction accepted")
	}
}

func TestAdjacentChapter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ref  string
		dir  Direction
		lang types.Language
		want string
		ok   bool
	}{
		{"John 3:16", Next, types.LangEnglish, "John 4", true},
		{"John 21", Next, types.LangEnglish, "Acts 1", true},
		{"Acts 1", Previous, types.LangChinese, "約翰福音 21", true},
		{"1 john 5", Next, types.LangEnglish, "2 John 1", true},
		{"Jude 1", Previous, types.LangEnglish, "3 John 1", true},
		{"Malachi 4", Next, types.LangEnglish, "Matthew 1", true},
		{"詩篇 119：105", Next, types.LangChinese, "詩篇 120", true},
		{"創世記1", Next, types.LangEnglish, "Genesis 2", true},
		{"Genesis 1", Previous, types.LangEnglish, "", false},
		{"Revelation 22", Next, types.LangEnglish, "", false},
		{"Hezekiah 3", Next, types.LangEnglish, "", false},
		{"John", Next, types.LangEnglish, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := AdjacentChapter(tt.ref, tt.dir, tt.lang)
			if got != tt.want || ok != tt.ok {
				t.Errorf("AdjacentChapter(%q, %v) = %q, %v; want %q, %v", tt.ref, tt.dir, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBibleBooks(t *testing.T) {
	t.Parallel()
	total := 0
	for _, b := range BibleBooks {
		total += b.Chapters
	}
	if len(BibleBooks) != 66 || total != 1189 {
		t.Errorf("canon = %d books, %d chapters; want 66, 1189", len(BibleBooks), total)
	}
}

func TestPoemLabels_InterviewAliases(t *testing.T) {
	t.Parallel()
	poem, err := LookupProfile("poem")
	if err != nil {
		t.Fatal(err)
	}
	raw := "Master: 靜夜思。\nCandidate: What does 床 mean?\nInterviewer: A bed or a well railing."
	res := script.Parse(raw, script.Options{Labels: poem.Labels()})

	want := []struct {
		role types.Role
		text string
	}{
		{types.RoleTeacher, "靜夜思。"},
		{types.RoleStudent, "What does 床 mean?"},
		{types.RoleTeacher, "A bed or a well railing."},
	}
	if res.Tier != script.TierStructured || len(res.Items) != len(want) {
		t.Fatalf("Parse = %v with %d items: %+v", res.Tier, len(res.Items), res.Items)
	}
	for i, w := range want {
		if got := res.Items[i]; got.Role != w.role || got.Text != w.text {
			t.Errorf("item %d = %s %q, want %s %q", i, got.Role, got.Text, w.role, w.text)
		}
	}
}
