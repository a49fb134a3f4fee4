package script_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/lectern/internal/script"
	"github.com/MrWong99/lectern/pkg/types"
)

func TestParse_TwoSpeakersWithCode(t *testing.T) {
	t.Parallel()
	res := script.Parse("Teacher: Hello.\nStudent: Hi!\n```c\nint x;\n```", script.Options{})

	if res.Tier != script.TierStructured {
		t.Fatalf("tier = %v, want structured", res.Tier)
	}
	if len(res.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(res.Items), res.Items)
	}

	first, second := res.Items[0], res.Items[1]
	if first.Role != types.RoleTeacher || first.Text != "Hello." || first.CodeSnippet != "" {
		t.Errorf("item[0] = %+v", first)
	}
	if second.Role != types.RoleStudent || second.Text != "Hi!" {
		t.Errorf("item[1] = %+v", second)
	}
	if second.CodeSnippet != "int x;" {
		t.Errorf("item[1].CodeSnippet = %q, want %q", second.CodeSnippet, "int x;")
	}
	if first.Voice != types.VoiceFenrir || second.Voice != types.VoicePuck {
		t.Errorf("voices = %s/%s, want Fenrir/Puck", first.Voice, second.Voice)
	}
}

func TestParse_LabelVariants(t *testing.T) {
	t.Parallel()
	raw := "**Interviewer (Host):** Tell me about locks.\n" +
		"candidate 2： I would use a spinlock.\n" +
		"## Master: Why?\n" +
		"STUDENT: Short critical sections."

	res := script.Parse(raw, script.Options{PrimaryVoice: types.VoiceCharon})
	wantRoles := []types.Role{types.RoleTeacher, types.RoleStudent, types.RoleTeacher, types.RoleStudent}
	if len(res.Items) != len(wantRoles) {
		t.Fatalf("got %d items: %+v", len(res.Items), res.Items)
	}
	for i, r := range wantRoles {
		if res.Items[i].Role != r {
			t.Errorf("item[%d].Role = %s, want %s", i, res.Items[i].Role, r)
		}
		if strings.ContainsAny(res.Items[i].Text, "*#") {
			t.Errorf("item[%d] kept markdown: %q", i, res.Items[i].Text)
		}
	}
	if res.Items[0].Voice != types.VoiceCharon {
		t.Errorf("primary voice = %s, want Charon", res.Items[0].Voice)
	}
}

func TestParse_UntaggedLeadingTextIsPrimary(t *testing.T) {
	t.Parallel()
	res := script.Parse("Welcome to the show. Student: Thanks!", script.Options{})
	if len(res.Items) != 2 {
		t.Fatalf("got %+v", res.Items)
	}
	if res.Items[0].Role != types.RoleTeacher || res.Items[0].Text != "Welcome to the show." {
		t.Errorf("item[0] = %+v", res.Items[0])
	}
	if res.Items[1].Role != types.RoleStudent {
		t.Errorf("item[1] = %+v", res.Items[1])
	}
}

func TestParse_ConsecutiveSameRole(t *testing.T) {
	t.Parallel()
	res := script.Parse("Teacher: One.\nTeacher: Two.", script.Options{})
	if len(res.Items) != 2 {
		t.Fatalf("got %+v", res.Items)
	}
	for _, it := range res.Items {
		if it.Role != types.RoleTeacher {
			t.Errorf("role = %s, want Teacher", it.Role)
		}
	}
}

func TestParse_CodeBeforeAnyText(t *testing.T) {
	t.Parallel()
	res := script.Parse("```go\nfunc main() {}\n```\nTeacher: That is main.", script.Options{})
	if len(res.Items) != 2 {
		t.Fatalf("got %+v", res.Items)
	}
	if res.Items[0].Text != script.CodeLeadIn || res.Items[0].CodeSnippet != "func main() {}" {
		t.Errorf("item[0] = %+v", res.Items[0])
	}
}

func TestParse_CodeKeepsUnderscores(t *testing.T) {
	t.Parallel()
	res := script.Parse("Teacher: Look at this.\n```c\nstruct task_struct *p;\n```", script.Options{})
	if len(res.Items) != 1 {
		t.Fatalf("got %+v", res.Items)
	}
	if res.Items[0].CodeSnippet != "struct task_struct *p;" {
		t.Errorf("snippet = %q", res.Items[0].CodeSnippet)
	}
}

func TestParse_UnterminatedFenceIsText(t *testing.T) {
	t.Parallel()
	res := script.Parse("Teacher: Start here. ```c int y;", script.Options{})
	if res.Tier != script.TierStructured {
		t.Fatalf("tier = %v", res.Tier)
	}
	for _, it := range res.Items {
		if it.CodeSnippet != "" {
			t.Errorf("unterminated fence attached as code: %+v", it)
		}
	}
	joined := ""
	for _, it := range res.Items {
		joined += it.Text
	}
	if !strings.Contains(joined, "int y;") {
		t.Errorf("fence text lost: %q", joined)
	}
}

func TestParse_FallbackTiers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		wantTier script.Tier
		wantLen  int
	}{
		{"empty", "", script.TierEmpty, 0},
		{"whitespace", "  \n\t", script.TierEmpty, 0},
		{"plain prose", "Just a paragraph with no labels.", script.TierStructured, 1},
		{"labels only", "Teacher: ... Student: !!!", script.TierMonologue, 1},
		{"punctuation only", "... !!! ???", script.TierPlaceholder, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := script.Parse(tt.raw, script.Options{})
			if res.Tier != tt.wantTier {
				t.Errorf("tier = %v, want %v", res.Tier, tt.wantTier)
			}
			if len(res.Items) != tt.wantLen {
				t.Errorf("items = %d, want %d", len(res.Items), tt.wantLen)
			}
		})
	}
}

func TestParse_PlaceholderText(t *testing.T) {
	t.Parallel()
	res := script.Parse("???", script.Options{})
	if res.Tier != script.TierPlaceholder {
		t.Fatalf("tier = %v", res.Tier)
	}
	if res.Items[0].Text != script.PlaceholderText || res.Items[0].Role != types.RoleTeacher {
		t.Errorf("item = %+v", res.Items[0])
	}
}

func TestTier_String(t *testing.T) {
	t.Parallel()
	if script.TierMonologue.String() != "monologue" {
		t.Errorf("String() = %q", script.TierMonologue.String())
	}
	if script.Tier(99).String() != "unknown" {
		t.Errorf("unknown tier = %q", script.Tier(99).String())
	}
}
