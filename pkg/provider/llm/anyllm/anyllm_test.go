package anyllm

import (
	"errors"
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lectern/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	got := convertMessage(llm.Message{Role: llm.RoleUser, Content: "Explain epoll."})
	if got.Role != llm.RoleUser {
		t.Errorf("role = %q", got.Role)
	}
	if got.ContentString() != "Explain epoll." {
		t.Errorf("content = %q", got.ContentString())
	}
}

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "gemini-2.5-flash"}
	req := llm.UserPrompt("You are a teacher.", "Explain the page cache.")
	req.Temperature = 0.7
	req.MaxTokens = 2048

	params := p.buildParams(req)
	if params.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem || params.Messages[0].ContentString() != "You are a teacher." {
		t.Errorf("system message = %+v", params.Messages[0])
	}
	if params.Messages[1].ContentString() != "Explain the page cache." {
		t.Errorf("user message = %+v", params.Messages[1])
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 2048 {
		t.Errorf("max tokens = %v", params.MaxTokens)
	}
}

func TestBuildParams_DefaultsOmitted(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if len(params.Messages) != 1 {
		t.Fatalf("got %d messages, want 1 (no system prompt)", len(params.Messages))
	}
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero temperature and max tokens should be left unset")
	}
}

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
		wantOutput  int
	}{
		{"gemini-2.5-flash", 1_048_576, 65_536},
		{"gemini-2.0-flash-001", 1_048_576, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gpt-4o-mini", 128_000, 16_384},
		{"gpt-4", 8_192, 4_096},
		{"claude-3-5-sonnet-latest", 200_000, 8_192},
		{"totally-unknown", 128_000, 4_096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.wantContext || caps.MaxOutputTokens != tt.wantOutput {
				t.Errorf("got %+v, want context %d output %d", caps, tt.wantContext, tt.wantOutput)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("gemini", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("nope", "m"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unsupported backend: err = %v, want ErrUnsupported", err)
	}
}

func TestNew_Ollama(t *testing.T) {
	p, err := NewOllama("llama3.2")
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	if p.Capabilities().ContextWindow != 128_000 {
		t.Errorf("unexpected capabilities %+v", p.Capabilities())
	}
}

func TestBackends(t *testing.T) {
	got := Backends()
	if !slices.IsSorted(got) {
		t.Errorf("Backends() not sorted: %v", got)
	}
	for _, want := range []string{"anthropic", "gemini", "ollama", "openai"} {
		if !slices.Contains(got, want) {
			t.Errorf("Backends() missing %q", want)
		}
	}
}
