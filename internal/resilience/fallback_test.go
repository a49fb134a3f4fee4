package resilience

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func voiceChain() *Chain[string] {
	c := NewChain("gemini", "gemini", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	c.Append("elevenlabs", "elevenlabs")
	return c
}

// record calls Try and returns the links visited in order.
func record(ctx context.Context, c *Chain[string], failing ...string) ([]string, string, error) {
	var visited []string
	got, err := Try(ctx, c, func(v string) (string, error) {
		visited = append(visited, v)
		if slices.Contains(failing, v) {
			return "", errTest
		}
		return "audio from " + v, nil
	})
	return visited, got, err
}

func TestTry_Order(t *testing.T) {
	tests := []struct {
		name        string
		failing     []string
		wantVisited []string
		wantResult  string
	}{
		{"primary answers", nil, []string{"gemini"}, "audio from gemini"},
		{"primary down", []string{"gemini"}, []string{"gemini", "elevenlabs"}, "audio from elevenlabs"},
		{"backup down only", []string{"elevenlabs"}, []string{"gemini"}, "audio from gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visited, got, err := record(context.Background(), voiceChain(), tt.failing...)
			if err != nil {
				t.Fatalf("Try: %v", err)
			}
			if got != tt.wantResult || !slices.Equal(visited, tt.wantVisited) {
				t.Errorf("got %q via %v, want %q via %v", got, visited, tt.wantResult, tt.wantVisited)
			}
		})
	}
}

func TestTry_AllFail(t *testing.T) {
	_, _, err := record(context.Background(), voiceChain(), "gemini", "elevenlabs")
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want ErrAllFailed wrapping errTest", err)
	}
	for _, name := range []string{"gemini:", "elevenlabs:"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestTry_SkipsOpenBreaker(t *testing.T) {
	c := voiceChain()
	for range 2 {
		_, _, _ = record(context.Background(), c, "gemini")
	}
	if st := c.States()["gemini"]; st != StateOpen {
		t.Fatalf("gemini breaker = %v, want open", st)
	}

	visited, _, err := record(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(visited, []string{"elevenlabs"}) {
		t.Errorf("visited %v, want only elevenlabs", visited)
	}
}

func TestTry_StopsOnCancel(t *testing.T) {
	c := voiceChain()
	ctx, cancel := context.WithCancel(context.Background())
	var visited []string
	_, err := Try(ctx, c, func(v string) (string, error) {
		visited = append(visited, v)
		cancel()
		return "", context.Canceled
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want bare context.Canceled", err)
	}
	if len(visited) != 1 {
		t.Errorf("visited %v after cancel, want only the first link", visited)
	}
	if st := c.States()["gemini"]; st != StateClosed {
		t.Errorf("cancelled call changed breaker to %v", st)
	}
}

func TestChain_Accessors(t *testing.T) {
	c := voiceChain()
	if c.Primary() != "gemini" {
		t.Errorf("Primary() = %q", c.Primary())
	}
	if got := c.Names(); !slices.Equal(got, []string{"gemini", "elevenlabs"}) {
		t.Errorf("Names() = %v", got)
	}
	if len(c.States()) != 2 {
		t.Errorf("States() = %v", c.States())
	}
}
