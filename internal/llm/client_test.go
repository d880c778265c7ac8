// ABOUTME: Tests for the generator client retry loop, niche fallback and prompts
// ABOUTME: Uses a scripted Completer; no network access
package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harper/dmagent/internal/models"
)

type scripted struct {
	outputs []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Complete(_ context.Context, _, user string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", nil
}

func fastOptions() Options {
	return Options{Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestGenerateOpening_RetriesThenSucceeds(t *testing.T) {
	backend := &scripted{
		errs:    []error{errors.New("503"), nil},
		outputs: []string{"", `"Salom!"`},
	}
	c := NewClient(backend, fastOptions(), nil)

	got, err := c.GenerateOpening(context.Background(), OpeningInput{Bio: "coffee shop", TimeOfDay: Morning})
	if err != nil {
		t.Fatalf("GenerateOpening() error = %v", err)
	}
	if got != "Salom!" {
		t.Errorf("GenerateOpening() = %q, want quotes stripped", got)
	}
	if backend.calls != 2 {
		t.Errorf("calls = %d, want 2", backend.calls)
	}
	if !strings.Contains(backend.prompts[0], "coffee shop") {
		t.Error("opening prompt should include the bio")
	}
}

func TestGenerateReply_ExhaustedIsGenerationError(t *testing.T) {
	boom := errors.New("quota")
	backend := &scripted{errs: []error{boom, boom, boom}}
	c := NewClient(backend, fastOptions(), nil)

	_, err := c.GenerateReply(context.Background(), ReplyInput{})
	if !IsGenerationError(err) {
		t.Fatalf("error = %v, want GenerationError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error should wrap the backend failure: %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("calls = %d, want 3", backend.calls)
	}
}

func TestGenerate_EmptyOutputIsFailure(t *testing.T) {
	backend := &scripted{outputs: []string{"  ", "\"\"", ""}}
	c := NewClient(backend, fastOptions(), nil)

	if _, err := c.GenerateReply(context.Background(), ReplyInput{}); !IsGenerationError(err) {
		t.Errorf("error = %v, want GenerationError for blank output", err)
	}
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	backend := &scripted{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	c := NewClient(backend, Options{Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GenerateOpening(ctx, OpeningInput{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if backend.calls != 1 {
		t.Errorf("calls = %d, want 1", backend.calls)
	}
}

func TestDetectNiche(t *testing.T) {
	tests := []struct {
		name    string
		backend *scripted
		want    string
	}{
		{"valid", &scripted{outputs: []string{"Ecommerce\n"}}, models.NicheEcommerce},
		{"unknown label", &scripted{outputs: []string{"astrology"}}, models.NicheBusiness},
		{"failure", &scripted{errs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}, models.NicheBusiness},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.backend, fastOptions(), nil)
			if got := c.DetectNiche(context.Background(), "bio", "post"); got != tt.want {
				t.Errorf("DetectNiche() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeOfDayAt(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{7, Evening}, {8, Morning}, {11, Morning}, {12, Afternoon}, {17, Afternoon}, {18, Evening}, {0, Evening},
	}
	for _, tt := range tests {
		at := time.Date(2026, 3, 1, tt.hour, 30, 0, 0, time.UTC)
		if got := TimeOfDayAt(at); got != tt.want {
			t.Errorf("TimeOfDayAt(%02d:30) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestFallbackOpening(t *testing.T) {
	seen := map[string]bool{}
	for _, tod := range []TimeOfDay{Morning, Afternoon, Evening} {
		msg := FallbackOpening(tod)
		if !strings.HasPrefix(msg, "Assalomu alaykum!") {
			t.Errorf("FallbackOpening(%s) = %q", tod, msg)
		}
		seen[msg] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected distinct templates per time of day, got %d", len(seen))
	}
	if FallbackOpening("") != defaultFallbackOpening {
		t.Error("unknown time of day should use the default template")
	}
}

func TestReplyPrompt_OrderedHistory(t *testing.T) {
	prompt := replyPrompt(ReplyInput{
		Lead: models.Lead{Handle: "shop"},
		History: []models.Message{
			{Role: models.RoleBot, Content: "first"},
			{Role: models.RoleUser, Content: "second"},
			{Role: models.RoleBot, Content: "third"},
		},
		State: models.StateSoftTransition,
	})

	first := strings.Index(prompt, "Bot: first")
	second := strings.Index(prompt, "User: second")
	third := strings.Index(prompt, "Bot: third")
	if first < 0 || second < first || third < second {
		t.Errorf("history out of order in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "direktimga yozing") {
		t.Error("soft transition prompt should carry the invitation")
	}
}
