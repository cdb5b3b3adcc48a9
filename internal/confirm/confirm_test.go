package confirm

import (
	"strings"
	"testing"
)

func TestTerminalConfirmer_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes word", "YES\n", true},
		{"no", "n\n", false},
		{"retries until valid", "maybe\nok\ny\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			c := newTerminalConfirmerForTest(strings.NewReader(tt.input), &out)

			got, err := c.Confirm("proceed with rollback?")
			if err != nil {
				t.Fatalf("Confirm failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if !strings.Contains(out.String(), "proceed with rollback?") {
				t.Error("prompt was not written")
			}
		})
	}
}

func TestTerminalConfirmer_Choose(t *testing.T) {
	var out strings.Builder
	c := newTerminalConfirmerForTest(strings.NewReader("7\n2\n"), &out)

	idx, err := c.Choose("audio-hint integration", []string{"pre-integrate", "defer"})
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected index 1 (defer), got %d", idx)
	}
}

func TestScripted_ExhaustionIsAnError(t *testing.T) {
	s := &Scripted{Answers: []bool{true}}

	if _, err := s.Confirm("first"); err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if _, err := s.Confirm("second"); err == nil {
		t.Error("expected error when answers are exhausted")
	}
}

func TestScripted_RecordsPrompts(t *testing.T) {
	s := &Scripted{Answers: []bool{true}, Choices: []int{0}}

	_, _ = s.Confirm("resolve unit 03 manually?")
	_, _ = s.Choose("audio decision", []string{"pre-integrate", "defer"})

	if len(s.Prompts) != 2 {
		t.Fatalf("expected 2 recorded prompts, got %d", len(s.Prompts))
	}
	if s.Prompts[0] != "resolve unit 03 manually?" {
		t.Errorf("unexpected prompt: %q", s.Prompts[0])
	}
}
