package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"shorter than limit", "patch", 10, "patch"},
		{"exactly at limit", "backend", 7, "backend"},
		{"truncated", "attention-restore", 10, "attenti..."},
		{"limit too small for content", "anything", 3, "..."},
		{"multibyte runes counted once", "gh200-paketti-äö", 10, "gh200-p..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateANSIPlain(t *testing.T) {
	if got := TruncateANSI("uvm-env-wiring", 20); got != "uvm-env-wiring" {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := TruncateANSI("uvm-env-wiring", 10); got != "uvm-env..." {
		t.Errorf("got %q, want %q", got, "uvm-env...")
	}
}

func TestTruncateANSIKeepsEscapes(t *testing.T) {
	styled := lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Render("backend-factory conflict")
	got := TruncateANSI(styled, 12)
	if lipgloss.Width(got) > 12 {
		t.Errorf("visible width %d exceeds limit", lipgloss.Width(got))
	}
}

func TestTruncateANSIWidthFloor(t *testing.T) {
	if got := TruncateANSI("anything", 2); got != "..." {
		t.Errorf("got %q, want %q", got, "...")
	}
}
