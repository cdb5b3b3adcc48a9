// Package display renders user-facing pipeline output: stage banners,
// per-unit result lines, and the final run summary.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tallgren/regraft/internal/patch"
	"github.com/tallgren/regraft/internal/util"
)

// summaryWidth caps summary lines so the box fits an 80-column terminal.
const summaryWidth = 72

var (
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	GreenColor   = lipgloss.Color("#10B981")
	AmberColor   = lipgloss.Color("#F59E0B")
	RedColor     = lipgloss.Color("#F87171")
	MutedColor   = lipgloss.Color("#9CA3AF")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	okStyle   = lipgloss.NewStyle().Foreground(GreenColor)
	warnStyle = lipgloss.NewStyle().Foreground(AmberColor)
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(RedColor)
	mutedsty  = lipgloss.NewStyle().Foreground(MutedColor)

	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 2)
)

// Display writes styled pipeline output to a single stream.
type Display struct {
	out io.Writer
}

// New creates a Display writing to out.
func New(out io.Writer) *Display {
	return &Display{out: out}
}

// Stage prints a numbered stage banner.
func (d *Display) Stage(number int, name string) {
	fmt.Fprintf(d.out, "\n%s\n", bannerStyle.Render(fmt.Sprintf("[%d/6] %s", number, name)))
}

// Info prints a plain progress line.
func (d *Display) Info(format string, args ...any) {
	fmt.Fprintf(d.out, "  %s\n", fmt.Sprintf(format, args...))
}

// Muted prints a secondary detail line.
func (d *Display) Muted(format string, args ...any) {
	fmt.Fprintf(d.out, "  %s\n", mutedsty.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (d *Display) Warn(format string, args ...any) {
	fmt.Fprintf(d.out, "  %s\n", warnStyle.Render(fmt.Sprintf(format, args...)))
}

// UnitResult prints one patch unit's outcome.
func (d *Display) UnitResult(result patch.UnitResult) {
	marker := okStyle.Render("✓")
	detail := "applied cleanly"
	if result.Status == patch.StatusConflictResolved {
		marker = warnStyle.Render("~")
		detail = "conflict resolved manually"
	}
	fmt.Fprintf(d.out, "  %s %s %s\n", marker, result.Unit.Label(), mutedsty.Render(detail))
}

// Failure prints the fatal error with the stage it occurred in.
func (d *Display) Failure(stage string, err error) {
	label := "run failed"
	if stage != "" {
		label = fmt.Sprintf("run failed in %s", stage)
	}
	fmt.Fprintf(d.out, "\n%s %v\n", failStyle.Render(label+":"), err)
}

// Summary prints the final run summary block.
func (d *Display) Summary(lines []string) {
	capped := make([]string, len(lines))
	for i, line := range lines {
		capped[i] = util.TruncateANSI(line, summaryWidth)
	}
	fmt.Fprintf(d.out, "\n%s\n", summaryBox.Render(strings.Join(capped, "\n")))
}
