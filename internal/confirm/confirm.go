// Package confirm provides the confirmation port the pipeline blocks on:
// the conflict-resolution gate and the audio-integration decision. The
// pipeline never reads the terminal directly; it goes through a Confirmer
// so tests can substitute a scripted responder.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tallgren/regraft/internal/errors"
)

// Confirmer is the interactive decision port.
type Confirmer interface {
	// Confirm asks a yes/no question and blocks until answered.
	// A declined confirmation is not an error; callers translate it.
	Confirm(prompt string) (bool, error)

	// Choose asks the operator to pick one of the labeled options and
	// returns the selected index.
	Choose(prompt string, options []string) (int, error)
}

// TerminalConfirmer reads answers from an interactive terminal.
// Construction fails when stdin is not a TTY: an unattended run that would
// block forever on a prompt instead fails fast during setup.
type TerminalConfirmer struct {
	in  io.Reader
	out io.Writer
}

// NewTerminalConfirmer creates a TerminalConfirmer bound to stdin/stderr.
// Returns ErrNotInteractive when stdin is not a terminal.
func NewTerminalConfirmer() (*TerminalConfirmer, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.ErrNotInteractive
	}
	return &TerminalConfirmer{in: os.Stdin, out: os.Stderr}, nil
}

// newTerminalConfirmerForTest wires arbitrary reader/writer, bypassing the
// TTY check.
func newTerminalConfirmerForTest(in io.Reader, out io.Writer) *TerminalConfirmer {
	return &TerminalConfirmer{in: in, out: out}
}

// Confirm prompts for y/n and blocks until a definitive answer is read.
// There is deliberately no timeout: the workflow is manual-first.
func (c *TerminalConfirmer) Confirm(prompt string) (bool, error) {
	reader := bufio.NewReader(c.in)
	for {
		fmt.Fprintf(c.out, "%s [y/n]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.out, "please answer y or n")
	}
}

// Choose prompts with numbered options and blocks until a valid index is read.
func (c *TerminalConfirmer) Choose(prompt string, options []string) (int, error) {
	reader := bufio.NewReader(c.in)
	for {
		fmt.Fprintln(c.out, prompt)
		for i, opt := range options {
			fmt.Fprintf(c.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprintf(c.out, "choice [1-%d]: ", len(options))

		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("read choice: %w", err)
		}

		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "%d", &n); err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(c.out, "please enter a number between 1 and %d\n", len(options))
	}
}

// Scripted is a Confirmer that returns pre-recorded answers, for tests and
// unattended tooling. It fails rather than blocks when answers run out.
type Scripted struct {
	Answers []bool
	Choices []int

	answerIdx int
	choiceIdx int

	// Prompts records every prompt seen, for assertions.
	Prompts []string
}

// Confirm returns the next scripted yes/no answer.
func (s *Scripted) Confirm(prompt string) (bool, error) {
	s.Prompts = append(s.Prompts, prompt)
	if s.answerIdx >= len(s.Answers) {
		return false, fmt.Errorf("scripted confirmer exhausted after %d answers", len(s.Answers))
	}
	answer := s.Answers[s.answerIdx]
	s.answerIdx++
	return answer, nil
}

// Choose returns the next scripted option index.
func (s *Scripted) Choose(prompt string, options []string) (int, error) {
	s.Prompts = append(s.Prompts, prompt)
	if s.choiceIdx >= len(s.Choices) {
		return 0, fmt.Errorf("scripted confirmer exhausted after %d choices", len(s.Choices))
	}
	choice := s.Choices[s.choiceIdx]
	s.choiceIdx++
	if choice < 0 || choice >= len(options) {
		return 0, fmt.Errorf("scripted choice %d out of range for %d options", choice, len(options))
	}
	return choice, nil
}

var (
	_ Confirmer = (*TerminalConfirmer)(nil)
	_ Confirmer = (*Scripted)(nil)
)
