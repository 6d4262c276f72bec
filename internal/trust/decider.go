// Package trust decides whether an unverified or mismatching artifact is
// accepted. It asks questions through a Decider and never touches the
// registry; persisting a trusted hash is the caller's job.
package trust

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoAnswer is returned when the input closes before a valid answer.
var ErrNoAnswer = errors.New("no answer from operator")

// Decider answers yes/no questions.
type Decider interface {
	Decide(ctx context.Context, question string) (bool, error)
}

// Prompter asks questions on a line-oriented terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Decide prints "question [y/n]: " until the operator answers y, yes, n or no.
func (p *Prompter) Decide(ctx context.Context, question string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		fmt.Fprintf(p.out, "%s [y/n]: ", question)

		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return false, ErrNoAnswer
		}
		fmt.Fprintln(p.out, "Please answer 'y' or 'n'.")
	}
}

// Fixed answers every question the same way.
type Fixed bool

const (
	// AlwaysTrust accepts every file.
	AlwaysTrust Fixed = true
	// AlwaysReject refuses every file that cannot be verified.
	AlwaysReject Fixed = false
)

func (f Fixed) Decide(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(f), nil
}

// Interactive reports whether f is attached to a terminal.
func Interactive(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
