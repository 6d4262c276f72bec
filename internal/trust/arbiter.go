package trust

import (
	"context"
	"fmt"
	"io"
)

// Decision is the outcome of arbitration for one downloaded file.
type Decision int

const (
	// Reject discards the file; the caller moves on to the next source.
	Reject Decision = iota
	// TrustAndSave accepts the file and records its hash as the new expected value.
	TrustAndSave
	// TrustWithoutSaving accepts the file for this run only.
	TrustWithoutSaving
)

func (d Decision) String() string {
	switch d {
	case Reject:
		return "reject"
	case TrustAndSave:
		return "trust-and-save"
	case TrustWithoutSaving:
		return "trust-without-saving"
	default:
		return "unknown"
	}
}

// Finding describes the file under arbitration.
type Finding struct {
	Source   string // label of the source
	URL      string
	Path     string // local path of the downloaded file
	Expected string // expected hash, empty when unknown
	Actual   string // computed hash
}

// Arbiter turns operator answers into Decisions.
type Arbiter struct {
	decider Decider
	out     io.Writer
}

// NewArbiter creates an arbiter asking through d and printing warnings to out.
// A nil out discards the warnings.
func NewArbiter(d Decider, out io.Writer) *Arbiter {
	if out == nil {
		out = io.Discard
	}
	return &Arbiter{decider: d, out: out}
}

// UnknownHash handles a download whose source has no expected hash.
func (a *Arbiter) UnknownHash(ctx context.Context, f Finding) (Decision, error) {
	fmt.Fprintf(a.out, "⚠ No expected hash for this source: %s\n", f.Source)
	fmt.Fprintf(a.out, "  Computed SHA256: %s\n", f.Actual)
	fmt.Fprintln(a.out, "!! WARNING: This hash is unverified. The file may be tampered with OR be a new upstream release.")

	ok, err := a.decider.Decide(ctx, "Would you like to trust this file and store its hash?")
	if err != nil {
		return Reject, fmt.Errorf("ask about unknown hash: %w", err)
	}
	if ok {
		return TrustAndSave, nil
	}
	return Reject, nil
}

// Mismatch handles a download whose hash differs from the recorded one.
// The operator may accept it once, accept it and record the new hash, or
// reject it.
func (a *Arbiter) Mismatch(ctx context.Context, f Finding) (Decision, error) {
	fmt.Fprintln(a.out, "❌ Hash mismatch!")
	fmt.Fprintf(a.out, "  Source:   %s\n", f.Source)
	fmt.Fprintf(a.out, "  Expected: %s\n", f.Expected)
	fmt.Fprintf(a.out, "  Actual:   %s\n", f.Actual)
	fmt.Fprintln(a.out, "!! WARNING: File may be tampered with OR new upstream release.")

	ok, err := a.decider.Decide(ctx, "Trust this file anyway and continue?")
	if err != nil {
		return Reject, fmt.Errorf("ask about hash mismatch: %w", err)
	}
	if ok {
		return TrustWithoutSaving, nil
	}

	ok, err = a.decider.Decide(ctx, "Update the registry to use the new hash instead?")
	if err != nil {
		return Reject, fmt.Errorf("ask about hash update: %w", err)
	}
	if ok {
		return TrustAndSave, nil
	}
	return Reject, nil
}
