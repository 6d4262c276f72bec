package acquire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/archive"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
	"github.com/ZebulonRouseFrantzich/depfetch/internal/verify"
)

var (
	ErrUnsupportedPlatform = registry.ErrUnsupportedPlatform
	ErrUnsupportedFormat   = archive.ErrUnsupportedFormat
	ErrIO                  = verify.ErrIO
	ErrExtraction          = archive.ErrExtraction

	// ErrNetwork marks download failures.
	ErrNetwork = errors.New("network error")
	// ErrRejected marks a download the trust arbiter refused.
	ErrRejected = errors.New("file rejected")
	// ErrAllSourcesFailed is matched by *AllSourcesFailedError.
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrLocked is returned when another acquisition holds the destination.
	ErrLocked = errors.New("destination is locked: another acquisition may be in progress")
)

// SourceFailure records why one source was skipped.
type SourceFailure struct {
	Source string
	URL    string
	Err    error
}

// AllSourcesFailedError is returned when no source could be installed.
type AllSourcesFailedError struct {
	Platform string
	Failures []SourceFailure
}

func (e *AllSourcesFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d sources for %s failed", len(e.Failures), e.Platform)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  - %s (%s): %v", f.Source, f.URL, f.Err)
	}
	return b.String()
}

func (e *AllSourcesFailedError) Is(target error) bool {
	return target == ErrAllSourcesFailed
}

// skipError wraps a failure that moves the orchestrator on to the next source.
type skipError struct {
	err error
}

func (e *skipError) Error() string { return e.err.Error() }
func (e *skipError) Unwrap() error { return e.err }

func skip(err error) error {
	return &skipError{err: err}
}
