package acquire

import (
	"time"

	"github.com/ZebulonRouseFrantzich/depfetch/internal/registry"
)

// Acceptance records how the installed artifact was accepted.
type Acceptance int

const (
	// AcceptedExtracted means the extracted tree was already present.
	AcceptedExtracted Acceptance = iota
	// AcceptedCached means a cached archive matched its recorded hash.
	AcceptedCached
	// AcceptedHash means a fresh download matched its recorded hash.
	AcceptedHash
	// AcceptedTrustOnFirstUse means the operator trusted a source with no hash.
	AcceptedTrustOnFirstUse
	// AcceptedOverride means a mismatching download was accepted for this run only.
	AcceptedOverride
	// AcceptedUpdatedHash means a mismatching download was accepted and its hash recorded.
	AcceptedUpdatedHash
	// AcceptedUnchecked means hash checking was disabled and the digest did not match.
	AcceptedUnchecked
)

func (a Acceptance) String() string {
	switch a {
	case AcceptedExtracted:
		return "already-extracted"
	case AcceptedCached:
		return "cached"
	case AcceptedHash:
		return "hash-match"
	case AcceptedTrustOnFirstUse:
		return "trust-on-first-use"
	case AcceptedOverride:
		return "override"
	case AcceptedUpdatedHash:
		return "updated-hash"
	case AcceptedUnchecked:
		return "unchecked"
	default:
		return "unknown"
	}
}

// AcquireResult contains information about a completed acquisition
type AcquireResult struct {
	RunID       string
	Platform    string // registry key that matched
	Source      *registry.Source
	Destination string // absolute destination directory
	Archive     string // path of the cached archive
	Extracted   string // path of the extracted top-level entry
	Accepted    Acceptance
	Elapsed     time.Duration
}

// cacheState is derived from the filesystem on every call and never stored.
type cacheState struct {
	ArchivePresent   bool
	ExtractedDir     string
	ExtractedPresent bool
}
