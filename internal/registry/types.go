// Package registry loads and persists the platform-keyed table of download
// sources.
//
// A registry file maps a platform name ("Windows", "Linux", "Darwin", or an
// arch-qualified key such as "Linux/arm64") to an ordered list of sources.
// Order is priority: callers try entries first to last. The file stays human
// editable; the supported encodings are chosen by extension:
//
//	.json        the original ffmpeg_source.json layout
//	.toml        arrays of tables per platform
//	.yaml, .yml  a mapping of platform to list
//	.lua         a sandboxed script assigning the global "sources" table
//
// The registry is the only writer of expected hashes. Every change rewrites
// the whole file by atomic replace (temp file in the same directory, fsync,
// rename), so a reader never observes a partially written table.
package registry

import (
	"fmt"
	"strings"
)

// Source is one candidate location for an artifact.
type Source struct {
	// URL of the remote archive. Required.
	URL string `json:"url" toml:"url" yaml:"url"`
	// SHA256 is the expected hex digest. Empty means unknown.
	SHA256 string `json:"sha256" toml:"sha256" yaml:"sha256"`
	// Description is a human label; Label falls back to URL.
	Description string `json:"desc,omitempty" toml:"desc,omitempty" yaml:"desc,omitempty"`
	// Signature is an optional URL of a detached OpenPGP signature.
	Signature string `json:"sig,omitempty" toml:"sig,omitempty" yaml:"sig,omitempty"`
}

// Label returns the description, or the URL when none is set.
func (s *Source) Label() string {
	if strings.TrimSpace(s.Description) != "" {
		return s.Description
	}
	return s.URL
}

// HasHash reports whether an expected hash is recorded.
func (s *Source) HasHash() bool {
	return strings.TrimSpace(s.SHA256) != ""
}

// Table maps platform names to ordered source lists.
type Table map[string][]*Source

// normalize trims whitespace in every field.
func (t Table) normalize() {
	for _, sources := range t {
		for _, src := range sources {
			if src == nil {
				continue
			}
			src.URL = strings.TrimSpace(src.URL)
			src.SHA256 = strings.TrimSpace(src.SHA256)
			src.Description = strings.TrimSpace(src.Description)
			src.Signature = strings.TrimSpace(src.Signature)
		}
	}
}

// Validate checks that every platform has at least one source and that every
// source has a URL.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("registry defines no platforms")
	}

	for platform, sources := range t {
		if strings.TrimSpace(platform) == "" {
			return fmt.Errorf("registry has an empty platform name")
		}
		if len(sources) == 0 {
			return fmt.Errorf("platform %q has no sources", platform)
		}
		for i, src := range sources {
			if src == nil {
				return fmt.Errorf("platform %q source #%d is empty", platform, i+1)
			}
			if src.URL == "" {
				return fmt.Errorf("platform %q source #%d: url is required", platform, i+1)
			}
		}
	}

	return nil
}
