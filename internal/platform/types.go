// Package platform identifies the machine a dependency is fetched for and
// derives the registry keys that select its sources.
//
// Linux distribution details come from gopsutil and are informational only:
// registries are keyed by operating system and architecture. The same data
// is visible to Lua registries as the read-only global "platform".
package platform

import "context"

// Info describes a target platform.
type Info struct {
	OS      string // GOOS spelling: "linux", "darwin", "windows"
	Arch    string // normalized: "amd64", "arm64", "386", "arm"
	ArchRaw string // as reported or typed by the user

	// Distro is nil unless the platform was detected on a Linux host
	// and gopsutil recognised the distribution.
	Distro *Distro
}

// Distro is the Linux distribution of a detected host.
type Distro struct {
	ID      string // "ubuntu", "fedora"
	Family  string // "debian", "rhel"; empty when gopsutil reports none
	Version string
}

// System is the registry spelling of the operating system.
func (i *Info) System() string { return SystemName(i.OS) }

// Is reports whether name denotes this platform's operating system or
// architecture. Both GOOS and registry spellings are accepted, as are the
// raw architecture aliases understood by ParseKey.
func (i *Info) Is(name string) bool {
	if name == "" {
		return false
	}
	if SystemName(name) == i.System() {
		return true
	}
	arch, err := normalizeArch(name)
	return err == nil && i.Arch != "" && arch == i.Arch
}

// Detector reports the platform to fetch for.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static always reports the same Info. It backs --platform overrides.
type Static struct {
	Info *Info
}

// Detect returns s.Info.
func (s Static) Detect(context.Context) (*Info, error) {
	return s.Info, nil
}
