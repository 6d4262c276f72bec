package platform

import (
	"fmt"
	"strings"
)

var archAliases = map[string]string{
	"amd64": "amd64", "x86_64": "amd64", "x64": "amd64",
	"arm64": "arm64", "aarch64": "arm64",
	"386": "386", "i386": "386", "i686": "386", "x86": "386",
	"arm": "arm", "armv7": "arm", "armv7l": "arm",
}

// registry spellings that plain capitalization gets wrong
var systemSpellings = map[string]string{
	"darwin":  "Darwin",
	"freebsd": "FreeBSD",
	"openbsd": "OpenBSD",
	"netbsd":  "NetBSD",
}

func normalizeArch(arch string) (string, error) {
	if norm, ok := archAliases[strings.ToLower(strings.TrimSpace(arch))]; ok {
		return norm, nil
	}
	return "", fmt.Errorf("unsupported architecture %q", arch)
}

// newDistro returns nil when gopsutil could not name the distribution.
func newDistro(id, family, version string) *Distro {
	clean := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	if clean(id) == "" {
		return nil
	}
	return &Distro{ID: clean(id), Family: clean(family), Version: strings.TrimSpace(version)}
}

// SystemName returns the registry spelling of an operating system name,
// so "linux" and "LINUX" both become "Linux".
func SystemName(goos string) string {
	goos = strings.ToLower(strings.TrimSpace(goos))
	if goos == "" {
		return ""
	}
	if name, ok := systemSpellings[goos]; ok {
		return name
	}
	return strings.ToUpper(goos[:1]) + goos[1:]
}
