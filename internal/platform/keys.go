package platform

import (
	"fmt"
	"strings"
)

// Keys returns the registry keys for this platform, most specific first:
// "<System>/<arch>" then "<System>".
func (i *Info) Keys() []string {
	system := SystemName(i.OS)
	if system == "" {
		return nil
	}
	if i.Arch == "" {
		return []string{system}
	}
	return []string{system + "/" + i.Arch, system}
}

// ParseKey turns a user-supplied platform ("linux", "Linux/arm64",
// "darwin-arm64") into Info. The architecture part is optional.
func ParseKey(key string) (*Info, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("empty platform")
	}
	sep := strings.IndexAny(key, "/-")

	osPart, archPart := key, ""
	if sep >= 0 {
		osPart, archPart = key[:sep], key[sep+1:]
	}

	info := &Info{OS: strings.ToLower(osPart)}
	if archPart != "" {
		arch, err := normalizeArch(archPart)
		if err != nil {
			return nil, err
		}
		info.Arch = arch
		info.ArchRaw = archPart
	}
	return info, nil
}
