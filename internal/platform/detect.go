package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

type hostDetector struct{}

// NewDetector returns a Detector for the running host.
func NewDetector() Detector {
	return hostDetector{}
}

func (hostDetector) Detect(ctx context.Context) (*Info, error) {
	return detect(ctx, runtime.GOOS, runtime.GOARCH)
}

func detect(ctx context.Context, goos, goarch string) (*Info, error) {
	arch, err := normalizeArch(goarch)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}
	info := &Info{OS: goos, Arch: arch, ArchRaw: goarch}
	if goos != "linux" {
		return info, nil
	}

	id, family, version, err := host.PlatformInformationWithContext(ctx)
	switch {
	case ctx.Err() != nil:
		return nil, fmt.Errorf("detect platform: %w", ctx.Err())
	case err != nil:
		// Keys never depend on the distribution.
		return info, nil
	}
	info.Distro = newDistro(id, family, version)
	return info, nil
}
