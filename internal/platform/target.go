package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Target identifies a build or host platform using the runtime's naming
// ("win32", "darwin", "linux"; "x64", "arm64", "ia32", "arm").
type Target struct {
	Platform string
	Arch     string
}

func (t Target) String() string {
	return t.Platform + "-" + t.Arch
}

// IsWindows reports whether t names a Windows platform.
func (t Target) IsWindows() bool {
	return t.Platform == "win32"
}

// Current returns the target of the running process.
func Current() Target {
	return Normalize(runtime.GOOS, runtime.GOARCH)
}

// Normalize maps Go's GOOS/GOARCH names onto target names. Unknown values
// pass through unchanged.
func Normalize(goos, goarch string) Target {
	t := Target{Platform: goos, Arch: goarch}
	if goos == "windows" {
		t.Platform = "win32"
	}
	switch goarch {
	case "amd64":
		t.Arch = "x64"
	case "386":
		t.Arch = "ia32"
	}
	return t
}

// Parse reads a "platform-arch" string such as "linux-x64" or "windows-amd64".
func Parse(s string) (Target, error) {
	plat, arch, ok := strings.Cut(s, "-")
	if !ok || plat == "" || arch == "" {
		return Target{}, fmt.Errorf("invalid target %q (want platform-arch)", s)
	}
	return Normalize(plat, arch), nil
}
