//go:build !windows

package platform

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// LoadLibrary validates that the library at path is present and readable.
// Mapping it into the process requires dlopen, which is only reachable
// through cgo; callers that link a loader use the returned path.
func LoadLibrary(path string) (*Library, error) {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Library{Path: path}, nil
}

// PrependLibraryPath puts dir first on the dynamic loader search path of
// child processes and later dlopen calls.
func PrependLibraryPath(dir string) error {
	name := "LD_LIBRARY_PATH"
	if runtime.GOOS == "darwin" {
		name = "DYLD_LIBRARY_PATH"
	}
	cur := os.Getenv(name)
	for _, p := range strings.Split(cur, ":") {
		if p == dir {
			return nil
		}
	}
	val := dir
	if cur != "" {
		val = dir + ":" + cur
	}
	if err := os.Setenv(name, val); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// MarkExecutable sets the executable bits on path.
func MarkExecutable(path string) error {
	if err := unix.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
