//go:build windows

package platform

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// LoadLibrary loads the DLL at path into the process.
func LoadLibrary(path string) (*Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Library{Path: path, handle: uintptr(dll.Handle)}, nil
}

// PrependLibraryPath puts dir first on the DLL search path so the OS loader
// can resolve dependent libraries of extracted addons.
func PrependLibraryPath(dir string) error {
	cur := os.Getenv("PATH")
	if !containsPath(cur, dir, ";") {
		if err := os.Setenv("PATH", dir+";"+cur); err != nil {
			return fmt.Errorf("set PATH: %w", err)
		}
	}
	if err := windows.SetDllDirectory(dir); err != nil {
		return fmt.Errorf("set dll directory %s: %w", dir, err)
	}
	return nil
}

// MarkExecutable is a no-op on Windows.
func MarkExecutable(string) error { return nil }

func containsPath(list, dir, sep string) bool {
	for _, p := range strings.Split(list, sep) {
		if strings.EqualFold(p, dir) {
			return true
		}
	}
	return false
}
