package asset

import (
	"path"
	"regexp"
	"strings"
)

// Kind classifies binary assets by how they are loaded.
type Kind int

const (
	Other         Kind = iota
	SharedLibrary      // .dll, .so, .so.N, .dylib
	Addon              // .node
)

func (k Kind) String() string {
	switch k {
	case SharedLibrary:
		return "shared_library"
	case Addon:
		return "addon"
	default:
		return "other"
	}
}

var versionedSO = regexp.MustCompile(`\.so(\.\d+)+$`)

// KindOf classifies a file name by extension.
func KindOf(name string) Kind {
	name = strings.ToLower(path.Base(strings.ReplaceAll(name, `\`, "/")))
	switch {
	case strings.HasSuffix(name, ".node"):
		return Addon
	case strings.HasSuffix(name, ".dll"),
		strings.HasSuffix(name, ".so"),
		strings.HasSuffix(name, ".dylib"),
		versionedSO.MatchString(name):
		return SharedLibrary
	default:
		return Other
	}
}

// IsBinaryName reports whether a file name denotes a native binary that
// must be extracted before it can be loaded.
func IsBinaryName(name string) bool {
	return KindOf(name) != Other
}
