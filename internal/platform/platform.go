// Package platform wraps the OS-specific pieces of packaging and bootstrap:
// target naming, copying runtime executables, marking files executable, and
// loading native libraries.
package platform

import "os"

// CopyMethod identifies which syscall/strategy was used for a copy.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
	Clonefile                // macOS clonefile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	case Clonefile:
		return "clonefile"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes what to copy: the first Length bytes of SrcPath
// into a new file at DstPath. Length 0 copies the whole source.
type CopyFileParams struct {
	SrcPath string
	DstPath string
	SrcSize int64
	Length  int64
	Mode    os.FileMode
}

func (p CopyFileParams) mode() os.FileMode {
	if p.Mode == 0 {
		return 0o644
	}
	return p.Mode.Perm()
}

func createDst(params CopyFileParams) (*os.File, error) {
	return os.OpenFile(params.DstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, params.mode())
}

// copyLength returns the effective byte count to copy.
func copyLength(params CopyFileParams) int64 {
	if params.Length > 0 {
		return params.Length
	}
	return params.SrcSize
}
