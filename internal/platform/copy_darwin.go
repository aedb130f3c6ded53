//go:build darwin

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// CopyFile tries clonefile first (for whole-file CoW copies), then falls back
// to read/write on macOS.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	if params.Length == 0 || params.Length == params.SrcSize {
		_ = os.Remove(params.DstPath) // clonefile refuses to overwrite
		err := unix.Clonefile(params.SrcPath, params.DstPath, 0)
		if err == nil {
			if err := os.Chmod(params.DstPath, params.mode()); err != nil {
				return CopyResult{}, err
			}
			return CopyResult{BytesWritten: params.SrcSize, Method: Clonefile}, nil
		}
		if !isFallbackCloneErr(err) {
			return CopyResult{}, err
		}
	}
	return copyReadWrite(params)
}

func isFallbackCloneErr(err error) bool {
	switch err {
	case unix.ENOTSUP, unix.EXDEV, unix.EEXIST:
		return true
	}
	return false
}
