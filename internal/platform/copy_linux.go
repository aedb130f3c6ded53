//go:build linux

package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// CopyFile tries the most efficient copy method available on Linux,
// falling through on unsupported/cross-device errors.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	// Try copy_file_range first.
	result, err := kernelCopy(params, CopyFileRange)
	if err == nil {
		return result, nil
	}
	if !isFallbackErr(err) {
		return result, err
	}

	// Try sendfile.
	result, err = kernelCopy(params, Sendfile)
	if err == nil {
		return result, nil
	}
	if !isFallbackErr(err) {
		return result, err
	}

	// Fall back to read/write.
	return copyReadWrite(params)
}

func kernelCopy(params CopyFileParams, method CopyMethod) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	dstFd, err := createDst(params)
	if err != nil {
		return CopyResult{}, err
	}
	defer dstFd.Close()

	size := copyLength(params)
	if size > 0 {
		//nolint:errcheck // fallocate is advisory; not supported on all filesystems
		unix.Fallocate(int(dstFd.Fd()), 0, 0, size) //nolint:gosec // G115: fd values are small non-negative integers
	}

	remaining := size
	var roff, woff int64
	var totalWritten int64
	for remaining > 0 {
		var n int
		switch method {
		case CopyFileRange:
			n, err = unix.CopyFileRange(int(srcFd.Fd()), &roff, int(dstFd.Fd()), &woff, int(remaining), 0) //nolint:gosec // G115
		default:
			n, err = unix.Sendfile(int(dstFd.Fd()), int(srcFd.Fd()), &roff, int(remaining)) //nolint:gosec // G115
		}
		if err != nil {
			return CopyResult{BytesWritten: totalWritten, Method: method}, err
		}
		if n == 0 {
			break
		}
		remaining -= int64(n)
		totalWritten += int64(n)
	}

	// Fallocate may have extended the file past what was copied.
	if err := dstFd.Truncate(totalWritten); err != nil {
		return CopyResult{BytesWritten: totalWritten, Method: method}, err
	}
	return CopyResult{BytesWritten: totalWritten, Method: method}, dstFd.Close()
}

// isFallbackErr returns true if err should trigger a fallback to the next copy strategy.
func isFallbackErr(err error) bool {
	for _, e := range []error{unix.ENOSYS, unix.EXDEV, unix.EINVAL, unix.ENOTSUP} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
