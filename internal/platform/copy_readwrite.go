package platform

import (
	"io"
	"os"
	"sync"
)

const bufferSize = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// copyReadWrite copies data with a pooled buffer through ordinary reads and
// writes. It works on every platform.
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
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

	bufp := bufPool.Get().(*[]byte) //nolint:errcheck,forcetypeassert // pool only holds *[]byte
	defer bufPool.Put(bufp)

	src := io.NewSectionReader(srcFd, 0, copyLength(params))
	n, err := io.CopyBuffer(dstFd, src, *bufp)
	if err != nil {
		return CopyResult{BytesWritten: n, Method: ReadWrite}, err
	}
	return CopyResult{BytesWritten: n, Method: ReadWrite}, dstFd.Close()
}

// CopyReadWrite is the exported version for use by other packages during testing.
func CopyReadWrite(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}
