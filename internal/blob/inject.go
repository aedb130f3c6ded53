package blob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bamsammich/sepack/internal/platform"
)

// InjectResult reports what Inject wrote.
type InjectResult struct {
	RuntimeBytes int64
	BlobBytes    int64
	Stripped     bool // a previous container was removed from the runtime
	Method       platform.CopyMethod
}

// Inject writes runtime + container to outPath. Any container already
// appended to the runtime is dropped first, so repacking a packaged
// executable replaces its assets instead of stacking them. The output is
// written to a temporary sibling and renamed into place.
func Inject(runtimePath string, container []byte, outPath string) (InjectResult, error) {
	info, err := os.Stat(runtimePath)
	if err != nil {
		return InjectResult{}, fmt.Errorf("runtime: %w", err)
	}

	res := InjectResult{RuntimeBytes: info.Size()}
	if rd, err := OpenFile(runtimePath); err == nil {
		res.RuntimeBytes = rd.Offset()
		res.Stripped = true
		rd.Close()
	} else if !errors.Is(err, ErrNoBlob) {
		return InjectResult{}, fmt.Errorf("runtime: %w", err)
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return InjectResult{}, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.sepack-tmp", filepath.Base(outPath), uuid.New().String()[:8]))
	defer os.Remove(tmpPath) // no-op if rename succeeded

	cr, err := platform.CopyFile(platform.CopyFileParams{
		SrcPath: runtimePath,
		DstPath: tmpPath,
		SrcSize: info.Size(),
		Length:  res.RuntimeBytes,
		Mode:    0o755,
	})
	if err != nil {
		return InjectResult{}, fmt.Errorf("copy runtime %s: %w", runtimePath, err)
	}
	res.Method = cr.Method

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return InjectResult{}, fmt.Errorf("open %s: %w", tmpPath, err)
	}
	n, err := f.Write(container)
	if err != nil {
		f.Close()
		return InjectResult{}, fmt.Errorf("append container: %w", err)
	}
	if err := f.Close(); err != nil {
		return InjectResult{}, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	res.BlobBytes = int64(n)

	if err := platform.MarkExecutable(tmpPath); err != nil {
		return InjectResult{}, err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return InjectResult{}, fmt.Errorf("rename %s: %w", outPath, err)
	}
	return res, nil
}
