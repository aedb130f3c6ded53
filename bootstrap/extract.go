package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/cachedir"
	"github.com/bamsammich/sepack/internal/event"
	"github.com/bamsammich/sepack/internal/manifest"
	"github.com/bamsammich/sepack/internal/platform"
	"github.com/bamsammich/sepack/internal/stats"
)

// Binary is one materialized manifest entry.
type Binary struct {
	Entry   manifest.BinaryEntry
	Path    string
	Written bool // false when a valid cached copy was reused
}

// Extraction holds the lookup tables built while materializing binaries.
type Extraction struct {
	Dir      string
	Binaries []Binary

	byBase map[string]string
	byStem map[string]string
}

// ByBase returns the extracted path of the binary with file name base.
func (x *Extraction) ByBase(base string) (string, bool) {
	p, ok := x.byBase[base]
	return p, ok
}

// ByStem returns the extracted path of the binary whose key without its
// extension is stem.
func (x *Extraction) ByStem(stem string) (string, bool) {
	p, ok := x.byStem[stem]
	return p, ok
}

type extractor struct {
	host     Host
	platform string
	logger   *slog.Logger
	events   chan<- event.Event
	stats    *stats.Collector
}

// run materializes entries into dir in order. It stops at the first failure;
// entries already on disk stay valid for the next run.
func (x *extractor) run(entries []manifest.BinaryEntry, dir string) (*Extraction, error) {
	out := &Extraction{
		Dir:      dir,
		Binaries: make([]Binary, 0, len(entries)),
		byBase:   make(map[string]string, len(entries)),
		byStem:   make(map[string]string, len(entries)),
	}
	x.stats.AddBinariesPlanned(int64(len(entries)))
	event.Emit(x.events, event.Event{Type: event.ExtractStarted, Path: dir, Total: len(entries)})

	for _, e := range entries {
		b, err := x.one(e, dir)
		if err != nil {
			x.stats.AddBinariesFailed(1)
			event.Emit(x.events, event.Event{Type: event.BinaryFailed, Key: e.AssetKey, Path: b.Path, Error: err})
			return nil, err
		}
		out.Binaries = append(out.Binaries, b)
		if _, taken := out.byBase[e.Base()]; !taken {
			out.byBase[e.Base()] = b.Path
		}
		out.byStem[stripExt(e.AssetKey)] = b.Path
	}
	return out, nil
}

func (x *extractor) one(e manifest.BinaryEntry, dir string) (Binary, error) {
	b := Binary{Entry: e, Path: cachedir.File(dir, e.FileName, x.platform)}

	if h, err := asset.HashFile(b.Path); err == nil && h == e.Hash {
		x.logger.Debug("binary cached", "key", e.AssetKey, "path", b.Path)
		x.stats.AddBinariesSkipped(1)
		event.Emit(x.events, event.Event{Type: event.BinarySkipped, Key: e.AssetKey, Path: b.Path})
		return b, nil
	}

	data, err := x.host.RawAsset(e.AssetKey)
	if err != nil {
		return b, fmt.Errorf("%w: %s: %w", ErrMissingAsset, e.AssetKey, err)
	}
	if got := asset.HashBytes(data); got != e.Hash {
		return b, fmt.Errorf("%w: %s: manifest %s, payload %s", ErrHashMismatch, e.AssetKey, e.Hash, got)
	}

	parent := dir
	if sub := path.Dir(e.FileName); sub != "." {
		parent = cachedir.File(dir, sub, x.platform)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return b, fmt.Errorf("create cache directory %s: %w", parent, err)
	}
	if err := x.write(b.Path, parent, e.Base(), data); err != nil {
		return b, err
	}

	b.Written = true
	x.logger.Debug("binary extracted", "key", e.AssetKey, "path", b.Path, "size", len(data))
	x.stats.AddBinariesExtracted(1)
	x.stats.AddBytesWritten(int64(len(data)))
	event.Emit(x.events, event.Event{Type: event.BinaryExtracted, Key: e.AssetKey, Path: b.Path, Size: int64(len(data))})
	return b, nil
}

// write stores data at dst through a temp file in dst's directory so a
// concurrent reader never sees a partial binary.
func (x *extractor) write(dst, parent, base string, data []byte) error {
	tmp := cachedir.File(parent, "."+base+"."+uuid.NewString()+".tmp", x.platform)
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // G306: extracted libraries must be loadable
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := platform.MarkExecutable(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}

// stripExt removes the binary extension of name, including versioned .so
// suffixes.
func stripExt(name string) string {
	base := path.Base(name)
	if i := strings.Index(base, ".so."); i > 0 {
		return strings.TrimSuffix(name, base) + base[:i]
	}
	return strings.TrimSuffix(name, path.Ext(base))
}
