// Package scan collects the assets of an application directory: every
// regular file kept by the include/exclude rules, keyed by its path
// relative to the root, with native binaries marked for extraction.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/bamsammich/sepack/internal/asset"
)

// Options configures Scan.
type Options struct {
	Root      string
	KeyPrefix string // prepended to every key
	Rules     *Rules
	MaxSize   int64 // files larger than this are skipped; 0 disables
	// IsBinary decides which files are extracted at run time. Defaults to
	// asset.IsBinaryName.
	IsBinary func(key string) bool
	// Extra assets are added after the walk and win on key collision.
	Extra  []*asset.Asset
	Logger *slog.Logger
}

// Scan walks opts.Root in lexical order and returns the collected assets.
// Binaries get their hash computed.
func Scan(ctx context.Context, opts Options) (*asset.Set, error) {
	rules := opts.Rules
	if rules == nil {
		rules = NewRules()
	}
	isBinary := opts.IsBinary
	if isBinary == nil {
		isBinary = asset.IsBinaryName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	set := asset.NewSet()
	if opts.Root != "" {
		err := filepath.WalkDir(opts.Root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(opts.Root, p)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if !rules.Match(rel, true) {
					logger.Debug("skip directory", "path", rel)
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !rules.Match(rel, false) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if opts.MaxSize > 0 && info.Size() > opts.MaxSize {
				logger.Warn("skip oversized file", "path", rel, "size", info.Size())
				return nil
			}

			a := &asset.Asset{
				Key:        asset.NormalizeKey(path.Join(opts.KeyPrefix, rel)),
				SourcePath: p,
			}
			a.IsBinary = isBinary(a.Key)
			set.Add(a)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", opts.Root, err)
		}
	}

	for _, a := range opts.Extra {
		a.Key = asset.NormalizeKey(a.Key)
		set.Add(a)
	}

	for _, a := range set.All() {
		if !a.IsBinary {
			continue
		}
		if err := a.ComputeHash(); err != nil {
			return nil, err
		}
	}
	logger.Debug("scan complete", "root", opts.Root, "assets", set.Len())
	return set, nil
}
