package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/platform"
)

// ErrMissingHash is returned by Build when a binary asset has no hash.
var ErrMissingHash = errors.New("binary asset has no hash")

// Extraction precedence. Shared libraries land on disk before the addons
// that link against them.
const (
	OrderSharedLibrary = 10
	OrderAddon         = 20
	orderFallbackBase  = 100
)

// Option configures Build.
type Option func(*buildConfig)

type buildConfig struct {
	cacheLocation string
	agnostic      bool
}

// WithCacheLocation records an operator-configured cache root. The value may
// contain environment-variable placeholders expanded at run time.
func WithCacheLocation(loc string) Option {
	return func(c *buildConfig) {
		c.cacheLocation = loc
	}
}

// WithPlatformAgnostic marks every binary entry as valid on any host.
func WithPlatformAgnostic() Option {
	return func(c *buildConfig) {
		c.agnostic = true
	}
}

// Build converts assets into a Manifest for target. It performs no I/O and is
// deterministic for identical input order.
func Build(app, version string, assets []*asset.Asset, target platform.Target, opts ...Option) (*Manifest, error) {
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manifest{
		AppName:       app,
		AppVersion:    version,
		Platform:      target.Platform,
		Arch:          target.Arch,
		Binaries:      []BinaryEntry{},
		AllAssetKeys:  make([]string, 0, len(assets)),
		CacheLocation: cfg.cacheLocation,
	}

	entryPlatform, entryArch := target.Platform, target.Arch
	if cfg.agnostic {
		entryPlatform, entryArch = Any, Any
	}

	placed := make(map[string]struct{})
	for i, a := range assets {
		m.AllAssetKeys = append(m.AllAssetKeys, a.Key)
		if !a.IsBinary {
			continue
		}
		if a.Hash == "" {
			return nil, fmt.Errorf("%s: %w", a.Key, ErrMissingHash)
		}
		m.Binaries = append(m.Binaries, BinaryEntry{
			AssetKey: a.Key,
			FileName: placement(a, placed),
			Platform: entryPlatform,
			Arch:     entryArch,
			Order:    orderFor(a.Key, i),
			Hash:     a.Hash,
		})
	}

	sort.SliceStable(m.Binaries, func(i, j int) bool {
		return m.Binaries[i].Order < m.Binaries[j].Order
	})
	return m, nil
}

// placement returns the cache-relative file name of a. The first binary
// with a given basename keeps it; later ones with the same basename go into
// a subdirectory named after their key so neither overwrites the other.
// Names compare case-insensitively for Windows and macOS file systems.
func placement(a *asset.Asset, placed map[string]struct{}) string {
	name := a.FileName()
	if _, taken := placed[strings.ToLower(name)]; taken {
		name = asset.HashBytes([]byte(a.Key))[:8] + "/" + name
	}
	placed[strings.ToLower(name)] = struct{}{}
	return name
}

// orderFor assigns extraction precedence by extension. Only the relative
// order of shared libraries and addons is meaningful.
func orderFor(key string, pos int) int {
	switch asset.KindOf(key) {
	case asset.SharedLibrary:
		return OrderSharedLibrary
	case asset.Addon:
		return OrderAddon
	default:
		return orderFallbackBase + pos
	}
}
