// Package config reads the project build file (sepack.toml) and the
// optional per-user defaults file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bamsammich/sepack/internal/platform"
)

// FileName is the project build file looked up by default.
const FileName = "sepack.toml"

// ErrInvalid is returned when a build file fails validation.
var ErrInvalid = errors.New("invalid build config")

// Build is one project build file.
type Build struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`

	// Root is the application directory to scan.
	Root       string   `toml:"root"`
	KeyPrefix  string   `toml:"key_prefix"`
	Include    []string `toml:"include"`
	Exclude    []string `toml:"exclude"`
	IgnoreFile string   `toml:"ignore_file"`
	// MaxAssetSize skips larger files, e.g. "256M".
	MaxAssetSize string `toml:"max_asset_size"`
	// Binaries are extra globs marking files for extraction in addition to
	// native library extensions.
	Binaries []string `toml:"binaries"`

	// Runtime is the executable the container is appended to. Runtimes
	// overrides it per target ("win32-x64" = "...").
	Runtime  string            `toml:"runtime"`
	Runtimes map[string]string `toml:"runtimes"`
	Output   string            `toml:"output"`
	Targets  []string          `toml:"targets"`

	CacheLocation    string `toml:"cache_location"`
	PlatformAgnostic bool   `toml:"platform_agnostic"`
	Compress         *bool  `toml:"compress"`
	Verify           *bool  `toml:"verify"`

	Encryption Encryption    `toml:"encryption"`
	Assets     []InlineAsset `toml:"asset"`

	dir string
}

// Encryption configures asset encryption.
type Encryption struct {
	Enabled *bool    `toml:"enabled"`
	Exclude []string `toml:"exclude"`
	// KeyFile persists the hex key across builds. Generated when missing.
	KeyFile string `toml:"key_file"`
	// KeySource, when set, receives a Go file that registers the key with
	// the bootstrap at init time.
	KeySource  string `toml:"key_source"`
	KeyPackage string `toml:"key_package"`
	// EmbedKey stores the masked key in the container. Defaults to true.
	EmbedKey *bool `toml:"embed_key"`
}

// InlineAsset is an asset declared in the build file rather than found by
// the scan.
type InlineAsset struct {
	Key     string `toml:"key"`
	Content string `toml:"content"`
	Source  string `toml:"source"`
	Binary  bool   `toml:"binary"`
}

// LoadFile reads and validates a build file. Relative paths in it resolve
// against the file's directory. Unknown keys are rejected.
func LoadFile(path string) (*Build, error) {
	var b Build
	md, err := toml.DecodeFile(path, &b)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s: unknown keys %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	b.dir = filepath.Dir(abs)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &b, nil
}

// Validate checks required fields and target names.
func (b *Build) Validate() error {
	switch {
	case b.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case b.Version == "":
		return fmt.Errorf("%w: version is required", ErrInvalid)
	case b.Root == "" && len(b.Assets) == 0:
		return fmt.Errorf("%w: root or at least one [[asset]] is required", ErrInvalid)
	case b.Runtime == "" && len(b.Runtimes) == 0:
		return fmt.Errorf("%w: runtime is required", ErrInvalid)
	case b.Output == "":
		return fmt.Errorf("%w: output is required", ErrInvalid)
	}
	for _, a := range b.Assets {
		if a.Key == "" {
			return fmt.Errorf("%w: [[asset]] without key", ErrInvalid)
		}
	}
	if _, err := b.TargetList(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ApplyDefaults fills settings left unset from d.
func (b *Build) ApplyDefaults(d Defaults) {
	if b.Compress == nil {
		b.Compress = d.Compress
	}
	if b.Verify == nil {
		b.Verify = d.Verify
	}
	if b.Encryption.Enabled == nil {
		b.Encryption.Enabled = d.Encrypt
	}
	if b.CacheLocation == "" && d.CacheLocation != nil {
		b.CacheLocation = *d.CacheLocation
	}
	if len(b.Targets) == 0 {
		b.Targets = slices.Clone(d.Targets)
	}
}

// Resolve makes p absolute relative to the build file.
func (b *Build) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || b.dir == "" {
		return p
	}
	return filepath.Join(b.dir, p)
}

// TargetList parses Targets. No targets means the current host.
func (b *Build) TargetList() ([]platform.Target, error) {
	if len(b.Targets) == 0 {
		return []platform.Target{platform.Current()}, nil
	}
	out := make([]platform.Target, 0, len(b.Targets))
	for _, s := range b.Targets {
		t, err := platform.Parse(s)
		if err != nil {
			return nil, err
		}
		if slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// RuntimeFor returns the runtime executable for t.
func (b *Build) RuntimeFor(t platform.Target) (string, error) {
	if r, ok := b.Runtimes[t.String()]; ok {
		return b.Resolve(r), nil
	}
	if b.Runtime == "" {
		return "", fmt.Errorf("%w: no runtime for %s", ErrInvalid, t)
	}
	return b.Resolve(b.Runtime), nil
}

// OutputFor returns the output path for t. Multi-target builds suffix the
// target name; Windows outputs get .exe.
func (b *Build) OutputFor(t platform.Target, multi bool) string {
	out := b.Resolve(b.Output)
	ext := filepath.Ext(out)
	if ext == ".exe" {
		out = strings.TrimSuffix(out, ext)
	}
	if multi {
		out += "-" + t.String()
	}
	if t.IsWindows() {
		out += ".exe"
	}
	return out
}

// CompressEnabled defaults to true.
func (b *Build) CompressEnabled() bool { return b.Compress == nil || *b.Compress }

// VerifyEnabled defaults to true.
func (b *Build) VerifyEnabled() bool { return b.Verify == nil || *b.Verify }

// EncryptEnabled defaults to false.
func (b *Build) EncryptEnabled() bool {
	return b.Encryption.Enabled != nil && *b.Encryption.Enabled
}

// EmbedKeyEnabled defaults to true.
func (b *Build) EmbedKeyEnabled() bool {
	return b.Encryption.EmbedKey == nil || *b.Encryption.EmbedKey
}
