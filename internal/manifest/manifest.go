// Package manifest builds and parses the extraction plan embedded in every
// packaged executable.
//
// The manifest is produced once per target platform/arch at packaging time,
// stored as a plaintext asset under Key, and read by the bootstrap before any
// decryption key is available.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Key is the reserved asset key the manifest is stored under. It is never
// encrypted.
const Key = "sepack/manifest.json"

// Any matches every platform or arch.
const Any = "*"

// ErrInvalid is returned when a manifest fails validation.
var ErrInvalid = errors.New("invalid manifest")

// Manifest is the single source of truth read once at startup.
type Manifest struct {
	AppName       string        `json:"appName"       yaml:"appName"`
	AppVersion    string        `json:"appVersion"    yaml:"appVersion"`
	Platform      string        `json:"platform"      yaml:"platform"`
	Arch          string        `json:"arch"          yaml:"arch"`
	Binaries      []BinaryEntry `json:"binaries"      yaml:"binaries"`
	AllAssetKeys  []string      `json:"allAssetKeys"  yaml:"allAssetKeys"`
	CacheLocation string        `json:"cacheLocation,omitempty" yaml:"cacheLocation,omitempty"`
}

// BinaryEntry is one step of the extraction plan.
type BinaryEntry struct {
	AssetKey string `json:"assetKey" yaml:"assetKey"`
	FileName string `json:"fileName" yaml:"fileName"`
	Platform string `json:"platform" yaml:"platform"`
	Arch     string `json:"arch"     yaml:"arch"`
	Order    int    `json:"order"    yaml:"order"`
	Hash     string `json:"hash"     yaml:"hash"`
}

// Base returns the on-disk basename of the extracted binary.
func (e BinaryEntry) Base() string { return path.Base(e.FileName) }

// overlaps reports whether e and o can both apply to one host.
func (e BinaryEntry) overlaps(o BinaryEntry) bool {
	return (e.Platform == Any || o.Platform == Any || e.Platform == o.Platform) &&
		(e.Arch == Any || o.Arch == Any || e.Arch == o.Arch)
}

// Matches reports whether the entry applies to the given host.
func (e BinaryEntry) Matches(platform, arch string) bool {
	return (e.Platform == Any || e.Platform == platform) &&
		(e.Arch == Any || e.Arch == arch)
}

// ForHost returns the binaries applicable to platform/arch, in manifest order.
func (m *Manifest) ForHost(platform, arch string) []BinaryEntry {
	out := make([]BinaryEntry, 0, len(m.Binaries))
	for _, e := range m.Binaries {
		if e.Matches(platform, arch) {
			out = append(out, e)
		}
	}
	return out
}

// Marshal encodes m as indented JSON.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the fields the bootstrap depends on.
func (m *Manifest) Validate() error {
	if m.AppName == "" {
		return fmt.Errorf("%w: appName is empty", ErrInvalid)
	}
	if m.AppVersion == "" {
		return fmt.Errorf("%w: appVersion is empty", ErrInvalid)
	}
	if m.Platform == "" || m.Arch == "" {
		return fmt.Errorf("%w: platform/arch is empty", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(m.Binaries))
	prev := 0
	for i, e := range m.Binaries {
		switch {
		case e.AssetKey == "":
			return fmt.Errorf("%w: binaries[%d] has no assetKey", ErrInvalid, i)
		case e.FileName == "":
			return fmt.Errorf("%w: binary %s has no fileName", ErrInvalid, e.AssetKey)
		case e.Hash == "":
			return fmt.Errorf("%w: binary %s has no hash", ErrInvalid, e.AssetKey)
		case e.Platform == "" || e.Arch == "":
			return fmt.Errorf("%w: binary %s has no platform/arch", ErrInvalid, e.AssetKey)
		}
		if !validFileName(e.FileName) {
			return fmt.Errorf("%w: binary %s has unsafe fileName %q", ErrInvalid, e.AssetKey, e.FileName)
		}
		if i > 0 && e.Order < prev {
			return fmt.Errorf("%w: binary %s is out of order", ErrInvalid, e.AssetKey)
		}
		if _, dup := seen[e.AssetKey]; dup {
			return fmt.Errorf("%w: binary %s listed twice", ErrInvalid, e.AssetKey)
		}
		seen[e.AssetKey] = struct{}{}
		prev = e.Order
	}
	return m.checkPlacement()
}

// checkPlacement rejects two entries that would extract to the same cache
// file on some host.
func (m *Manifest) checkPlacement() error {
	byName := make(map[string][]BinaryEntry, len(m.Binaries))
	for _, e := range m.Binaries {
		name := strings.ToLower(e.FileName)
		for _, o := range byName[name] {
			if e.overlaps(o) {
				return fmt.Errorf("%w: binaries %s and %s both extract to %s",
					ErrInvalid, o.AssetKey, e.AssetKey, e.FileName)
			}
		}
		byName[name] = append(byName[name], e)
	}
	return nil
}

// validFileName accepts a relative slash path that stays inside the cache
// directory.
func validFileName(name string) bool {
	if strings.ContainsRune(name, '\\') || path.IsAbs(name) || path.Clean(name) != name {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return false
		}
	}
	return true
}
