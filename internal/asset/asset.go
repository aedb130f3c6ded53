// Package asset describes the units that get embedded into a packaged
// executable: file-backed or inline payloads addressed by a logical key.
package asset

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
)

// ErrNoContent is returned when an asset has neither inline content nor a
// source path.
var ErrNoContent = errors.New("asset has no content or source path")

// Asset is one embeddable unit.
type Asset struct {
	// Key is the forward-slash logical path used as the lookup key everywhere.
	Key string
	// SourcePath is the on-disk origin. Empty for synthetic assets.
	SourcePath string
	// Content overrides SourcePath when non-nil.
	Content []byte
	// IsBinary marks assets that must be extracted to a real path before use.
	IsBinary bool
	// Hash is the hex SHA-256 of the plaintext. Required for binaries.
	Hash string
}

// Bytes returns the plaintext payload.
func (a *Asset) Bytes() ([]byte, error) {
	if a.Content != nil {
		return a.Content, nil
	}
	if a.SourcePath == "" {
		return nil, fmt.Errorf("%s: %w", a.Key, ErrNoContent)
	}
	data, err := os.ReadFile(a.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", a.Key, err)
	}
	return data, nil
}

// ComputeHash fills Hash from the plaintext if it is not already set.
func (a *Asset) ComputeHash() error {
	if a.Hash != "" {
		return nil
	}
	if a.Content != nil {
		a.Hash = HashBytes(a.Content)
		return nil
	}
	if a.SourcePath == "" {
		return fmt.Errorf("%s: %w", a.Key, ErrNoContent)
	}
	h, err := HashFile(a.SourcePath)
	if err != nil {
		return err
	}
	a.Hash = h
	return nil
}

// FileName is the extraction-time basename of the asset.
func (a *Asset) FileName() string {
	return path.Base(a.Key)
}

// NormalizeKey converts p into the canonical key form: forward slashes, no
// leading "./" or "/", no "." or ".." segments where they can be cleaned.
func NormalizeKey(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	if p == "." {
		return ""
	}
	return p
}

// Set is an ordered collection of assets keyed by Key. Adding an asset with
// an existing key replaces it in place (last writer wins).
type Set struct {
	items []*Asset
	index map[string]int
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add inserts a, normalizing its key.
func (s *Set) Add(a *Asset) {
	a.Key = NormalizeKey(a.Key)
	if i, ok := s.index[a.Key]; ok {
		s.items[i] = a
		return
	}
	s.index[a.Key] = len(s.items)
	s.items = append(s.items, a)
}

// Get returns the asset stored under key.
func (s *Set) Get(key string) (*Asset, bool) {
	i, ok := s.index[NormalizeKey(key)]
	if !ok {
		return nil, false
	}
	return s.items[i], true
}

// All returns the assets in insertion order.
func (s *Set) All() []*Asset {
	out := make([]*Asset, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of distinct keys.
func (s *Set) Len() int { return len(s.items) }
