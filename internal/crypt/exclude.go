package crypt

import (
	"strings"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/manifest"
)

// Excluder decides which assets stay in plaintext.
type Excluder struct {
	patterns []string
}

// NewExcluder returns an Excluder for the given substring/suffix patterns.
// Patterns are normalized like asset keys; empty patterns are dropped.
func NewExcluder(patterns []string) *Excluder {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.ReplaceAll(p, `\`, "/")
		if p != "" {
			e.patterns = append(e.patterns, p)
		}
	}
	return e
}

// Excluded reports whether key contains any pattern. Suffix patterns such as
// ".json" match through the same test.
func (e *Excluder) Excluded(key string) bool {
	for _, p := range e.patterns {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

// ShouldEncrypt reports whether a is eligible for encryption. Binaries and
// the manifest are always stored in plaintext.
func (e *Excluder) ShouldEncrypt(a *asset.Asset) bool {
	if a.IsBinary || a.Key == manifest.Key {
		return false
	}
	return !e.Excluded(a.Key)
}

// EncryptAssets seals every eligible asset and returns the ciphertext keyed
// by asset key. Ineligible assets are absent from the result.
func EncryptAssets(assets []*asset.Asset, key []byte, exclude []string) (map[string][]byte, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	ex := NewExcluder(exclude)
	out := make(map[string][]byte)
	for _, a := range assets {
		if !ex.ShouldEncrypt(a) {
			continue
		}
		plain, err := a.Bytes()
		if err != nil {
			return nil, err
		}
		sealed, err := Seal(plain, key)
		if err != nil {
			return nil, err
		}
		out[a.Key] = sealed
	}
	return out, nil
}
