package pack

import (
	"errors"
	"fmt"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/blob"
	"github.com/bamsammich/sepack/internal/manifest"
)

// ErrVerify is returned when a packaged executable fails verification.
var ErrVerify = errors.New("verification failed")

// Report summarizes a verified executable.
type Report struct {
	Manifest *manifest.Manifest
	Entries  int
	Binaries int
}

// Verify checks a packaged executable: container digest, manifest, every
// binary against its manifest hash, and presence of every listed asset.
func Verify(path string) (*Report, error) {
	rd, err := blob.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	if err := rd.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	data, err := rd.Get(manifest.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	for _, e := range m.Binaries {
		payload, err := rd.Get(e.AssetKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerify, err)
		}
		if got := asset.HashBytes(payload); got != e.Hash {
			return nil, fmt.Errorf("%w: %s hash %s, manifest %s", ErrVerify, e.AssetKey, got, e.Hash)
		}
	}
	for _, k := range m.AllAssetKeys {
		if !rd.Has(k) {
			return nil, fmt.Errorf("%w: %s listed but not stored", ErrVerify, k)
		}
	}
	return &Report{Manifest: m, Entries: len(rd.Keys()), Binaries: len(m.Binaries)}, nil
}

// Info describes a packaged executable for display.
type Info struct {
	Path        string             `json:"path"        yaml:"path"`
	Offset      int64              `json:"offset"      yaml:"offset"`
	Size        int64              `json:"size"        yaml:"size"`
	KeyEmbedded bool               `json:"keyEmbedded" yaml:"keyEmbedded"`
	Manifest    *manifest.Manifest `json:"manifest"    yaml:"manifest"`
	Entries     []blob.EntryInfo   `json:"entries"     yaml:"entries"`
}

// Inspect reads the container of a packaged executable without verifying it.
func Inspect(path string) (*Info, error) {
	rd, err := blob.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	data, err := rd.Get(manifest.Key)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Info{
		Path:        path,
		Offset:      rd.Offset(),
		Size:        rd.Size(),
		KeyEmbedded: len(rd.Meta().KeyData) > 0,
		Manifest:    m,
		Entries:     rd.Entries(),
	}, nil
}
