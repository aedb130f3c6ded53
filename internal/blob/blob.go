// Package blob implements the container that carries a packaged
// application's assets. A container is appended to a runtime executable and
// located at run time through the fixed-size trailer at the end of the file:
//
//	[entry payloads][table of contents (msgpack)][trailer]
//
// Entries are optionally zstd-compressed and carry an xxhash64 checksum of the
// stored bytes. The trailer records a BLAKE3 digest of payloads and table of
// contents for whole-container verification.
package blob

import (
	"encoding/binary"
	"errors"
)

// Magic identifies a container trailer.
const Magic = "SEPACK01"

// TrailerSize is the fixed length of the trailer:
// tocOffset u64 | tocSize u64 | digest [32] | blobSize u64 | magic [8].
const TrailerSize = 8 + 8 + 32 + 8 + 8

var (
	ErrNoBlob   = errors.New("no sepack container found")
	ErrNotFound = errors.New("asset not found in container")
	ErrCorrupt  = errors.New("container is corrupt")
)

// Flags control how an entry is stored.
type Flags uint8

const (
	// Compress stores the entry zstd-compressed when that saves space.
	Compress Flags = 1 << iota
	// Encrypted marks the payload as ciphertext produced by the crypt package.
	Encrypted
)

type trailer struct {
	tocOffset uint64
	tocSize   uint64
	digest    [32]byte
	blobSize  uint64
}

func (t trailer) marshal() []byte {
	b := make([]byte, 0, TrailerSize)
	b = binary.LittleEndian.AppendUint64(b, t.tocOffset)
	b = binary.LittleEndian.AppendUint64(b, t.tocSize)
	b = append(b, t.digest[:]...)
	b = binary.LittleEndian.AppendUint64(b, t.blobSize)
	b = append(b, Magic...)
	return b
}

func parseTrailer(b []byte) (trailer, error) {
	if len(b) != TrailerSize || string(b[TrailerSize-len(Magic):]) != Magic {
		return trailer{}, ErrNoBlob
	}
	var t trailer
	t.tocOffset = binary.LittleEndian.Uint64(b[0:8])
	t.tocSize = binary.LittleEndian.Uint64(b[8:16])
	copy(t.digest[:], b[16:48])
	t.blobSize = binary.LittleEndian.Uint64(b[48:56])
	if t.blobSize < TrailerSize || t.tocOffset+t.tocSize != t.blobSize-TrailerSize {
		return trailer{}, ErrCorrupt
	}
	return t, nil
}
