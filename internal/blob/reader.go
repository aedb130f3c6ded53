package blob

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// Reader gives random access to the entries of a container.
type Reader struct {
	r       io.ReaderAt
	closer  io.Closer
	base    int64
	tr      trailer
	toc     toc
	entries map[string]*entry

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
}

// Open locates the container at the end of r, which holds size bytes.
// The container may be preceded by arbitrary data such as an executable.
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	if size < TrailerSize {
		return nil, ErrNoBlob
	}
	tail := make([]byte, TrailerSize)
	if _, err := r.ReadAt(tail, size-TrailerSize); err != nil {
		return nil, fmt.Errorf("read trailer: %w", err)
	}
	tr, err := parseTrailer(tail)
	if err != nil {
		return nil, err
	}
	if tr.blobSize > uint64(size) { //nolint:gosec // G115: size is non-negative
		return nil, ErrCorrupt
	}

	rd := &Reader{
		r:       r,
		base:    size - int64(tr.blobSize), //nolint:gosec // G115: bounded by size above
		tr:      tr,
		entries: make(map[string]*entry),
	}

	tocBytes := make([]byte, tr.tocSize)
	if _, err := r.ReadAt(tocBytes, rd.base+int64(tr.tocOffset)); err != nil { //nolint:gosec // G115: bounded by blobSize
		return nil, fmt.Errorf("read toc: %w", err)
	}
	if _, err := rd.toc.UnmarshalMsg(tocBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if rd.toc.Version != tocVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, rd.toc.Version)
	}
	for i := range rd.toc.Entries {
		e := &rd.toc.Entries[i]
		if e.Offset+e.Size > tr.tocOffset {
			return nil, fmt.Errorf("%w: entry %s out of bounds", ErrCorrupt, e.Key)
		}
		rd.entries[e.Key] = e
	}
	return rd, nil
}

// OpenBytes opens a container held in memory.
func OpenBytes(data []byte) (*Reader, error) {
	return Open(bytes.NewReader(data), int64(len(data)))
}

// OpenFile opens the container appended to the file at path. The caller
// must Close the Reader.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	rd, err := Open(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	rd.closer = f
	return rd, nil
}

// Close releases the underlying file, if any.
func (rd *Reader) Close() error {
	if rd.dec != nil {
		rd.dec.Close()
	}
	if rd.closer != nil {
		return rd.closer.Close()
	}
	return nil
}

// Offset returns where the container starts within the underlying data.
func (rd *Reader) Offset() int64 { return rd.base }

// Size returns the container length including the trailer.
func (rd *Reader) Size() int64 { return int64(rd.tr.blobSize) } //nolint:gosec // G115: validated in Open

// Meta returns the container metadata.
func (rd *Reader) Meta() Meta { return rd.toc.Meta }

// Has reports whether key is stored.
func (rd *Reader) Has(key string) bool {
	_, ok := rd.entries[key]
	return ok
}

// Keys returns every stored key in container order.
func (rd *Reader) Keys() []string {
	keys := make([]string, len(rd.toc.Entries))
	for i, e := range rd.toc.Entries {
		keys[i] = e.Key
	}
	return keys
}

// EntryInfo describes one stored entry.
type EntryInfo struct {
	Key        string `json:"key"        yaml:"key"`
	Size       int64  `json:"size"       yaml:"size"`
	RawSize    int64  `json:"rawSize"    yaml:"rawSize"`
	Compressed bool   `json:"compressed" yaml:"compressed"`
	Encrypted  bool   `json:"encrypted"  yaml:"encrypted"`
}

// Entries describes every stored entry in container order.
func (rd *Reader) Entries() []EntryInfo {
	out := make([]EntryInfo, len(rd.toc.Entries))
	for i, e := range rd.toc.Entries {
		out[i] = EntryInfo{
			Key:        e.Key,
			Size:       int64(e.Size),    //nolint:gosec // G115: bounds checked in Open
			RawSize:    int64(e.RawSize), //nolint:gosec // G115: sizes come from in-memory payloads
			Compressed: e.Compressed,
			Encrypted:  e.Encrypted,
		}
	}
	return out
}

// Encrypted returns the sorted keys whose payload is ciphertext.
func (rd *Reader) Encrypted() []string {
	var keys []string
	for _, e := range rd.toc.Entries {
		if e.Encrypted {
			keys = append(keys, e.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Get returns the payload stored under key exactly as it was added.
// Encrypted payloads are returned as ciphertext.
func (rd *Reader) Get(key string) ([]byte, error) {
	e, ok := rd.entries[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	stored := make([]byte, e.Size)
	if _, err := rd.r.ReadAt(stored, rd.base+int64(e.Offset)); err != nil { //nolint:gosec // G115: bounds checked in Open
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if xxhash.Sum64(stored) != e.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupt, key)
	}
	if !e.Compressed {
		return stored, nil
	}

	dec, err := rd.decoder()
	if err != nil {
		return nil, err
	}
	plain, err := dec.DecodeAll(stored, make([]byte, 0, e.RawSize))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s: %w", ErrCorrupt, key, err)
	}
	return plain, nil
}

func (rd *Reader) decoder() (*zstd.Decoder, error) {
	rd.decOnce.Do(func() {
		rd.dec, rd.decErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if rd.decErr != nil {
			rd.decErr = fmt.Errorf("zstd decoder: %w", rd.decErr)
		}
	})
	return rd.dec, rd.decErr
}

// Verify recomputes the BLAKE3 digest over payloads and table of contents.
func (rd *Reader) Verify() error {
	h := blake3.New()
	n := int64(rd.tr.tocOffset + rd.tr.tocSize) //nolint:gosec // G115: validated in Open
	sec := io.NewSectionReader(rd.r, rd.base, n)
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, sec, buf); err != nil {
		return fmt.Errorf("hash container: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), rd.tr.digest[:]) {
		return fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return nil
}
