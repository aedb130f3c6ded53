package blob

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

type pending struct {
	key   string
	data  []byte
	flags Flags
}

// Writer accumulates entries and serializes a container.
type Writer struct {
	entries []pending
	index   map[string]int
	meta    Meta
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{index: make(map[string]int)}
}

// Add stores data under key. A later Add for the same key replaces the
// earlier payload in place.
func (w *Writer) Add(key string, data []byte, flags Flags) {
	p := pending{key: key, data: data, flags: flags}
	if i, ok := w.index[key]; ok {
		w.entries[i] = p
		return
	}
	w.index[key] = len(w.entries)
	w.entries = append(w.entries, p)
}

// SetMeta records container-level metadata.
func (w *Writer) SetMeta(m Meta) {
	w.meta = m
}

// Len returns the number of entries.
func (w *Writer) Len() int { return len(w.entries) }

// Bytes serializes the container.
func (w *Writer) Bytes() ([]byte, error) {
	var enc *zstd.Encoder
	defer func() {
		if enc != nil {
			enc.Close()
		}
	}()

	var buf bytes.Buffer
	t := toc{Version: tocVersion, Meta: w.meta, Entries: make([]entry, 0, len(w.entries))}

	for _, p := range w.entries {
		stored := p.data
		compressed := false
		if p.flags&Compress != 0 && len(p.data) > 0 {
			if enc == nil {
				var err error
				enc, err = zstd.NewWriter(nil,
					zstd.WithEncoderLevel(zstd.SpeedDefault),
					zstd.WithEncoderConcurrency(1),
				)
				if err != nil {
					return nil, fmt.Errorf("zstd encoder: %w", err)
				}
			}
			c := enc.EncodeAll(p.data, nil)
			if len(c) < len(p.data) {
				stored = c
				compressed = true
			}
		}

		t.Entries = append(t.Entries, entry{
			Key:        p.key,
			Offset:     uint64(buf.Len()),
			Size:       uint64(len(stored)),
			RawSize:    uint64(len(p.data)),
			Compressed: compressed,
			Encrypted:  p.flags&Encrypted != 0,
			Checksum:   xxhash.Sum64(stored),
		})
		buf.Write(stored)
	}

	tocOffset := uint64(buf.Len())
	tocBytes, err := t.MarshalMsg(nil)
	if err != nil {
		return nil, fmt.Errorf("encode toc: %w", err)
	}
	buf.Write(tocBytes)

	tr := trailer{
		tocOffset: tocOffset,
		tocSize:   uint64(len(tocBytes)),
		digest:    blake3.Sum256(buf.Bytes()),
		blobSize:  uint64(buf.Len()) + TrailerSize,
	}
	buf.Write(tr.marshal())
	return buf.Bytes(), nil
}

// WriteTo serializes the container to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	data, err := w.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(data)
	return int64(n), err
}
