package blob

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// tocVersion is bumped only on breaking layout changes.
const tocVersion = 1

// entry is the table-of-contents record for one stored payload.
type entry struct {
	Key        string `msg:"key"`
	Offset     uint64 `msg:"offset"`
	Size       uint64 `msg:"size"`
	RawSize    uint64 `msg:"raw_size"`
	Compressed bool   `msg:"compressed"`
	Encrypted  bool   `msg:"encrypted"`
	Checksum   uint64 `msg:"checksum"` // xxhash64 of the stored bytes
}

// Meta carries container-level data that is not an asset.
type Meta struct {
	KeyData []byte `msg:"key_data"`
	KeyMask []byte `msg:"key_mask"`
}

type toc struct {
	Version int     `msg:"version"`
	Meta    Meta    `msg:"meta"`
	Entries []entry `msg:"entries"`
}

// MarshalMsg appends the msgpack encoding of t to b.
func (t *toc) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "version")
	b = msgp.AppendInt(b, t.Version)

	b = msgp.AppendString(b, "meta")
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "key_data")
	b = msgp.AppendBytes(b, t.Meta.KeyData)
	b = msgp.AppendString(b, "key_mask")
	b = msgp.AppendBytes(b, t.Meta.KeyMask)

	b = msgp.AppendString(b, "entries")
	b = msgp.AppendArrayHeader(b, uint32(len(t.Entries))) //nolint:gosec // G115: entry count bounded by memory
	for i := range t.Entries {
		b = t.Entries[i].appendMsg(b)
	}
	return b, nil
}

func (e *entry) appendMsg(b []byte) []byte {
	b = msgp.AppendMapHeader(b, 7)
	b = msgp.AppendString(b, "key")
	b = msgp.AppendString(b, e.Key)
	b = msgp.AppendString(b, "offset")
	b = msgp.AppendUint64(b, e.Offset)
	b = msgp.AppendString(b, "size")
	b = msgp.AppendUint64(b, e.Size)
	b = msgp.AppendString(b, "raw_size")
	b = msgp.AppendUint64(b, e.RawSize)
	b = msgp.AppendString(b, "compressed")
	b = msgp.AppendBool(b, e.Compressed)
	b = msgp.AppendString(b, "encrypted")
	b = msgp.AppendBool(b, e.Encrypted)
	b = msgp.AppendString(b, "checksum")
	b = msgp.AppendUint64(b, e.Checksum)
	return b
}

// UnmarshalMsg decodes t from bts. Unknown fields are skipped.
func (t *toc) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, fmt.Errorf("toc header: %w", err)
	}
	for range n {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, fmt.Errorf("toc field: %w", err)
		}
		switch string(field) {
		case "version":
			t.Version, bts, err = msgp.ReadIntBytes(bts)
		case "meta":
			bts, err = t.Meta.unmarshalMsg(bts)
		case "entries":
			var sz uint32
			sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				break
			}
			t.Entries = make([]entry, sz)
			for i := range t.Entries {
				bts, err = t.Entries[i].unmarshalMsg(bts)
				if err != nil {
					break
				}
			}
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, fmt.Errorf("toc %s: %w", field, err)
		}
	}
	return bts, nil
}

func (m *Meta) unmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for range n {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch string(field) {
		case "key_data":
			m.KeyData, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "key_mask":
			m.KeyMask, bts, err = msgp.ReadBytesBytes(bts, nil)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func (e *entry) unmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for range n {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch string(field) {
		case "key":
			e.Key, bts, err = msgp.ReadStringBytes(bts)
		case "offset":
			e.Offset, bts, err = msgp.ReadUint64Bytes(bts)
		case "size":
			e.Size, bts, err = msgp.ReadUint64Bytes(bts)
		case "raw_size":
			e.RawSize, bts, err = msgp.ReadUint64Bytes(bts)
		case "compressed":
			e.Compressed, bts, err = msgp.ReadBoolBytes(bts)
		case "encrypted":
			e.Encrypted, bts, err = msgp.ReadBoolBytes(bts)
		case "checksum":
			e.Checksum, bts, err = msgp.ReadUint64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
