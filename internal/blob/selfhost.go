package blob

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// SelfHost serves assets from the container appended to the running
// executable. It satisfies bootstrap.Host and bootstrap.KeyHost.
type SelfHost struct {
	path string

	once sync.Once
	rd   *Reader
	err  error
}

// NewSelfHost returns a host over the running executable.
func NewSelfHost() *SelfHost {
	return &SelfHost{}
}

// NewFileHost returns a host over the container appended to path.
func NewFileHost(path string) *SelfHost {
	return &SelfHost{path: path}
}

func (h *SelfHost) open() (*Reader, error) {
	h.once.Do(func() {
		path := h.path
		if path == "" {
			exe, err := os.Executable()
			if err != nil {
				h.err = fmt.Errorf("%w: %w", ErrNoBlob, err)
				return
			}
			path = exe
		}
		h.rd, h.err = OpenFile(path)
	})
	return h.rd, h.err
}

// IsPackaged reports whether a container is present. A plain development
// binary has none. A damaged container still counts as present; Err
// reports why it cannot be read.
func (h *SelfHost) IsPackaged() bool {
	_, err := h.open()
	return err == nil || !errors.Is(err, ErrNoBlob)
}

// Err returns the error that keeps a present container from being read,
// or nil when it opened cleanly or there is none.
func (h *SelfHost) Err() error {
	_, err := h.open()
	if err == nil || errors.Is(err, ErrNoBlob) {
		return nil
	}
	return err
}

// RawAsset returns the stored bytes for key. Ciphertext is returned as is.
func (h *SelfHost) RawAsset(key string) ([]byte, error) {
	rd, err := h.open()
	if err != nil {
		return nil, err
	}
	return rd.Get(key)
}

// EncryptedKeys returns the keys stored as ciphertext.
func (h *SelfHost) EncryptedKeys() []string {
	rd, err := h.open()
	if err != nil {
		return nil
	}
	return rd.Encrypted()
}

// MaskedKey returns the masked key data and mask recorded at build time.
func (h *SelfHost) MaskedKey() (data, mask []byte, err error) {
	rd, err := h.open()
	if err != nil {
		return nil, nil, err
	}
	m := rd.Meta()
	if len(m.KeyData) == 0 {
		return nil, nil, errors.New("container carries no key")
	}
	return m.KeyData, m.KeyMask, nil
}

// Close releases the executable file handle.
func (h *SelfHost) Close() error {
	if h.rd != nil {
		return h.rd.Close()
	}
	return nil
}
