package bootstrap

import (
	"fmt"

	"github.com/bamsammich/sepack/internal/crypt"
	"github.com/bamsammich/sepack/internal/stats"
)

// Assets is the single retrieval path for embedded payloads. Encryption is
// invisible above it.
type Assets struct {
	host      Host
	encrypted map[string]struct{}
	key       *Lazy[[]byte]
	stats     *stats.Collector
}

func newAssets(host Host, st *stats.Collector) *Assets {
	a := &Assets{
		host:      host,
		encrypted: make(map[string]struct{}),
		stats:     st,
	}
	kh, hasKeys := host.(KeyHost)
	if hasKeys {
		for _, k := range kh.EncryptedKeys() {
			a.encrypted[k] = struct{}{}
		}
	}
	a.key = NewLazy(func() ([]byte, error) {
		if fn := registeredKeySource(); fn != nil {
			key := fn()
			if len(key) != crypt.KeySize {
				return nil, crypt.ErrKeySize
			}
			return key, nil
		}
		if !hasKeys {
			return nil, ErrNoKey
		}
		data, mask, err := kh.MaskedKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoKey, err)
		}
		return crypt.MaskedKey{Data: data, Mask: mask}.Unmask()
	})
	return a
}

// IsEncrypted reports whether key is stored as ciphertext.
func (a *Assets) IsEncrypted(key string) bool {
	_, ok := a.encrypted[key]
	return ok
}

// Get returns the plaintext of key, decrypting when needed.
func (a *Assets) Get(key string) ([]byte, error) {
	raw, err := a.host.RawAsset(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingAsset, key, err)
	}
	if !a.IsEncrypted(key) {
		return raw, nil
	}
	k, err := a.key.Get()
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", key, err)
	}
	plain, err := crypt.Open(raw, k)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", key, err)
	}
	if a.stats != nil {
		a.stats.AddAssetsDecrypted(1)
	}
	return plain, nil
}

// Text returns the plaintext of key as a string.
func (a *Assets) Text(key string) (string, error) {
	b, err := a.Get(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
