package bootstrap

import "sync"

// Host is the packaged executable's embedded asset store.
type Host interface {
	// IsPackaged reports whether the process runs from a packaged executable.
	IsPackaged() bool
	// RawAsset returns the stored bytes for key. Encrypted assets are
	// returned as ciphertext.
	RawAsset(key string) ([]byte, error)
}

// SnapshotHost is implemented by hosts that can restore a pre-built
// execution snapshot. When IsBuildingSnapshot reports true, extraction is
// deferred into the function registered with SetDeserializeMainFunction so
// it runs on every real start instead of once at build time.
type SnapshotHost interface {
	Host
	IsBuildingSnapshot() bool
	SetDeserializeMainFunction(fn func())
}

// CheckedHost is implemented by hosts whose container can be present but
// unreadable. A non-nil Err stops the bootstrap before anything runs.
type CheckedHost interface {
	Host
	Err() error
}

// KeyHost is implemented by hosts that carry encrypted assets.
type KeyHost interface {
	EncryptedKeys() []string
	MaskedKey() (data, mask []byte, err error)
}

var keySource struct {
	mu sync.RWMutex
	fn func() []byte
}

// SetKeySource registers the function that reconstructs the decryption key.
// Generated key files call it from init. It takes precedence over any key
// recorded in the container.
func SetKeySource(fn func() []byte) {
	keySource.mu.Lock()
	defer keySource.mu.Unlock()
	keySource.fn = fn
}

func registeredKeySource() func() []byte {
	keySource.mu.RLock()
	defer keySource.mu.RUnlock()
	return keySource.fn
}
