package bootstrap

import "errors"

var (
	// ErrMissingAsset is returned when a manifest entry has no stored payload.
	ErrMissingAsset = errors.New("missing asset")
	// ErrHashMismatch is returned when a binary's bytes do not match the
	// manifest hash. Nothing is written in that case.
	ErrHashMismatch = errors.New("hash mismatch")
	// ErrNoKey is returned when an encrypted asset is requested but no key
	// source is available.
	ErrNoKey = errors.New("no decryption key")
	// ErrModuleNotFound is returned by Require when no extracted binary
	// matches the request.
	ErrModuleNotFound = errors.New("module not found")
	// ErrNotReady is returned when resolution is attempted before extraction
	// has completed.
	ErrNotReady = errors.New("bootstrap not ready")
)
