package bootstrap

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Originals are the file operations captured before interception. Every
// request without a redirect falls through to them unchanged.
type Originals struct {
	Stat     func(name string) (fs.FileInfo, error)
	ReadFile func(name string) ([]byte, error)
	RealPath func(name string) (string, error)
	Open     func(name string) (fs.File, error)
}

// OSOriginals captures the os package's file operations.
func OSOriginals() Originals {
	return Originals{
		Stat:     os.Stat,
		ReadFile: os.ReadFile,
		RealPath: filepath.EvalSymlinks,
		Open:     func(name string) (fs.File, error) { return os.Open(name) },
	}
}

// Interceptor is the process's interception context. It is installed with
// empty tables before anything else runs and filled in after extraction.
type Interceptor struct {
	orig Originals

	mu       sync.RWMutex
	byKey    map[string]string
	byBase   map[string]string
	embedded map[string]struct{}
	assets   *Assets
}

// NewInterceptor returns an Interceptor with empty tables delegating to orig.
func NewInterceptor(orig Originals) *Interceptor {
	return &Interceptor{
		orig:     orig,
		byKey:    make(map[string]string),
		byBase:   make(map[string]string),
		embedded: make(map[string]struct{}),
	}
}

var installed atomic.Pointer[Interceptor]

// Installed returns the process-wide interceptor, or nil when the bootstrap
// is inert.
func Installed() *Interceptor {
	return installed.Load()
}

// Redirect routes requests for key, any path ending in key, and any path
// with key's basename to target. The first target registered for a basename
// keeps it.
func (i *Interceptor) Redirect(key, target string) {
	key = normalize(key)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byKey[key] = target
	base := path.Base(key)
	if _, taken := i.byBase[base]; !taken {
		i.byBase[base] = target
	}
}

// serve makes keys readable from assets.
func (i *Interceptor) serve(assets *Assets, keys []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.assets = assets
	for _, k := range keys {
		i.embedded[normalize(k)] = struct{}{}
	}
}

// Lookup returns the redirect target for name. Full key matches win over
// suffix matches, which win over basename matches.
func (i *Interceptor) Lookup(name string) (string, bool) {
	n := normalize(name)
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(i.byKey) == 0 {
		return "", false
	}
	if p, ok := i.byKey[n]; ok {
		return p, true
	}
	var best, target string
	for k, p := range i.byKey {
		if strings.HasSuffix(n, "/"+k) && len(k) > len(best) {
			best, target = k, p
		}
	}
	if best != "" {
		return target, true
	}
	p, ok := i.byBase[path.Base(n)]
	return p, ok
}

func (i *Interceptor) embeddedKey(name string) (string, *Assets, bool) {
	n := normalize(name)
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.embedded[n]
	return n, i.assets, ok && i.assets != nil
}

// Stat stats the redirect target of name, the embedded asset it names, or
// name itself.
func (i *Interceptor) Stat(name string) (fs.FileInfo, error) {
	if p, ok := i.Lookup(name); ok {
		return i.orig.Stat(p)
	}
	if key, assets, ok := i.embeddedKey(name); ok {
		data, err := assets.Get(key)
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
		}
		return assetInfo{name: path.Base(key), size: int64(len(data))}, nil
	}
	return i.orig.Stat(name)
}

// Exists reports whether Stat succeeds.
func (i *Interceptor) Exists(name string) bool {
	_, err := i.Stat(name)
	return err == nil
}

// ReadFile reads the redirect target of name, the embedded asset it names,
// or name itself.
func (i *Interceptor) ReadFile(name string) ([]byte, error) {
	if p, ok := i.Lookup(name); ok {
		return i.orig.ReadFile(p)
	}
	if key, assets, ok := i.embeddedKey(name); ok {
		data, err := assets.Get(key)
		if err != nil {
			return nil, &fs.PathError{Op: "read", Path: name, Err: err}
		}
		return data, nil
	}
	return i.orig.ReadFile(name)
}

// RealPath resolves the redirect target of name. Embedded assets have no
// real path and resolve to their key.
func (i *Interceptor) RealPath(name string) (string, error) {
	if p, ok := i.Lookup(name); ok {
		return i.orig.RealPath(p)
	}
	if key, _, ok := i.embeddedKey(name); ok {
		return key, nil
	}
	return i.orig.RealPath(name)
}

// FS returns a read-only view of the asset namespace: extracted binaries
// and embedded assets, addressed by key. It does not fall through to the
// host filesystem and does not list directories.
func (i *Interceptor) FS() fs.FS {
	return assetFS{i: i}
}

type assetFS struct {
	i *Interceptor
}

var (
	_ fs.StatFS     = assetFS{}
	_ fs.ReadFileFS = assetFS{}
)

func (f assetFS) target(op, name string) (string, *Assets, bool, error) {
	if !fs.ValidPath(name) {
		return "", nil, false, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	f.i.mu.RLock()
	p, redirected := f.i.byKey[name]
	f.i.mu.RUnlock()
	if redirected {
		return p, nil, true, nil
	}
	if key, assets, ok := f.i.embeddedKey(name); ok {
		return key, assets, false, nil
	}
	return "", nil, false, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

func (f assetFS) Open(name string) (fs.File, error) {
	t, assets, redirected, err := f.target("open", name)
	if err != nil {
		return nil, err
	}
	if redirected {
		return f.i.orig.Open(t)
	}
	data, err := assets.Get(t)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{
		Reader: bytes.NewReader(data),
		info:   assetInfo{name: path.Base(t), size: int64(len(data))},
	}, nil
}

func (f assetFS) Stat(name string) (fs.FileInfo, error) {
	t, assets, redirected, err := f.target("stat", name)
	if err != nil {
		return nil, err
	}
	if redirected {
		return f.i.orig.Stat(t)
	}
	data, err := assets.Get(t)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return assetInfo{name: path.Base(t), size: int64(len(data))}, nil
}

func (f assetFS) ReadFile(name string) ([]byte, error) {
	t, assets, redirected, err := f.target("read", name)
	if err != nil {
		return nil, err
	}
	if redirected {
		return f.i.orig.ReadFile(t)
	}
	data, err := assets.Get(t)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

type memFile struct {
	*bytes.Reader
	info assetInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (*memFile) Close() error                 { return nil }

type assetInfo struct {
	name string
	size int64
}

func (a assetInfo) Name() string     { return a.name }
func (a assetInfo) Size() int64      { return a.size }
func (assetInfo) Mode() fs.FileMode  { return 0o444 }
func (assetInfo) ModTime() time.Time { return time.Time{} }
func (assetInfo) IsDir() bool        { return false }
func (assetInfo) Sys() any           { return nil }

// normalize turns a request into key form: forward slashes, no leading "./".
func normalize(name string) string {
	n := strings.ReplaceAll(name, `\`, "/")
	for strings.HasPrefix(n, "./") {
		n = n[2:]
	}
	return n
}

// Stat stats name through the installed interceptor, or directly when the
// bootstrap is inert.
func Stat(name string) (fs.FileInfo, error) {
	if i := Installed(); i != nil {
		return i.Stat(name)
	}
	return os.Stat(name)
}

// Exists reports whether name exists, honoring redirects.
func Exists(name string) bool {
	_, err := Stat(name)
	return err == nil
}

// ReadFile reads name through the installed interceptor, or directly when
// the bootstrap is inert.
func ReadFile(name string) ([]byte, error) {
	if i := Installed(); i != nil {
		return i.ReadFile(name)
	}
	return os.ReadFile(name)
}
