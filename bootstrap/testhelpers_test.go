package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/cachedir"
	"github.com/bamsammich/sepack/internal/crypt"
	"github.com/bamsammich/sepack/internal/manifest"
	"github.com/bamsammich/sepack/internal/platform"
)

var errNoAsset = errors.New("no such asset")

// memHost is an in-memory packaged executable.
type memHost struct {
	mu        sync.Mutex
	packaged  bool
	assets    map[string][]byte
	encrypted []string
	key       crypt.MaskedKey
	fetches   map[string]int
}

func newMemHost() *memHost {
	return &memHost{packaged: true, assets: make(map[string][]byte), fetches: make(map[string]int)}
}

func (h *memHost) IsPackaged() bool { return h.packaged }

func (h *memHost) RawAsset(key string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetches[key]++
	data, ok := h.assets[key]
	if !ok {
		return nil, errNoAsset
	}
	return data, nil
}

func (h *memHost) EncryptedKeys() []string { return h.encrypted }

func (h *memHost) MaskedKey() (data, mask []byte, err error) {
	if h.key.Data == nil {
		return nil, nil, errors.New("no key")
	}
	return h.key.Data, h.key.Mask, nil
}

func (h *memHost) fetchCount(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetches[key]
}

// snapshotHost records the deserialize function instead of running it.
type snapshotHost struct {
	*memHost
	building    bool
	deserialize func()
}

func (h *snapshotHost) IsBuildingSnapshot() bool { return h.building }

func (h *snapshotHost) SetDeserializeMainFunction(fn func()) { h.deserialize = fn }

// testPackage assembles a host and manifest the way the packager does.
type testPackage struct {
	host     *memHost
	manifest *manifest.Manifest
	assets   []*asset.Asset
}

func buildPackage(t *testing.T, assets ...*asset.Asset) *testPackage {
	t.Helper()
	return buildPackageFor(t, platform.Current(), assets...)
}

func buildPackageFor(t *testing.T, target platform.Target, assets ...*asset.Asset) *testPackage {
	t.Helper()
	for _, a := range assets {
		if a.IsBinary {
			require.NoError(t, a.ComputeHash())
		}
	}
	m, err := manifest.Build("app", "1.0.0", assets, target, manifest.WithPlatformAgnostic())
	require.NoError(t, err)
	data, err := manifest.Marshal(m)
	require.NoError(t, err)

	h := newMemHost()
	h.assets[manifest.Key] = data
	for _, a := range assets {
		b, err := a.Bytes()
		require.NoError(t, err)
		h.assets[a.Key] = b
	}
	return &testPackage{host: h, manifest: m, assets: assets}
}

// encrypt seals every eligible asset in place and records the key in the
// host the way the container does.
func (p *testPackage) encrypt(t *testing.T, exclude ...string) []byte {
	t.Helper()
	key, err := crypt.GenerateKey()
	require.NoError(t, err)
	sealed, err := crypt.EncryptAssets(p.assets, key, exclude)
	require.NoError(t, err)
	for k, ct := range sealed {
		p.host.assets[k] = ct
		p.host.encrypted = append(p.host.encrypted, k)
	}
	p.host.key, err = crypt.Mask(key)
	require.NoError(t, err)
	return key
}

func binaryAsset(key string, content string) *asset.Asset {
	return &asset.Asset{Key: key, Content: []byte(content), IsBinary: true}
}

func dataAsset(key string, content string) *asset.Asset {
	return &asset.Asset{Key: key, Content: []byte(content)}
}

// cacheEnv points the cache root at a temp dir.
func cacheEnv(t *testing.T) (cachedir.Env, string) {
	t.Helper()
	root := t.TempDir()
	vars := map[string]string{cachedir.EnvOverride: root}
	return cachedir.Env{
		Lookup: func(k string) (string, bool) {
			v, ok := vars[k]
			return v, ok
		},
		Platform: platform.Current().Platform,
	}, root
}

// recordingLoader loads nothing and remembers what it was asked to load.
type recordingLoader struct {
	mu    sync.Mutex
	paths []string
	check func(path string) error
}

func (l *recordingLoader) load(path string) (*platform.Library, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if l.check != nil {
		if err := l.check(path); err != nil {
			return nil, err
		}
	}
	l.paths = append(l.paths, path)
	return &platform.Library{Path: path}, nil
}

func (l *recordingLoader) loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

// newTestEngine wires an engine to p with a temp cache root.
func newTestEngine(t *testing.T, host Host, env cachedir.Env, opts ...Option) (*Engine, *recordingLoader) {
	t.Helper()
	l := &recordingLoader{}
	base := []Option{
		WithCacheEnv(env),
		WithLoader(l.load),
		WithLibraryPath(func(string) error { return nil }),
		WithFatal(func(err error) { t.Errorf("fatal: %v", err) }),
	}
	e := New(host, append(base, opts...)...)
	t.Cleanup(func() { installed.Store(nil) })
	return e, l
}

func cachePath(root string, m *manifest.Manifest, fileName string) string {
	return filepath.Join(root, m.AppName, m.AppVersion+"-"+m.Platform+"-"+m.Arch, fileName)
}
