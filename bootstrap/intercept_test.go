package bootstrap

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRedirectByBasename(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "cache", "a.node")
	pathB := filepath.Join(dir, "cache", "b.node")
	writeFile(t, pathA, "A")

	i := NewInterceptor(OSOriginals())
	i.Redirect("pkg/a/build/Release/a.node", pathA)
	i.Redirect("pkg/b/build/Release/b.node", pathB)

	// The literal path does not exist; its basename maps to pathA.
	assert.True(t, i.Exists(filepath.Join(dir, "nowhere", "a.node")))
	// pathB was never written, so every spelling of b reports missing even
	// when the literal path exists.
	literalB := filepath.Join(dir, "elsewhere", "b.node")
	writeFile(t, literalB, "decoy")
	assert.False(t, i.Exists(literalB))

	data, err := i.ReadFile("a.node")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	info, err := i.Stat(`C:\app\a.node`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())
}

func TestLookupPrefersFullKey(t *testing.T) {
	i := NewInterceptor(OSOriginals())
	i.Redirect("node_modules/a/addon.node", "/cache/a/addon.node")
	i.Redirect("node_modules/b/addon.node", "/cache/b/addon.node")

	tests := []struct {
		name string
		req  string
		want string
	}{
		{name: "full key", req: "node_modules/b/addon.node", want: "/cache/b/addon.node"},
		{name: "dot relative key", req: "./node_modules/b/addon.node", want: "/cache/b/addon.node"},
		{name: "absolute suffix", req: "/snapshot/app/node_modules/b/addon.node", want: "/cache/b/addon.node"},
		{name: "backslash suffix", req: `C:\snapshot\node_modules\b\addon.node`, want: "/cache/b/addon.node"},
		{name: "basename keeps first", req: "/elsewhere/addon.node", want: "/cache/a/addon.node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := i.Lookup(tt.req)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := i.Lookup("/etc/hosts")
	assert.False(t, ok)
}

func TestFallthroughUsesOriginals(t *testing.T) {
	var stats, reads, reals []string
	orig := Originals{
		Stat: func(name string) (fs.FileInfo, error) {
			stats = append(stats, name)
			return nil, fs.ErrNotExist
		},
		ReadFile: func(name string) ([]byte, error) {
			reads = append(reads, name)
			return []byte("orig"), nil
		},
		RealPath: func(name string) (string, error) {
			reals = append(reals, name)
			return "/real" + name, nil
		},
	}
	i := NewInterceptor(orig)

	assert.False(t, i.Exists("/etc/app.conf"))
	data, err := i.ReadFile("/etc/app.conf")
	require.NoError(t, err)
	assert.Equal(t, "orig", string(data))
	rp, err := i.RealPath("/etc/app.conf")
	require.NoError(t, err)
	assert.Equal(t, "/real/etc/app.conf", rp)

	i.Redirect("native/x.node", "/cache/x.node")
	_, _ = i.ReadFile("x.node")
	rp, err = i.RealPath("lib/x.node")
	require.NoError(t, err)
	assert.Equal(t, "/real/cache/x.node", rp)

	assert.Equal(t, []string{"/etc/app.conf"}, stats)
	assert.Equal(t, []string{"/etc/app.conf", "/cache/x.node"}, reads)
	assert.Equal(t, []string{"/etc/app.conf", "/cache/x.node"}, reals)
}

func TestServesEmbeddedAssets(t *testing.T) {
	p := buildPackage(t,
		dataAsset("config/app.json", `{"name":"app"}`),
		binaryAsset("native/x.node", "addon"),
	)
	env, root := cacheEnv(t)
	e, _ := newTestEngine(t, p.host, env)
	require.NoError(t, e.Run(func() {}))
	i := Installed()
	require.NotNil(t, i)

	data, err := i.ReadFile("./config/app.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"app"}`, string(data))

	info, err := i.Stat("config/app.json")
	require.NoError(t, err)
	assert.Equal(t, "app.json", info.Name())
	assert.Equal(t, int64(len(`{"name":"app"}`)), info.Size())
	assert.False(t, info.IsDir())

	rp, err := i.RealPath("config/app.json")
	require.NoError(t, err)
	assert.Equal(t, "config/app.json", rp)

	// Package-level helpers go through the installed interceptor.
	data, err = ReadFile("config/app.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"app"}`, string(data))
	assert.True(t, Exists("native/x.node"))
	assert.FileExists(t, cachePath(root, p.manifest, "x.node"))
}

func TestAssetFS(t *testing.T) {
	p := buildPackage(t,
		dataAsset("config/app.json", "cfg"),
		binaryAsset("native/x.node", "addon"),
	)
	env, _ := cacheEnv(t)
	e, _ := newTestEngine(t, p.host, env)
	require.NoError(t, e.Run(func() {}))
	fsys := e.Interceptor().FS()

	data, err := fs.ReadFile(fsys, "config/app.json")
	require.NoError(t, err)
	assert.Equal(t, "cfg", string(data))

	data, err = fs.ReadFile(fsys, "native/x.node")
	require.NoError(t, err)
	assert.Equal(t, "addon", string(data))

	f, err := fsys.Open("config/app.json")
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "cfg", string(got))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())
	require.NoError(t, f.Close())

	info, err = fs.Stat(fsys, "native/x.node")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	_, err = fs.Stat(fsys, "missing.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = fsys.Open("../escape")
	require.ErrorIs(t, err, fs.ErrInvalid)
}

func TestPackageHelpersWhenInert(t *testing.T) {
	installed.Store(nil)
	path := filepath.Join(t.TempDir(), "plain.txt")
	writeFile(t, path, "plain")

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))
	assert.True(t, Exists(path))
	assert.False(t, Exists(path+".missing"))
}
