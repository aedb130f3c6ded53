package pack_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/sepack/bootstrap"
	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/blob"
	"github.com/bamsammich/sepack/internal/cachedir"
	"github.com/bamsammich/sepack/internal/config"
	"github.com/bamsammich/sepack/internal/crypt"
	"github.com/bamsammich/sepack/internal/manifest"
	"github.com/bamsammich/sepack/internal/pack"
	"github.com/bamsammich/sepack/internal/platform"
)

type project struct {
	dir string
	cfg *config.Build
}

func newProject(t *testing.T, extra string) *project {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"dist/index.js":                             "console.log('hi')",
		"dist/index.js.map":                         "{}",
		"dist/config/public.json":                   `{"public":true}`,
		"dist/data/secret.txt":                      "top secret",
		"dist/node_modules/x/build/Release/x.node":  "addon",
		"dist/node_modules/x/build/Release/dep.dll": "dll",
		"runtime/node":                              "#!runtime\n",
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o755))
	}
	content := `
name = "app"
version = "1.0.0"
root = "dist"
exclude = ["*.map"]
runtime = "runtime/node"
output = "out/app"
` + extra
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	return &project{dir: dir, cfg: cfg}
}

func TestBuildPlain(t *testing.T) {
	p := newProject(t, "targets = [\"linux-x64\"]\n")
	results, err := pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, filepath.Join(p.dir, "out", "app"), res.Output)
	assert.Equal(t, 5, res.Assets)
	assert.Equal(t, 2, res.Binaries)
	assert.Zero(t, res.Encrypted)
	assert.Empty(t, res.KeySource)

	out, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("#!runtime\n")))

	info, err := pack.Inspect(res.Output)
	require.NoError(t, err)
	assert.Equal(t, int64(len("#!runtime\n")), info.Offset)
	assert.False(t, info.KeyEmbedded)
	assert.Equal(t, "linux", info.Manifest.Platform)
	assert.Equal(t, "node_modules/x/build/Release/dep.dll", info.Manifest.Binaries[0].AssetKey)
	assert.NotContains(t, info.Manifest.AllAssetKeys, "index.js.map")

	rep, err := pack.Verify(res.Output)
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Entries, "assets plus manifest")
}

func TestBuildMultiTarget(t *testing.T) {
	p := newProject(t, `
targets = ["linux-x64", "win32-x64"]
cache_location = "%LOCALAPPDATA%\\app"
`)
	results, err := pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(p.dir, "out", "app-linux-x64"), results[0].Output)
	assert.Equal(t, filepath.Join(p.dir, "out", "app-win32-x64.exe"), results[1].Output)
	assert.Equal(t, "win32", results[1].Manifest.Platform)
	assert.Equal(t, `%LOCALAPPDATA%\app`, results[1].Manifest.CacheLocation)
	for _, r := range results {
		assert.FileExists(t, r.Output)
	}
}

func TestBuildEncrypted(t *testing.T) {
	p := newProject(t, `
targets = ["linux-x64"]

[encryption]
enabled = true
exclude = ["public.json"]
key_file = "sepack.key"
key_source = "gen/key_gen.go"
key_package = "keys"
`)
	results, err := pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)
	res := results[0]
	assert.Equal(t, 2, res.Encrypted, "index.js and secret.txt")
	assert.Equal(t, filepath.Join(p.dir, "gen", "key_gen.go"), res.KeySource)

	src, err := os.ReadFile(res.KeySource)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package keys")
	assert.Contains(t, string(src), "bootstrap.SetKeySource")

	keyHex, err := os.ReadFile(filepath.Join(p.dir, "sepack.key"))
	require.NoError(t, err)
	key, err := hex.DecodeString(strings.TrimSpace(string(keyHex)))
	require.NoError(t, err)
	assert.NotContains(t, string(src), strings.TrimSpace(string(keyHex)))

	rd, err := blob.OpenFile(res.Output)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, []string{"data/secret.txt", "index.js"}, rd.Encrypted())

	public, err := rd.Get("config/public.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"public":true}`, string(public))

	addon, err := rd.Get("node_modules/x/build/Release/x.node")
	require.NoError(t, err)
	assert.Equal(t, "addon", string(addon), "binaries stay plaintext")

	ct, err := rd.Get("data/secret.txt")
	require.NoError(t, err)
	plain, err := crypt.Open(ct, key)
	require.NoError(t, err)
	assert.Equal(t, "top secret", string(plain))

	m := rd.Meta()
	unmasked, err := crypt.MaskedKey{Data: m.KeyData, Mask: m.KeyMask}.Unmask()
	require.NoError(t, err)
	assert.Equal(t, key, unmasked)

	// A second build reuses the persisted key.
	_, err = pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(p.dir, "sepack.key"))
	require.NoError(t, err)
	assert.Equal(t, keyHex, again)
}

func TestBuildWithoutEmbeddedKey(t *testing.T) {
	p := newProject(t, `
targets = ["linux-x64"]

[encryption]
enabled = true
embed_key = false
`)
	results, err := pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)
	info, err := pack.Inspect(results[0].Output)
	require.NoError(t, err)
	assert.False(t, info.KeyEmbedded)
}

func TestBuildBadKeyFile(t *testing.T) {
	p := newProject(t, `
[encryption]
enabled = true
key_file = "sepack.key"
`)
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "sepack.key"), []byte("abcd\n"), 0o600))
	_, err := pack.Build(context.Background(), p.cfg)
	require.ErrorIs(t, err, crypt.ErrKeySize)
}

func TestBuildMissingRuntime(t *testing.T) {
	p := newProject(t, "runtimes = { \"linux-x64\" = \"runtime/missing\" }\ntargets = [\"linux-x64\"]\n")
	_, err := pack.Build(context.Background(), p.cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linux-x64")
}

func TestVerifyDetectsTampering(t *testing.T) {
	p := newProject(t, "targets = [\"linux-x64\"]\ncompress = false\n")
	results, err := pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)
	out := results[0].Output

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	i := bytes.Index(data, []byte("top secret"))
	require.Positive(t, i)
	data[i] = 'T'
	require.NoError(t, os.WriteFile(out, data, 0o755))

	_, err = pack.Verify(out)
	require.ErrorIs(t, err, pack.ErrVerify)
}

func TestVerifyUnpackaged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, []byte("no container here, just bytes"), 0o755))
	_, err := pack.Verify(path)
	require.ErrorIs(t, err, blob.ErrNoBlob)
}

// TestPackagedExecutableBootstraps runs the bootstrap against a freshly
// packaged executable and checks every asset comes back intact.
func TestPackagedExecutableBootstraps(t *testing.T) {
	host := platform.Current()
	p := newProject(t, `
targets = ["`+host.String()+`"]
platform_agnostic = true

[encryption]
enabled = true
exclude = ["public.json"]
`)
	results, err := pack.Build(context.Background(), p.cfg)
	require.NoError(t, err)

	self := blob.NewFileHost(results[0].Output)
	defer self.Close()
	cacheRoot := t.TempDir()
	env := cachedir.Env{
		Lookup: func(k string) (string, bool) {
			if k == cachedir.EnvOverride {
				return cacheRoot, true
			}
			return "", false
		},
		Platform: host.Platform,
	}
	e := bootstrap.New(self,
		bootstrap.WithCacheEnv(env),
		bootstrap.WithLoader(func(path string) (*platform.Library, error) {
			return &platform.Library{Path: path}, nil
		}),
		bootstrap.WithLibraryPath(func(string) error { return nil }),
	)
	require.NoError(t, e.Run(func() {}))
	require.Equal(t, bootstrap.Ready, e.State())

	secret, err := e.Assets().Text("data/secret.txt")
	require.NoError(t, err)
	assert.Equal(t, "top secret", secret)

	m, err := e.Require("x.node")
	require.NoError(t, err)
	got, err := asset.HashFile(m.Path)
	require.NoError(t, err)
	assert.Equal(t, asset.HashBytes([]byte("addon")), got)

	manifestKeys := e.Manifest().AllAssetKeys
	assert.Contains(t, manifestKeys, "config/public.json")
	assert.NotContains(t, manifestKeys, manifest.Key)
}
