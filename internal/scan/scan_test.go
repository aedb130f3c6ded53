package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/sepack/internal/asset"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func keys(s *asset.Set) []string {
	var out []string
	for _, a := range s.All() {
		out = append(out, a.Key)
	}
	return out
}

func TestScan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.js":                     "main",
		"index.js.map":                 "map",
		"config/app.json":              "{}",
		"node_modules/a/build/a.node":  "addon",
		"node_modules/a/build/dep.dll": "dll",
		"test/fixture.txt":             "x",
		"big.bin":                      "0123456789",
	})
	rules := NewRules()
	require.NoError(t, rules.Exclude("*.map"))
	require.NoError(t, rules.Exclude("test/"))

	set, err := Scan(context.Background(), Options{
		Root:    root,
		Rules:   rules,
		MaxSize: 8,
		Extra:   []*asset.Asset{{Key: `inline\VERSION`, Content: []byte("1.0.0")}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"config/app.json",
		"index.js",
		"node_modules/a/build/a.node",
		"node_modules/a/build/dep.dll",
		"inline/VERSION",
	}, keys(set))

	addon, ok := set.Get("node_modules/a/build/a.node")
	require.True(t, ok)
	assert.True(t, addon.IsBinary)
	assert.Equal(t, asset.HashBytes([]byte("addon")), addon.Hash)

	js, ok := set.Get("index.js")
	require.True(t, ok)
	assert.False(t, js.IsBinary)
	assert.Empty(t, js.Hash)
}

func TestScanKeyPrefixAndCustomBinary(t *testing.T) {
	root := writeTree(t, map[string]string{"tool.exe": "MZ", "a.txt": "a"})
	set, err := Scan(context.Background(), Options{
		Root:      root,
		KeyPrefix: "app",
		IsBinary:  func(key string) bool { return filepath.Ext(key) == ".exe" },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app/a.txt", "app/tool.exe"}, keys(set))
	exe, _ := set.Get("app/tool.exe")
	assert.True(t, exe.IsBinary)
	assert.NotEmpty(t, exe.Hash)
}

func TestScanExtraOverridesFile(t *testing.T) {
	root := writeTree(t, map[string]string{"config.json": "disk"})
	set, err := Scan(context.Background(), Options{
		Root:  root,
		Extra: []*asset.Asset{{Key: "config.json", Content: []byte("inline")}},
	})
	require.NoError(t, err)
	a, ok := set.Get("config.json")
	require.True(t, ok)
	data, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "inline", string(data))
}

func TestScanCanceled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, Options{Root: root})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), Options{Root: filepath.Join(t.TempDir(), "missing")})
	require.ErrorIs(t, err, os.ErrNotExist)
}
