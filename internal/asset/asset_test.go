package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"native/x.node":         "native/x.node",
		`native\win\x.dll`:      "native/win/x.dll",
		"./assets/a.json":       "assets/a.json",
		"/abs/b.txt":            "abs/b.txt",
		"a/./b/../c.txt":        "a/c.txt",
		".":                     "",
		"build//Release/x.node": "build/Release/x.node",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), in)
	}
}

func TestAssetBytesPrefersContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("on disk"), 0o644))

	a := &Asset{Key: "a.txt", SourcePath: src, Content: []byte("inline")}
	data, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "inline", string(data))

	a.Content = nil
	data, err = a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(data))
}

func TestAssetNoContent(t *testing.T) {
	a := &Asset{Key: "ghost"}
	_, err := a.Bytes()
	require.ErrorIs(t, err, ErrNoContent)
	require.ErrorIs(t, a.ComputeHash(), ErrNoContent)
}

func TestComputeHashKeepsExisting(t *testing.T) {
	a := &Asset{Key: "x", Content: []byte("data"), Hash: "preset"}
	require.NoError(t, a.ComputeHash())
	assert.Equal(t, "preset", a.Hash)

	b := &Asset{Key: "y", Content: []byte("data")}
	require.NoError(t, b.ComputeHash())
	assert.Equal(t, HashBytes([]byte("data")), b.Hash)
}

func TestSetLastWriterWins(t *testing.T) {
	s := NewSet()
	s.Add(&Asset{Key: "a.txt", Content: []byte("1")})
	s.Add(&Asset{Key: "b.txt", Content: []byte("2")})
	s.Add(&Asset{Key: "./a.txt", Content: []byte("3")})

	require.Equal(t, 2, s.Len())
	all := s.All()
	assert.Equal(t, "a.txt", all[0].Key)
	assert.Equal(t, "3", string(all[0].Content))
	assert.Equal(t, "b.txt", all[1].Key)

	got, ok := s.Get(`.\a.txt`)
	require.True(t, ok)
	assert.Equal(t, "3", string(got.Content))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Addon, KindOf("build/Release/x.node"))
	assert.Equal(t, SharedLibrary, KindOf("lib/FOO.DLL"))
	assert.Equal(t, SharedLibrary, KindOf("libz.so"))
	assert.Equal(t, SharedLibrary, KindOf("libz.so.1.2.13"))
	assert.Equal(t, SharedLibrary, KindOf("libssl.dylib"))
	assert.Equal(t, Other, KindOf("data.json"))
	assert.Equal(t, Other, KindOf("notes.so.txt"))
	assert.True(t, IsBinaryName(`native\x.node`))
	assert.False(t, IsBinaryName("index.js"))
}
