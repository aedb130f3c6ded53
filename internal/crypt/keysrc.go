package crypt

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"go/format"
	"text/template"
)

// MaskedKey is a key XORed with a per-build random mask so the shipped
// executable carries no greppable 64-hex-character literal. It hides the
// key from casual inspection only.
type MaskedKey struct {
	Data []byte
	Mask []byte
}

// Mask splits key into masked data and mask.
func Mask(key []byte) (MaskedKey, error) {
	if len(key) != KeySize {
		return MaskedKey{}, ErrKeySize
	}
	mask := make([]byte, len(key))
	if _, err := rand.Read(mask); err != nil {
		return MaskedKey{}, fmt.Errorf("mask: %w", err)
	}
	data := make([]byte, len(key))
	for i := range key {
		data[i] = key[i] ^ mask[i]
	}
	return MaskedKey{Data: data, Mask: mask}, nil
}

// Unmask reconstructs the key.
func (m MaskedKey) Unmask() ([]byte, error) {
	if len(m.Data) != KeySize || len(m.Mask) != KeySize {
		return nil, ErrKeySize
	}
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = m.Data[i] ^ m.Mask[i]
	}
	return key, nil
}

// Obfuscator is the opaque source transform applied to generated key code
// together with the rest of the bootstrap.
type Obfuscator interface {
	Obfuscate(src []byte) ([]byte, error)
}

// NopObfuscator returns source unchanged.
type NopObfuscator struct{}

func (NopObfuscator) Obfuscate(src []byte) ([]byte, error) { return src, nil }

var keyTemplate = template.Must(template.New("key").Parse(`// Code generated by sepack. DO NOT EDIT.

package {{.Package}}

import "github.com/bamsammich/sepack/bootstrap"

func init() {
	bootstrap.SetKeySource(func() []byte {
		d := []byte{ {{- range $i, $b := .Data}}{{if $i}}, {{end}}{{printf "0x%02x" $b}}{{end -}} }
		m := []byte{ {{- range $i, $b := .Mask}}{{if $i}}, {{end}}{{printf "0x%02x" $b}}{{end -}} }
		for i := range d {
			d[i] ^= m[i]
		}
		return d
	})
}
`))

// RenderKeySource emits a gofmt'd Go file that registers the key with the
// bootstrap at init time, then passes it through obf.
func RenderKeySource(pkg string, key MaskedKey, obf Obfuscator) ([]byte, error) {
	if obf == nil {
		obf = NopObfuscator{}
	}
	var buf bytes.Buffer
	err := keyTemplate.Execute(&buf, struct {
		Package string
		Data    []byte
		Mask    []byte
	}{pkg, key.Data, key.Mask})
	if err != nil {
		return nil, fmt.Errorf("render key source: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format key source: %w", err)
	}
	return obf.Obfuscate(src)
}
