package bootstrap

import (
	"path"
	"strings"

	"github.com/bamsammich/sepack/internal/asset"
)

// Resolver maps native module requests to extracted binaries.
//
// Loader helpers name addons in many ways: a full key, a relative .node
// path, a bare basename, a name without extension, or the package
// directory a prebuilt addon lives under. Resolve tries a fixed list of
// matchers, most specific first, and returns the first hit in manifest
// order. It is a compatibility shim, not a general resolution algorithm.
type Resolver struct {
	binaries []Binary
}

// NewResolver returns a Resolver over the binaries of x.
func NewResolver(x *Extraction) *Resolver {
	return &Resolver{binaries: x.Binaries}
}

type request struct {
	norm   string
	base   string
	stem   string
	hasExt bool
}

func parseRequest(raw string) request {
	n := path.Clean(normalize(raw))
	for strings.HasPrefix(n, "../") {
		n = n[3:]
	}
	base := path.Base(n)
	stem := path.Base(stripExt(base))
	return request{
		norm:   n,
		base:   base,
		stem:   stem,
		hasExt: asset.IsBinaryName(base),
	}
}

type matcher struct {
	name  string
	match func(r request, b *Binary) bool
}

// matchers run in priority order. A full key always wins, so two packages
// shipping the same file name stay distinguishable by key.
var matchers = []matcher{
	{"key", func(r request, b *Binary) bool {
		return r.norm == b.Entry.AssetKey
	}},
	{"key-suffix", func(r request, b *Binary) bool {
		k := b.Entry.AssetKey
		return strings.Contains(r.norm, "/") &&
			(strings.HasSuffix(r.norm, "/"+k) || strings.HasSuffix(k, "/"+strings.TrimPrefix(r.norm, "/")))
	}},
	{"basename", func(r request, b *Binary) bool {
		return r.base == b.Entry.Base()
	}},
	{"stem", func(r request, b *Binary) bool {
		return stripExt(b.Entry.Base()) == r.stem
	}},
	{"prebuild-dir", func(r request, b *Binary) bool {
		return !r.hasExt &&
			asset.KindOf(b.Entry.Base()) == asset.Addon &&
			strings.Contains("/"+path.Dir(b.Entry.AssetKey)+"/", "/"+r.base+"/")
	}},
	{"substring", func(r request, b *Binary) bool {
		return r.stem != "" && strings.Contains(b.Entry.AssetKey, r.stem)
	}},
}

// Resolve returns the binary request refers to and the matcher that
// selected it.
func (r *Resolver) Resolve(req string) (*Binary, string, bool) {
	if req == "" {
		return nil, "", false
	}
	pr := parseRequest(req)
	for _, m := range matchers {
		for i := range r.binaries {
			if m.match(pr, &r.binaries[i]) {
				return &r.binaries[i], m.name, true
			}
		}
	}
	return nil, "", false
}
