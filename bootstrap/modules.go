package bootstrap

import (
	"fmt"
	"path"
	"sync"

	"github.com/bamsammich/sepack/internal/platform"
)

// BindingsModule is the id the synthetic loader helper is cached under.
const BindingsModule = "bindings"

// Module is a cached module record.
type Module struct {
	ID      string
	Path    string
	Library *platform.Library
	Exports any
}

// LoaderFunc loads the native library at path.
type LoaderFunc func(path string) (*platform.Library, error)

// ModuleCache resolves and caches native modules. Synthetic modules are
// consulted before resolution.
type ModuleCache struct {
	mu       sync.Mutex
	modules  map[string]*Module
	resolver *Lazy[*Resolver]
	load     LoaderFunc
}

// NewModuleCache returns a cache that resolves through resolver once it
// becomes available and loads through load.
func NewModuleCache(resolver *Lazy[*Resolver], load LoaderFunc) *ModuleCache {
	return &ModuleCache{
		modules:  make(map[string]*Module),
		resolver: resolver,
		load:     load,
	}
}

// Inject stores m under its ID, replacing any existing entry.
func (c *ModuleCache) Inject(m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[m.ID] = m
}

// Get returns the cached module id.
func (c *ModuleCache) Get(id string) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.modules[id]
	return m, ok
}

// Require returns the module for request, loading the matching extracted
// binary on first use. Modules are cached by resolved path, so different
// spellings of one addon share a single load.
func (c *ModuleCache) Require(request string) (*Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.modules[request]; ok {
		return m, nil
	}
	r, err := c.resolver.Get()
	if err != nil {
		return nil, fmt.Errorf("require %s: %w", request, err)
	}
	b, _, ok := r.Resolve(request)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, request)
	}
	if m, ok := c.modules[b.Path]; ok {
		c.modules[request] = m
		return m, nil
	}
	lib, err := c.load(b.Path)
	if err != nil {
		return nil, fmt.Errorf("require %s: %w", request, err)
	}
	m := &Module{ID: b.Path, Path: b.Path, Library: lib}
	c.modules[b.Path] = m
	c.modules[request] = m
	return m, nil
}

// BindingsOptions is the options form of a bindings lookup.
type BindingsOptions struct {
	Bindings string // addon name, "bindings.node" when empty
}

// Bindings is the synthetic loader helper. Applications call it with the
// addon name they would pass to the helper package, which does not need to
// be shipped.
type Bindings struct {
	modules *ModuleCache
}

// Load resolves an addon by name. A missing extension defaults to .node.
func (b *Bindings) Load(name string) (*Module, error) {
	return b.LoadOptions(BindingsOptions{Bindings: name})
}

// LoadOptions resolves an addon from an options value.
func (b *Bindings) LoadOptions(opts BindingsOptions) (*Module, error) {
	name := opts.Bindings
	if name == "" {
		name = "bindings.node"
	}
	if path.Ext(name) != ".node" {
		name += ".node"
	}
	return b.modules.Require(name)
}
