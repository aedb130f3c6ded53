// Package bootstrap is the first code a packaged executable runs. It
// installs file interception, extracts native binaries into a hash-checked
// cache, and exposes the embedded assets and extracted modules to the
// application.
//
// A packaged program calls Main at the top of main:
//
//	func main() {
//		bootstrap.Main(run)
//	}
//
// Outside a packaged executable the engine is inert and Main simply calls
// run.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/blob"
	"github.com/bamsammich/sepack/internal/cachedir"
	"github.com/bamsammich/sepack/internal/event"
	"github.com/bamsammich/sepack/internal/manifest"
	"github.com/bamsammich/sepack/internal/platform"
	"github.com/bamsammich/sepack/internal/stats"
)

// EnvDebug enables bootstrap debug logging on stderr when set.
const EnvDebug = "SEPACK_DEBUG"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCacheEnv sets the environment used to resolve the cache root.
func WithCacheEnv(env cachedir.Env) Option {
	return func(e *Engine) { e.env = env }
}

// WithTarget sets the host platform/arch used to filter manifest entries.
func WithTarget(t platform.Target) Option {
	return func(e *Engine) { e.target = t }
}

// WithLoader replaces the native library loader.
func WithLoader(fn LoaderFunc) Option {
	return func(e *Engine) { e.load = fn }
}

// WithLibraryPath replaces the function that puts the cache directory on
// the library search path.
func WithLibraryPath(fn func(dir string) error) Option {
	return func(e *Engine) { e.prependLibPath = fn }
}

// WithOriginals sets the file operations captured by the interceptor.
func WithOriginals(o Originals) Option {
	return func(e *Engine) { e.originals = o }
}

// WithEvents sends progress events to ch. Sends never block.
func WithEvents(ch chan<- event.Event) Option {
	return func(e *Engine) { e.events = ch }
}

// WithStats records counters into c.
func WithStats(c *stats.Collector) Option {
	return func(e *Engine) { e.stats = c }
}

// WithFatal sets the handler for failures inside a deferred snapshot start.
func WithFatal(fn func(error)) Option {
	return func(e *Engine) { e.fatal = fn }
}

// Engine drives the bootstrap state machine for one process.
type Engine struct {
	host           Host
	logger         *slog.Logger
	env            cachedir.Env
	target         platform.Target
	load           LoaderFunc
	prependLibPath func(string) error
	originals      Originals
	events         chan<- event.Event
	stats          *stats.Collector
	fatal          func(error)

	mu         sync.Mutex
	state      State
	interc     *Interceptor
	assets     *Assets
	manifest   *manifest.Manifest
	extraction *Extraction
	resolver   *Resolver
	modules    *ModuleCache
	libraries  []*platform.Library
}

// New returns an engine over host.
func New(host Host, opts ...Option) *Engine {
	e := &Engine{
		host:           host,
		logger:         defaultLogger(),
		env:            cachedir.HostEnv(),
		target:         platform.Current(),
		load:           platform.LoadLibrary,
		prependLibPath: platform.PrependLibraryPath,
		originals:      OSOriginals(),
		stats:          stats.NewCollector(),
		fatal:          Fatal,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.env.Platform == "" {
		e.env.Platform = e.target.Platform
	}
	return e
}

func defaultLogger() *slog.Logger {
	if os.Getenv(EnvDebug) == "" {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.logger.Debug("bootstrap state", "state", s)
}

// Run bootstraps the process and calls main. Outside a packaged executable
// it calls main directly. In snapshot mode it registers the deserialize
// function and returns without calling main; the host calls it on every
// real start.
func (e *Engine) Run(main func()) error {
	if e.host == nil || !e.host.IsPackaged() {
		e.setState(Inert)
		e.logger.Debug("not packaged, bootstrap inert")
		main()
		return nil
	}
	if ch, ok := e.host.(CheckedHost); ok {
		if err := ch.Err(); err != nil {
			return fmt.Errorf("read container: %w", err)
		}
	}
	event.Emit(e.events, event.Event{Type: event.BootstrapStarted})

	e.install()

	if sh, ok := e.host.(SnapshotHost); ok && sh.IsBuildingSnapshot() {
		e.modules.Inject(&Module{ID: BindingsModule, Exports: &Bindings{modules: e.modules}})
		sh.SetDeserializeMainFunction(func() {
			if err := e.start(); err != nil {
				e.fatal(err)
				return
			}
			main()
		})
		e.setState(SnapshotDeserializeRegistered)
		event.Emit(e.events, event.Event{Type: event.SnapshotDeferred})
		return nil
	}

	if err := e.start(); err != nil {
		return err
	}
	main()
	return nil
}

// install puts the interceptor in place with empty tables. It runs before
// anything that could capture the original file operations.
func (e *Engine) install() {
	e.interc = NewInterceptor(e.originals)
	installed.Store(e.interc)
	e.assets = newAssets(e.host, e.stats)
	e.modules = NewModuleCache(NewLazy(e.currentResolver), e.load)
	e.setState(OverridesInstalled)
	event.Emit(e.events, event.Event{Type: event.OverridesInstalled})
}

func (e *Engine) currentResolver() (*Resolver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolver == nil {
		return nil, ErrNotReady
	}
	return e.resolver, nil
}

// start reads the manifest, extracts binaries, fills the redirect tables
// and readies module resolution.
func (e *Engine) start() error {
	data, err := e.assets.Get(manifest.Key)
	if err != nil {
		return err
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return err
	}
	if m.Platform != e.target.Platform || m.Arch != e.target.Arch {
		e.logger.Warn("manifest built for another target",
			"manifest", m.Platform+"-"+m.Arch, "host", e.target.String())
	}

	root, err := cachedir.Root(m, e.env)
	if err != nil {
		return err
	}
	dir := cachedir.Dir(root, m, e.env.Platform)

	x := &extractor{
		host:     e.host,
		platform: e.env.Platform,
		logger:   e.logger,
		events:   e.events,
		stats:    e.stats,
	}
	ext, err := x.run(m.ForHost(e.target.Platform, e.target.Arch), dir)
	if err != nil {
		return err
	}

	binaries := make(map[string]struct{}, len(ext.Binaries))
	for _, b := range ext.Binaries {
		e.interc.Redirect(b.Entry.AssetKey, b.Path)
		binaries[b.Entry.AssetKey] = struct{}{}
	}
	embedded := make([]string, 0, len(m.AllAssetKeys))
	for _, k := range m.AllAssetKeys {
		if _, isBin := binaries[k]; !isBin {
			embedded = append(embedded, k)
		}
	}
	e.interc.serve(e.assets, embedded)

	e.mu.Lock()
	e.manifest = m
	e.extraction = ext
	e.mu.Unlock()
	e.setState(Extracted)

	if e.target.IsWindows() {
		if err := e.preload(ext); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.resolver = NewResolver(ext)
	e.mu.Unlock()
	if _, ok := e.modules.Get(BindingsModule); !ok {
		e.modules.Inject(&Module{ID: BindingsModule, Exports: &Bindings{modules: e.modules}})
	}
	e.setState(Ready)

	snap := e.stats.Snapshot()
	e.logger.Debug("bootstrap ready", "dir", dir, "stats", snap.String())
	event.Emit(e.events, event.Event{Type: event.BootstrapReady, Path: dir})
	return nil
}

// preload puts the cache directory on the library search path and loads
// every shared library in manifest order, so the OS loader finds them when
// an addon that links against them is loaded.
func (e *Engine) preload(ext *Extraction) error {
	if err := e.prependLibPath(ext.Dir); err != nil {
		return err
	}
	for _, b := range ext.Binaries {
		if asset.KindOf(b.Entry.Base()) != asset.SharedLibrary {
			continue
		}
		lib, err := e.load(b.Path)
		if err != nil {
			return fmt.Errorf("preload %s: %w", b.Entry.AssetKey, err)
		}
		e.libraries = append(e.libraries, lib)
		e.stats.AddLibrariesLoaded(1)
		event.Emit(e.events, event.Event{Type: event.LibraryPreloaded, Key: b.Entry.AssetKey, Path: b.Path})
	}
	return nil
}

// Manifest returns the loaded manifest, or nil before extraction.
func (e *Engine) Manifest() *manifest.Manifest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifest
}

// Extraction returns the extraction result, or nil before extraction.
func (e *Engine) Extraction() *Extraction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extraction
}

// Assets returns the embedded asset store, or nil when inert.
func (e *Engine) Assets() *Assets { return e.assets }

// Interceptor returns the interception context, or nil when inert.
func (e *Engine) Interceptor() *Interceptor { return e.interc }

// Modules returns the module cache, or nil when inert.
func (e *Engine) Modules() *ModuleCache { return e.modules }

// Stats returns the engine's counters.
func (e *Engine) Stats() *stats.Collector { return e.stats }

// Require resolves and loads a native module.
func (e *Engine) Require(request string) (*Module, error) {
	if e.modules == nil {
		return nil, ErrNotReady
	}
	return e.modules.Require(request)
}

var current atomic.Pointer[Engine]

// Main bootstraps the running executable and calls main. Any failure is
// fatal.
func Main(main func(), opts ...Option) {
	host := blob.NewSelfHost()
	e := New(host, opts...)
	current.Store(e)
	if err := e.Run(main); err != nil {
		e.fatal(err)
	}
}

// Current returns the engine started by Main, or nil.
func Current() *Engine {
	return current.Load()
}

// Asset returns the plaintext of an embedded asset through the engine
// started by Main.
func Asset(key string) ([]byte, error) {
	e := Current()
	if e == nil || e.assets == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrNotReady)
	}
	return e.assets.Get(key)
}

// Require resolves a native module through the engine started by Main.
func Require(request string) (*Module, error) {
	e := Current()
	if e == nil {
		return nil, ErrNotReady
	}
	return e.Require(request)
}

// Fatal reports err and exits the process with status 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "sepack bootstrap: %v\n", err)
	os.Exit(1)
}
