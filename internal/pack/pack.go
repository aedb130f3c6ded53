// Package pack turns a build config into packaged executables: scan the
// application, plan extraction, encrypt, serialize the container and append
// it to the runtime for every target.
package pack

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bamsammich/sepack/internal/asset"
	"github.com/bamsammich/sepack/internal/blob"
	"github.com/bamsammich/sepack/internal/config"
	"github.com/bamsammich/sepack/internal/crypt"
	"github.com/bamsammich/sepack/internal/manifest"
	"github.com/bamsammich/sepack/internal/platform"
	"github.com/bamsammich/sepack/internal/scan"
	"github.com/bamsammich/sepack/internal/stats"
)

// Result reports one packaged target.
type Result struct {
	Target    platform.Target
	Output    string
	Manifest  *manifest.Manifest
	Assets    int
	Binaries  int
	Encrypted int
	Container int64
	Inject    blob.InjectResult
	KeySource string
}

// Option configures Build.
type Option func(*builder)

// WithLogger sets the build logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithObfuscator transforms the generated key source.
func WithObfuscator(o crypt.Obfuscator) Option {
	return func(b *builder) { b.obf = o }
}

type builder struct {
	cfg    *config.Build
	logger *slog.Logger
	obf    crypt.Obfuscator
}

// Build packages cfg for each of its targets.
func Build(ctx context.Context, cfg *config.Build, opts ...Option) ([]Result, error) {
	b := &builder{cfg: cfg, logger: slog.Default(), obf: crypt.NopObfuscator{}}
	for _, opt := range opts {
		opt(b)
	}

	set, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}
	assets := set.All()

	var (
		sealed    map[string][]byte
		masked    crypt.MaskedKey
		keySource string
	)
	if cfg.EncryptEnabled() {
		key, err := b.key()
		if err != nil {
			return nil, err
		}
		sealed, err = crypt.EncryptAssets(assets, key, cfg.Encryption.Exclude)
		if err != nil {
			return nil, err
		}
		if masked, err = crypt.Mask(key); err != nil {
			return nil, err
		}
		if cfg.Encryption.KeySource != "" {
			if keySource, err = b.writeKeySource(masked); err != nil {
				return nil, err
			}
		}
		b.logger.Info("encrypted assets", "count", len(sealed))
	}

	targets, err := cfg.TargetList()
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := b.target(t, len(targets) > 1, assets, sealed, masked)
		if err != nil {
			return results, fmt.Errorf("%s: %w", t, err)
		}
		res.KeySource = keySource
		results = append(results, res)
	}
	return results, nil
}

func (b *builder) scan(ctx context.Context) (*asset.Set, error) {
	cfg := b.cfg
	rules := scan.NewRules()
	for _, p := range cfg.Include {
		if err := rules.Include(p); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Exclude {
		if err := rules.Exclude(p); err != nil {
			return nil, err
		}
	}
	if cfg.IgnoreFile != "" {
		if err := rules.LoadFile(cfg.Resolve(cfg.IgnoreFile)); err != nil {
			return nil, err
		}
	}

	binRules := scan.NewRules()
	for _, p := range cfg.Binaries {
		if err := binRules.Include(p); err != nil {
			return nil, err
		}
	}

	var maxSize int64
	if cfg.MaxAssetSize != "" {
		n, err := scan.ParseSize(cfg.MaxAssetSize)
		if err != nil {
			return nil, fmt.Errorf("max_asset_size: %w", err)
		}
		maxSize = n
	}

	extra := make([]*asset.Asset, 0, len(cfg.Assets))
	for _, ia := range cfg.Assets {
		a := &asset.Asset{Key: ia.Key, IsBinary: ia.Binary}
		if ia.Source != "" {
			a.SourcePath = cfg.Resolve(ia.Source)
		} else {
			a.Content = []byte(ia.Content)
		}
		extra = append(extra, a)
	}

	root := ""
	if cfg.Root != "" {
		root = cfg.Resolve(cfg.Root)
	}
	return scan.Scan(ctx, scan.Options{
		Root:      root,
		KeyPrefix: cfg.KeyPrefix,
		Rules:     rules,
		MaxSize:   maxSize,
		IsBinary: func(key string) bool {
			return asset.IsBinaryName(key) || binRules.Any(key, false)
		},
		Extra:  extra,
		Logger: b.logger,
	})
}

// key loads the persisted key, creating it on first use. Without a key file
// every build gets a fresh key.
func (b *builder) key() ([]byte, error) {
	if b.cfg.Encryption.KeyFile == "" {
		return crypt.GenerateKey()
	}
	path := b.cfg.Resolve(b.cfg.Encryption.KeyFile)
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		if len(key) != crypt.KeySize {
			return nil, fmt.Errorf("key file %s: %w", path, crypt.ErrKeySize)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("key file: %w", err)
	}
	key, err := crypt.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	b.logger.Info("generated key file", "path", path)
	return key, nil
}

func (b *builder) writeKeySource(masked crypt.MaskedKey) (string, error) {
	pkg := b.cfg.Encryption.KeyPackage
	if pkg == "" {
		pkg = "main"
	}
	src, err := crypt.RenderKeySource(pkg, masked, b.obf)
	if err != nil {
		return "", err
	}
	path := b.cfg.Resolve(b.cfg.Encryption.KeySource)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, src, 0o600); err != nil {
		return "", fmt.Errorf("write key source: %w", err)
	}
	return path, nil
}

func (b *builder) target(
	t platform.Target,
	multi bool,
	assets []*asset.Asset,
	sealed map[string][]byte,
	masked crypt.MaskedKey,
) (Result, error) {
	cfg := b.cfg
	var mopts []manifest.Option
	if cfg.CacheLocation != "" {
		mopts = append(mopts, manifest.WithCacheLocation(cfg.CacheLocation))
	}
	if cfg.PlatformAgnostic {
		mopts = append(mopts, manifest.WithPlatformAgnostic())
	}
	m, err := manifest.Build(cfg.Name, cfg.Version, assets, t, mopts...)
	if err != nil {
		return Result{}, err
	}
	mdata, err := manifest.Marshal(m)
	if err != nil {
		return Result{}, err
	}

	var cflag blob.Flags
	if cfg.CompressEnabled() {
		cflag = blob.Compress
	}
	w := blob.NewWriter()
	w.Add(manifest.Key, mdata, cflag)
	for _, a := range assets {
		if ct, ok := sealed[a.Key]; ok {
			w.Add(a.Key, ct, blob.Encrypted)
			continue
		}
		data, err := a.Bytes()
		if err != nil {
			return Result{}, err
		}
		w.Add(a.Key, data, cflag)
	}
	if len(sealed) > 0 && cfg.EmbedKeyEnabled() {
		w.SetMeta(blob.Meta{KeyData: masked.Data, KeyMask: masked.Mask})
	}
	container, err := w.Bytes()
	if err != nil {
		return Result{}, err
	}

	runtime, err := cfg.RuntimeFor(t)
	if err != nil {
		return Result{}, err
	}
	out := cfg.OutputFor(t, multi)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}
	ir, err := blob.Inject(runtime, container, out)
	if err != nil {
		return Result{}, err
	}
	if cfg.VerifyEnabled() {
		if _, err := Verify(out); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Target:    t,
		Output:    out,
		Manifest:  m,
		Assets:    len(assets),
		Binaries:  len(m.Binaries),
		Encrypted: len(sealed),
		Container: int64(len(container)),
		Inject:    ir,
	}
	b.logger.Info("packed",
		"target", t.String(),
		"output", out,
		"assets", res.Assets,
		"binaries", res.Binaries,
		"encrypted", res.Encrypted,
		"container", stats.FormatBytes(res.Container),
		"copy", ir.Method.String(),
	)
	return res, nil
}
