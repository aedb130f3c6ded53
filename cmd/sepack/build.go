package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/sepack/internal/config"
	"github.com/bamsammich/sepack/internal/pack"
	"github.com/bamsammich/sepack/internal/platform"
	"github.com/bamsammich/sepack/internal/stats"
)

// targetFlag is a repeatable pflag.Value that rejects malformed targets at
// parse time.
type targetFlag struct {
	targets []string
}

var _ pflag.Value = (*targetFlag)(nil)

func (f *targetFlag) String() string { return strings.Join(f.targets, ",") }
func (*targetFlag) Type() string     { return "platform-arch" }

func (f *targetFlag) Set(val string) error {
	for _, s := range strings.Split(val, ",") {
		t, err := platform.Parse(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		f.targets = append(f.targets, t.String())
	}
	return nil
}

type buildFlags struct {
	configPath string
	targets    targetFlag
	output     string
	noEncrypt  bool
	noVerify   bool
	noCompress bool
}

func newBuildCmd(stdout io.Writer) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build packaged executables from a sepack.toml",
		Long: `Build packaged executables from a sepack.toml.

The application root is scanned, native binaries are planned for extraction,
eligible assets are optionally encrypted, and the resulting container is
appended to the runtime executable of every configured target.

Settings the project file leaves unset fall back to the user defaults in
$XDG_CONFIG_HOME/sepack/config.toml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, stdout, &f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", config.FileName, "project build file")
	cmd.Flags().VarP(&f.targets, "target", "t", "target platform-arch, repeatable (e.g. linux-x64)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output path, overriding the build file")
	cmd.Flags().BoolVar(&f.noEncrypt, "no-encrypt", false, "store every asset in plaintext")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "skip re-reading the output after packing")
	cmd.Flags().BoolVar(&f.noCompress, "no-compress", false, "store assets uncompressed")
	return cmd
}

func runBuild(cmd *cobra.Command, stdout io.Writer, f *buildFlags) error {
	cfg, err := config.LoadFile(f.configPath)
	if err != nil {
		return err
	}

	user, err := config.Load()
	if err != nil {
		slog.Warn("failed to load user config", "path", config.Path(), "error", err)
	}
	cfg.ApplyDefaults(user.Defaults)

	off := false
	if cmd.Flags().Changed("target") {
		cfg.Targets = f.targets.targets
	}
	if f.output != "" {
		abs, err := filepath.Abs(f.output)
		if err != nil {
			return err
		}
		cfg.Output = abs
	}
	if f.noEncrypt {
		cfg.Encryption.Enabled = &off
	}
	if f.noVerify {
		cfg.Verify = &off
	}
	if f.noCompress {
		cfg.Compress = &off
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	results, err := pack.Build(ctx, cfg, pack.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%s  %s  %d assets  %d binaries  %d encrypted  %s\n",
			r.Target, r.Output, r.Assets, r.Binaries, r.Encrypted, stats.FormatBytes(r.Container))
		if r.KeySource != "" {
			fmt.Fprintf(stdout, "key source written to %s\n", r.KeySource)
		}
	}
	slog.Debug("build finished", "targets", len(results), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
