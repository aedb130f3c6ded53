package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bamsammich/sepack/bootstrap"
	"github.com/bamsammich/sepack/internal/blob"
	"github.com/bamsammich/sepack/internal/cachedir"
	"github.com/bamsammich/sepack/internal/event"
	"github.com/bamsammich/sepack/internal/manifest"
	"github.com/bamsammich/sepack/internal/platform"
	"github.com/bamsammich/sepack/internal/stats"
)

func newExtractCmd(stdout io.Writer) *cobra.Command {
	var (
		cacheDir string
		target   string
	)
	cmd := &cobra.Command{
		Use:   "extract <executable>",
		Short: "Populate the extraction cache of a packaged executable without running it",
		Long: `Populate the extraction cache of a packaged executable without running it.

The binaries planned for the host (or --target) are written to the cache
directory the executable would use on its first start. Files already present
with a matching hash are left alone. Libraries are not loaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := extractOptions{path: args[0], cacheDir: cacheDir}
			if target != "" {
				t, err := platform.Parse(target)
				if err != nil {
					return err
				}
				opts.target = &t
			}
			return runExtract(stdout, opts)
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache root, overriding "+cachedir.EnvOverride)
	cmd.Flags().StringVarP(&target, "target", "t", "", "extract for platform-arch instead of the host")
	return cmd
}

type extractOptions struct {
	path     string
	cacheDir string
	target   *platform.Target
}

func runExtract(stdout io.Writer, o extractOptions) error {
	host := blob.NewFileHost(o.path)
	defer host.Close()
	if err := host.Err(); err != nil {
		return fmt.Errorf("%s: %w", o.path, err)
	}
	if !host.IsPackaged() {
		return fmt.Errorf("%s: %w", o.path, blob.ErrNoBlob)
	}

	env := cachedir.HostEnv()
	if o.cacheDir != "" {
		lookup := env.Lookup
		env.Lookup = func(k string) (string, bool) {
			if k == cachedir.EnvOverride {
				return o.cacheDir, true
			}
			return lookup(k)
		}
	}

	events := make(chan event.Event, eventCapacity(host))
	collector := stats.NewCollector()
	opts := []bootstrap.Option{
		bootstrap.WithLogger(slog.Default()),
		bootstrap.WithStats(collector),
		bootstrap.WithEvents(events),
		bootstrap.WithLoader(func(path string) (*platform.Library, error) {
			return &platform.Library{Path: path}, nil
		}),
		bootstrap.WithLibraryPath(func(string) error { return nil }),
	}
	if o.target != nil {
		env.Platform = o.target.Platform
		opts = append(opts, bootstrap.WithTarget(*o.target))
	}
	opts = append(opts, bootstrap.WithCacheEnv(env))

	e := bootstrap.New(host, opts...)
	err := e.Run(func() {})
	close(events)
	printEvents(stdout, events)
	if err != nil {
		return err
	}

	if x := e.Extraction(); x != nil {
		fmt.Fprintf(stdout, "cache: %s\n", x.Dir)
	}
	fmt.Fprintln(stdout, collector.Snapshot())
	return nil
}

// eventCapacity sizes the event buffer so no binary event is dropped: at most
// two per binary (extracted or skipped, then preloaded) plus the lifecycle
// events.
func eventCapacity(host *blob.SelfHost) int {
	const lifecycle = 8
	data, err := host.RawAsset(manifest.Key)
	if err != nil {
		return lifecycle
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return lifecycle
	}
	return 2*len(m.Binaries) + lifecycle
}

// printEvents writes one line per extracted, skipped or failed binary.
func printEvents(w io.Writer, events <-chan event.Event) {
	for ev := range events {
		switch ev.Type {
		case event.ExtractStarted:
			fmt.Fprintf(w, "extracting %d binaries\n", ev.Total)
		case event.BinaryExtracted:
			fmt.Fprintf(w, "%s  %s\n", ev.Path, stats.FormatBytes(ev.Size))
		case event.BinarySkipped:
			fmt.Fprintf(w, "%s  up to date\n", ev.Path)
		case event.BinaryFailed:
			msg := "error"
			if ev.Error != nil {
				msg = ev.Error.Error()
			}
			fmt.Fprintf(w, "%s  %s\n", ev.Key, msg)
		default:
		}
	}
}
