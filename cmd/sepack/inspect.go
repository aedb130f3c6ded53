package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bamsammich/sepack/internal/pack"
	"github.com/bamsammich/sepack/internal/stats"
)

func newInspectCmd(stdout io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <executable>",
		Short: "Show the manifest and entries of a packaged executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			info, err := pack.Inspect(args[0])
			if err != nil {
				return err
			}
			return writeInfo(stdout, info, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json or yaml)")
	return cmd
}

func writeInfo(w io.Writer, info *pack.Info, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return writeInfoText(w, info)
	default:
		return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
	}
}

func writeInfoText(w io.Writer, info *pack.Info) error {
	m := info.Manifest
	fmt.Fprintf(w, "app:       %s %s\n", m.AppName, m.AppVersion)
	fmt.Fprintf(w, "target:    %s-%s\n", m.Platform, m.Arch)
	if m.CacheLocation != "" {
		fmt.Fprintf(w, "cache:     %s\n", m.CacheLocation)
	}
	fmt.Fprintf(w, "container: %s at offset %d\n", stats.FormatBytes(info.Size), info.Offset)
	fmt.Fprintf(w, "key:       embedded=%t\n", info.KeyEmbedded)

	if len(m.Binaries) > 0 {
		fmt.Fprintln(w, "\nbinaries:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, b := range m.Binaries {
			fmt.Fprintf(tw, "  %d\t%s\t%s-%s\t%s\n", b.Order, b.AssetKey, b.Platform, b.Arch, shortHash(b.Hash))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nentries:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range info.Entries {
		var flags string
		if e.Compressed {
			flags += "z"
		}
		if e.Encrypted {
			flags += "e"
		}
		if flags == "" {
			flags = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", flags, stats.FormatBytes(e.RawSize), e.Key)
	}
	return tw.Flush()
}

func newVerifyCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <executable>",
		Short: "Check the container digest and every binary hash of a packaged executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rep, err := pack.Verify(args[0])
			if errors.Is(err, pack.ErrVerify) {
				slog.Error("verify failed", "path", args[0], "error", err)
				return &exitError{code: 1}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: ok (%d entries, %d binaries)\n", args[0], rep.Entries, rep.Binaries)
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
