package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/sepack/internal/logx"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	verbose bool
	quiet   bool
	logFile string
	logOut  io.Closer
}

func run(args []string, stdout, stderr io.Writer) int {
	g := &globals{}
	rootCmd := newRootCmd(g, stdout, stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if g.logOut != nil {
		g.logOut.Close()
	}
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(g *globals, stdout, stderr io.Writer) *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "sepack",
		Short: "Package an application and its native binaries into a single executable",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return g.setupLogging(stderr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(stdout, "sepack %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().
		StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(
		newBuildCmd(stdout),
		newInspectCmd(stdout),
		newVerifyCmd(stdout),
		newExtractCmd(stdout),
		newDocsCmd(),
	)
	return rootCmd
}

// setupLogging installs the default logger: console output at the level the
// flags select, plus a debug-level JSON log when --log is given.
func (g *globals) setupLogging(stderr io.Writer) error {
	level := slog.LevelInfo
	switch {
	case g.quiet:
		level = slog.LevelError
	case g.verbose:
		level = slog.LevelDebug
	}
	handler := logx.ConsoleHandler(stderr, level)
	if g.logFile != "" {
		lf, err := os.Create(g.logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logOut = lf
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = logx.NewMultiHandler(handler, jsonHandler)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
