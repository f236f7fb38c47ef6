// Package main is the entrypoint for the shadowroads CLI.
//
// The CLI computes the shadow cast by every building for one observer and
// instant, then reports which stretches of road lie inside it:
//
//	shadowroads run --config sombra_config.yaml
//	shadowroads run --buildings b.geojson --infra roads.geojson --datetime "2025-01-15 12:00:00"
//	shadowroads sun --lat -33.44 --lon -70.65 --datetime "2025-01-15 12:00:00" --timezone America/Santiago
//
// Configuration comes from the environment (SHADOW_*), an optional .env
// file and an optional YAML run file, with flags applied last. The process
// exit status names the fatal condition (see types.ErrorCode.ExitCode).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"shadowroads/internal/config"
	"shadowroads/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command tree and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return types.ExitOK
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "shadowroads",
		Short: "Compute building shadows and the road segments they cover",
		Long: `shadowroads projects building footprints into a metric reference system,
casts each shadow for the sun position at a given place and time, merges
them into one region and clips every road to it.

Outputs are two GeoJSON FeatureCollections: the shadow region and the
shaded road segments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd(), newSunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := config.NewBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "shadowroads %s\n", info)
		},
	}
}

// newLogger builds the slog handler selected by the logging config.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// exitCode maps a command error to a process exit status. Configuration
// errors are config_invalid.
func exitCode(err error) int {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return types.ErrCodeConfigInvalid.ExitCode()
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return types.ExitCodeOf(err)
}
