package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"shadowroads/internal/config"
	"shadowroads/internal/engine"
	"shadowroads/internal/geoio"
	"shadowroads/internal/pipeline"
	"shadowroads/internal/projection"
	"shadowroads/internal/solar"
	"shadowroads/internal/telemetry"
	"shadowroads/internal/types"
)

// runFlags are command-line overrides applied on top of the loaded config.
type runFlags struct {
	configPath  string
	lat         float64
	lon         float64
	datetime    string
	timezone    string
	crs         string
	buildings   string
	infra       []string
	shadows     string
	shadedRoads string
	workers     int
	printReport bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the shadow region and shaded roads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, &f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML run file (sombra_config.yaml keys)")
	fs.Float64Var(&f.lat, "lat", 0, "observer latitude in degrees")
	fs.Float64Var(&f.lon, "lon", 0, "observer longitude in degrees")
	fs.StringVar(&f.datetime, "datetime", "", `local date and time, "YYYY-MM-DD HH:MM:SS"`)
	fs.StringVar(&f.timezone, "timezone", "", "IANA zone of --datetime")
	fs.StringVar(&f.crs, "crs", "", `planar reference: EPSG code, "+proj=" string or "auto"`)
	fs.StringVar(&f.buildings, "buildings", "", "buildings GeoJSON with height_m")
	fs.StringSliceVar(&f.infra, "infra", nil, "road GeoJSON files (repeatable)")
	fs.StringVar(&f.shadows, "shadows", "", "shadow region output")
	fs.StringVar(&f.shadedRoads, "shaded-roads", "", "shaded roads output")
	fs.IntVar(&f.workers, "workers", 0, "parallel workers")
	fs.BoolVar(&f.printReport, "report", false, "print the run report as JSON instead of a summary")

	return cmd
}

func runPipeline(cmd *cobra.Command, f *runFlags) error {
	ctx := cmd.Context()

	var sources []config.Source
	if f.configPath != "" {
		sources = append(sources, config.NewFileSource(f.configPath))
	}
	cfg, err := loadWithOverrides(cmd, sources, os.Setenv)
	if err != nil {
		return err
	}

	base := newLogger(cmd.ErrOrStderr(), cfg.Logging)
	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	logger := base.With("run_id", runID)

	params, err := pipeline.ParamsFromConfig(cfg)
	if err != nil {
		return err
	}

	proj, err := projection.New(cfg.Run.CRS())
	if err != nil {
		return err
	}

	logger.Info("starting run",
		"version", cfg.Build.Version,
		"target_crs", proj.Name(),
		"buildings", params.BuildingsPath,
		"infra_files", len(params.InfraPaths),
		"workers", params.Workers,
	)

	runner := pipeline.NewRunner(engine.New(), proj, solar.NewNOAA(cfg.Run.Refraction), geoio.NewStore(logger), base)
	report, err := runner.Run(ctx, params)
	if err != nil {
		attrs := []any{"code", string(types.CodeOf(err)), "error", err.Error()}
		var appErr *types.AppError
		if errors.As(err, &appErr) && len(appErr.Details) > 0 {
			attrs = append(attrs, "details", appErr.Details)
		}
		logger.Error("run failed", attrs...)
		return err
	}

	telemetry.Publish(ctx, newPublisher(cmd, cfg, logger), report, logger)

	if f.printReport {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printSummary(cmd.OutOrStdout(), report)
	return nil
}

// flagEnv maps run flags to the variables they override. Flags win over
// the environment, the .env file and the run file.
var flagEnv = map[string]string{
	"lat":          "SHADOW_CENTER_LAT",
	"lon":          "SHADOW_CENTER_LON",
	"datetime":     "SHADOW_DATETIME_LOCAL",
	"timezone":     "SHADOW_TIMEZONE",
	"crs":          "SHADOW_TARGET_CRS",
	"buildings":    "SHADOW_BUILDINGS_GEOJSON",
	"infra":        "SHADOW_INFRA_FILES",
	"shadows":      "SHADOW_SHADOWS_GEOJSON",
	"shaded-roads": "SHADOW_SHADED_ROADS_GEOJSON",
	"workers":      "SHADOW_WORKERS",
}

// loadWithOverrides exports every flag the user set to its variable and
// loads the configuration.
func loadWithOverrides(cmd *cobra.Command, sources []config.Source, setenv func(key, value string) error) (*config.Config, error) {
	var err error
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		key, ok := flagEnv[fl.Name]
		if !ok || err != nil {
			return
		}
		value := fl.Value.String()
		if sv, isSlice := fl.Value.(pflag.SliceValue); isSlice {
			value = strings.Join(sv.GetSlice(), ",")
		}
		if setErr := setenv(key, value); setErr != nil {
			err = fmt.Errorf("applying --%s: %w", fl.Name, setErr)
		}
	})
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(sources...)
}

// newPublisher assembles the configured metrics sinks.
func newPublisher(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) telemetry.Publisher {
	obs := cfg.Observability

	var sinks telemetry.Multi
	if obs.MetricsTextfile != "" {
		sinks = append(sinks, telemetry.NewTextfile(obs.MetricsTextfile))
	}
	if obs.CloudWatchEnabled {
		client, err := telemetry.NewCloudWatchClient(cmd.Context(), obs.AWSRegion, obs.AWSEndpointURL)
		if err != nil {
			logger.Warn("CloudWatch disabled, failed to load AWS config", "error", err.Error())
		} else {
			sinks = append(sinks, telemetry.NewCloudWatch(client, obs.MetricNamespace))
		}
	}

	if len(sinks) == 0 {
		return telemetry.Noop{}
	}
	return sinks
}

func printSummary(w io.Writer, r *types.RunReport) {
	fmt.Fprintf(w, "sun: elevation %.2f°, azimuth %.2f°", r.Sun.ElevationDeg, r.Sun.AzimuthDeg)
	if r.SunBelowHorizon {
		fmt.Fprintf(w, " (below horizon, shadows use %.2f°)", r.EffectiveElevationDeg)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "buildings: %d loaded, %d skipped\n", r.BuildingsLoaded, sum(r.BuildingsSkipped))
	fmt.Fprintf(w, "roads: %d loaded, %d skipped, %d failed\n", r.RoadsLoaded, sum(r.RoadsSkipped), len(r.RoadFailures))
	fmt.Fprintf(w, "shadow polygons: %d\n", r.ShadowPolygons)
	fmt.Fprintf(w, "shaded segments: %d (%.1f m)\n", r.ShadedSegments, r.ShadedLengthM)
}

func sum(m map[types.SkipReason]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
