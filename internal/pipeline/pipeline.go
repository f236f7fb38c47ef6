// Package pipeline runs one shadow computation end to end: load inputs,
// locate the sun, cast and merge building shadows, clip every road to the
// merged region and write both outputs.
//
// Casting and shading fan out across a bounded worker pool. Every worker
// writes only its own slot of a preallocated slice, so results keep input
// order regardless of scheduling and the outputs of two runs with the same
// inputs are byte-identical.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"shadowroads/internal/config"
	"shadowroads/internal/geoio"
	"shadowroads/internal/projection"
	"shadowroads/internal/roads"
	"shadowroads/internal/shadow"
	"shadowroads/internal/types"
)

// Params are the resolved settings of one run.
type Params struct {
	Lat  float64
	Lon  float64
	When time.Time

	BuildingsPath   string
	InfraPaths      []string
	ShadowsPath     string
	ShadedRoadsPath string

	MinElevationDeg    float64
	SimplifyToleranceM float64
	Workers            int
}

// ParamsFromConfig extracts the run parameters from a validated Config.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	when, err := cfg.Run.When()
	if err != nil {
		return Params{}, types.NewAppError(types.ErrCodeConfigInvalid, "invalid run datetime", err)
	}
	return Params{
		Lat:                cfg.Run.CenterLat,
		Lon:                cfg.Run.CenterLon,
		When:               when,
		BuildingsPath:      cfg.IO.BuildingsPath,
		InfraPaths:         cfg.IO.InfraPaths,
		ShadowsPath:        cfg.IO.ShadowsPath,
		ShadedRoadsPath:    cfg.IO.ShadedRoadsPath,
		MinElevationDeg:    cfg.Run.MinElevationDeg,
		SimplifyToleranceM: cfg.Run.SimplifyToleranceM,
		Workers:            cfg.Run.Workers,
	}, nil
}

// Runner holds the capabilities a run depends on.
type Runner struct {
	engine     types.GeometryEngine
	projection types.ProjectionProvider
	solar      types.SolarPositionProvider
	store      *geoio.Store
	logger     *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(
	engine types.GeometryEngine,
	proj types.ProjectionProvider,
	solar types.SolarPositionProvider,
	store *geoio.Store,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:     engine,
		projection: proj,
		solar:      solar,
		store:      store,
		logger:     logger,
	}
}

// Run executes the pipeline. On any fatal condition it returns an AppError
// and leaves existing output files untouched; per-road failures are
// recorded in the report instead.
func (r *Runner) Run(ctx context.Context, p Params) (_ *types.RunReport, err error) {
	start := time.Now()

	runID := types.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With("run_id", runID)

	stage := "sun"
	defer func() {
		if err != nil {
			err = withStage(err, stage)
		}
	}()

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	report := &types.RunReport{
		RunID:     runID,
		TargetCRS: r.projection.Name(),
		StartedAt: start.UTC(),
	}

	// Sun
	sun := r.solar.Position(p.Lat, p.Lon, p.When)
	report.Sun = sun
	report.EffectiveElevationDeg = shadow.EffectiveElevation(sun.ElevationDeg, p.MinElevationDeg)
	report.SunBelowHorizon = sun.BelowHorizon()
	logger.Info("sun position computed",
		"at", p.When.Format(time.RFC3339),
		"elevation_deg", sun.ElevationDeg,
		"azimuth_deg", sun.AzimuthDeg,
	)
	if report.SunBelowHorizon {
		logger.Warn("sun at or below the horizon, shadows use the elevation floor",
			"elevation_deg", sun.ElevationDeg,
			"floor_deg", p.MinElevationDeg,
		)
	}

	// Inputs
	stage = "load"
	buildings, err := r.store.ReadBuildings(p.BuildingsPath)
	if err != nil {
		return nil, err
	}
	report.BuildingsLoaded = len(buildings.Buildings)
	report.BuildingsSkipped = buildings.Skipped
	if len(buildings.Buildings) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNoBuildings,
			"no buildings with a usable height_m", nil, map[string]any{"path": p.BuildingsPath})
	}

	infra, err := r.store.ReadRoads(p.InfraPaths)
	if err != nil {
		return nil, err
	}
	report.RoadsLoaded = len(infra.Roads)
	report.RoadsSkipped = infra.Skipped
	report.MissingRoadFiles = infra.Missing
	if len(infra.Roads) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNoRoads,
			"no road geometries in the infrastructure files", nil, map[string]any{"paths": p.InfraPaths})
	}

	// Shadows
	stage = "cast"
	polys, err := r.castAll(ctx, buildings.Buildings, sun, p.MinElevationDeg, workers)
	if err != nil {
		return nil, err
	}
	region, err := shadow.UnionAll(r.engine, polys)
	if err != nil {
		return nil, err
	}
	report.ShadowPolygons = len(region)
	logger.Info("shadow region built", "buildings", len(buildings.Buildings), "shadows", len(polys), "parts", len(region))

	// Roads
	stage = "shade"
	results, err := r.shadeAll(ctx, infra.Roads, region, p.SimplifyToleranceM, workers)
	if err != nil {
		return nil, err
	}
	segments, failures := roads.Collect(results, r.toGeographicLine)
	report.ShadedSegments = len(segments)
	report.RoadFailures = failures
	for _, s := range segments {
		report.ShadedLengthM += s.LengthM
	}
	for _, f := range failures {
		logger.Warn("road skipped", "source", f.Source, "index", f.Index, "reason", string(f.Reason), "error", f.Message)
	}

	// Outputs
	stage = "write"
	geoRegion, err := projection.ToGeographic(region, r.projection)
	if err != nil {
		return nil, err
	}
	shadowsData, err := geoio.EncodeShadows(geoRegion.(orb.MultiPolygon))
	if err != nil {
		return nil, err
	}
	roadsData, err := geoio.EncodeShadedRoads(segments)
	if err != nil {
		return nil, err
	}
	if err := r.store.Commit(
		geoio.Output{Path: p.ShadowsPath, Data: shadowsData},
		geoio.Output{Path: p.ShadedRoadsPath, Data: roadsData},
	); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	logger.Info("run complete",
		"shadow_polygons", report.ShadowPolygons,
		"shaded_segments", report.ShadedSegments,
		"shaded_length_m", report.ShadedLengthM,
		"road_failures", len(report.RoadFailures),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// withStage records which stage of the run a fatal AppError came from.
// Other errors, such as context cancellation, pass through unchanged.
func withStage(err error, stage string) error {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	return appErr.WithDetails(map[string]any{"stage": stage})
}

// castAll projects every building and casts one shadow per polygon part.
// The first failure cancels the remaining work and is returned.
func (r *Runner) castAll(ctx context.Context, buildings []types.Building, sun types.SunPosition, minElev float64, workers int) ([]orb.Polygon, error) {
	slots := make([][]orb.Polygon, len(buildings))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, b := range buildings {
		i, b := i, b
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			metric, err := projection.ToMetric(b.Footprint, r.projection)
			if err != nil {
				return fmt.Errorf("building %s: %w", b.ID, err)
			}
			b.Footprint = metric

			parts := b.Polygons()
			out := make([]orb.Polygon, 0, len(parts))
			for _, part := range parts {
				poly, err := shadow.Cast(r.engine, part, b.HeightM, sun.ElevationDeg, sun.AzimuthDeg, minElev)
				if err != nil {
					return fmt.Errorf("building %s: %w", b.ID, err)
				}
				out = append(out, poly)
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var polys []orb.Polygon
	for _, s := range slots {
		polys = append(polys, s...)
	}
	return polys, nil
}

// shadeAll clips every road to region. Road failures are captured in the
// results; only cancellation aborts.
func (r *Runner) shadeAll(ctx context.Context, rs []types.Road, region orb.MultiPolygon, tolerance float64, workers int) ([]types.RoadResult, error) {
	results := make([]types.RoadResult, len(rs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, road := range rs {
		i, road := i, road
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			metric, err := projection.ToMetric(road.Geometry, r.projection)
			if err != nil {
				reason := types.FailureProjection
				if types.IsCode(err, types.ErrCodeInvalidGeometry) {
					reason = types.FailureInvalidGeometry
				}
				results[i] = types.RoadResult{Road: road, Reason: reason, Err: err}
				return nil
			}

			projected := road
			projected.Geometry = metric
			results[i] = roads.Shade(r.engine, projected, region, tolerance)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) toGeographicLine(ls orb.LineString) (orb.LineString, error) {
	g, err := projection.ToGeographic(ls, r.projection)
	if err != nil {
		return nil, err
	}
	return g.(orb.LineString), nil
}
