package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"shadowroads/internal/types"
)

const promNamespace = "shadowroads"

// Textfile writes the run as a Prometheus text-format file for the node
// exporter's textfile collector. Each run replaces the previous file.
type Textfile struct {
	path string
}

var _ Publisher = (*Textfile)(nil)

// NewTextfile creates a publisher that writes to path, which should end in
// ".prom" and live in the collector's directory.
func NewTextfile(path string) *Textfile {
	return &Textfile{path: path}
}

// PublishRun implements Publisher.
func (t *Textfile) PublishRun(_ context.Context, r *types.RunReport) error {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"target_crs": r.TargetCRS}

	gauge := func(name, help string, value float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   promNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(value)
		reg.MustRegister(g)
	}

	gauge("last_run_timestamp_seconds", "Unix time the last run finished.", float64(r.StartedAt.Add(r.Duration).Unix()))
	gauge("run_duration_seconds", "Wall time of the last run.", r.Duration.Seconds())
	gauge("buildings_loaded", "Buildings with a usable height.", float64(r.BuildingsLoaded))
	gauge("roads_loaded", "Road features loaded across all infrastructure files.", float64(r.RoadsLoaded))
	gauge("shadow_polygons", "Polygons in the aggregated shadow region.", float64(r.ShadowPolygons))
	gauge("shaded_segments", "Shaded road segments written.", float64(r.ShadedSegments))
	gauge("shaded_length_meters", "Total length of shaded road segments.", r.ShadedLengthM)
	gauge("sun_elevation_degrees", "Apparent solar elevation.", r.Sun.ElevationDeg)
	gauge("sun_azimuth_degrees", "Solar azimuth clockwise from north.", r.Sun.AzimuthDeg)
	gauge("sun_below_horizon", "1 if the elevation floor was applied.", boolValue(r.SunBelowHorizon))

	skipped := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   promNamespace,
		Name:        "features_skipped",
		Help:        "Input features excluded during loading.",
		ConstLabels: labels,
	}, []string{"kind", "reason"})
	for reason, n := range r.BuildingsSkipped {
		skipped.WithLabelValues("building", string(reason)).Set(float64(n))
	}
	for reason, n := range r.RoadsSkipped {
		skipped.WithLabelValues("road", string(reason)).Set(float64(n))
	}
	reg.MustRegister(skipped)

	failures := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   promNamespace,
		Name:        "road_failures",
		Help:        "Roads skipped during shading.",
		ConstLabels: labels,
	}, []string{"reason"})
	for _, f := range r.RoadFailures {
		failures.WithLabelValues(string(f.Reason)).Inc()
	}
	reg.MustRegister(failures)

	if err := prometheus.WriteToTextfile(t.path, reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", t.path, err)
	}
	return nil
}
