package types

import (
	"time"

	"github.com/paulmach/orb"
)

// Building is a footprint with a usable height, in whichever coordinate
// system the owning stage works in (geographic when loaded, metric after
// projection).
type Building struct {
	// ID is the feature id when present, otherwise "<file>#<index>".
	ID        string
	Footprint orb.Geometry // orb.Polygon or orb.MultiPolygon
	HeightM   float64
}

// Polygons returns the polygon parts of the footprint. A MultiPolygon
// building casts one shadow per part.
func (b Building) Polygons() []orb.Polygon {
	switch g := b.Footprint.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return []orb.Polygon(g)
	default:
		return nil
	}
}

// Road is one line feature read from an infrastructure collection.
type Road struct {
	Source   string       // file the road was read from
	Index    int          // position of the feature in Source
	Geometry orb.Geometry // orb.LineString or orb.MultiLineString

	// Properties holds passthrough attributes (id, osm_id, highway, name)
	// copied onto every shaded segment of this road.
	Properties map[string]any
}

// SunPosition is the apparent position of the sun for one observer and
// instant. Azimuth is measured clockwise from true north in [0,360).
type SunPosition struct {
	ElevationDeg float64 `json:"elevation_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
}

// BelowHorizon reports whether the sun is at or below the horizon.
func (s SunPosition) BelowHorizon() bool {
	return s.ElevationDeg <= 0
}

// ShadedSegment is one continuous piece of road inside the shadow region.
type ShadedSegment struct {
	Geometry   orb.LineString
	LengthM    float64
	Properties map[string]any
}

// FailureReason names why a single road could not be shaded.
type FailureReason string

const (
	FailureInvalidGeometry FailureReason = "invalid_geometry"
	FailureNonFinite       FailureReason = "non_finite_coordinates"
	FailureEngine          FailureReason = "intersection_failed"
	FailureRepair          FailureReason = "repair_failed"
	FailureProjection      FailureReason = "projection_failed"
	FailurePanic           FailureReason = "panic_recovered"
)

// RoadResult is the outcome of shading one road: either zero or more
// metric segments, or a failure reason. A failed road never contributes
// segments.
type RoadResult struct {
	Road     Road
	Segments []orb.LineString
	Reason   FailureReason
	Err      error
}

// Failed reports whether the road was skipped.
func (r RoadResult) Failed() bool {
	return r.Reason != ""
}

// RoadFailure is the report entry for a skipped road.
type RoadFailure struct {
	Source  string        `json:"source"`
	Index   int           `json:"index"`
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message,omitempty"`
}

// SkipReason names why an input feature was excluded during loading.
type SkipReason string

const (
	SkipMissingHeight     SkipReason = "missing_height"
	SkipNonNumericHeight  SkipReason = "non_numeric_height"
	SkipNonPositiveHeight SkipReason = "non_positive_height"
	SkipNoGeometry        SkipReason = "no_geometry"
	SkipWrongGeometryType SkipReason = "wrong_geometry_type"
	SkipInvalidGeometry   SkipReason = "invalid_geometry"
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID     string `json:"run_id"`
	TargetCRS string `json:"target_crs"`

	Sun                   SunPosition `json:"sun"`
	EffectiveElevationDeg float64     `json:"effective_elevation_deg"`
	SunBelowHorizon       bool        `json:"sun_below_horizon"`

	BuildingsLoaded  int                `json:"buildings_loaded"`
	BuildingsSkipped map[SkipReason]int `json:"buildings_skipped,omitempty"`
	RoadsLoaded      int                `json:"roads_loaded"`
	RoadsSkipped     map[SkipReason]int `json:"roads_skipped,omitempty"`
	MissingRoadFiles []string           `json:"missing_road_files,omitempty"`

	ShadowPolygons int           `json:"shadow_polygons"`
	ShadedSegments int           `json:"shaded_segments"`
	ShadedLengthM  float64       `json:"shaded_length_m"`
	RoadFailures   []RoadFailure `json:"road_failures,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}
