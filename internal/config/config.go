// Package config defines the run configuration for the shadow pipeline.
// Configuration is loaded once at process start and is immutable
// thereafter; every stage receives the values it needs explicitly.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> YAML Run File -> Defaults (Lowest)
//
// A missing required value or an invalid format stops the run before any
// input is read.
package config

import (
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database for SHADOW_TIMEZONE

	"shadowroads/internal/projection"
	"shadowroads/internal/solar"
)

// Config is the top-level configuration struct.
type Config struct {
	Run           RunConfig
	IO            IOConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// RunConfig holds the observer, instant and numeric tuning of one run.
type RunConfig struct {
	CenterLat float64 `envconfig:"SHADOW_CENTER_LAT" required:"true" validate:"gte=-90,lte=90"`
	CenterLon float64 `envconfig:"SHADOW_CENTER_LON" required:"true" validate:"gte=-180,lte=180"`

	// DateTimeLocal is a naive wall-clock time interpreted in Timezone.
	DateTimeLocal string `envconfig:"SHADOW_DATETIME_LOCAL" validate:"required,datetime=2006-01-02 15:04:05"`
	Timezone      string `envconfig:"SHADOW_TIMEZONE" default:"UTC" validate:"required,timezone"`

	// TargetCRS is EPSG:326NN/327NN, EPSG:3857, a "+proj=" string, or "auto"
	// for the UTM zone containing the observer.
	TargetCRS string `envconfig:"SHADOW_TARGET_CRS" default:"EPSG:32719" validate:"required,crs"`

	MinElevationDeg    float64 `envconfig:"SHADOW_MIN_ELEVATION_DEG" default:"1.0" validate:"gt=0,lt=90"`
	SimplifyToleranceM float64 `envconfig:"SHADOW_SIMPLIFY_TOLERANCE_M" default:"0.05" validate:"gte=0"`
	Refraction         bool    `envconfig:"SHADOW_REFRACTION" default:"true"`
	Workers            int     `envconfig:"SHADOW_WORKERS" default:"4" validate:"min=1,max=256"`
}

// IOConfig holds the input and output file locations. Paths ending in
// ".zst" are zstd-compressed.
type IOConfig struct {
	BuildingsPath   string   `envconfig:"SHADOW_BUILDINGS_GEOJSON" validate:"required"`
	InfraPaths      []string `envconfig:"SHADOW_INFRA_FILES" validate:"required,min=1,dive,required"`
	ShadowsPath     string   `envconfig:"SHADOW_SHADOWS_GEOJSON" validate:"required"`
	ShadedRoadsPath string   `envconfig:"SHADOW_SHADED_ROADS_GEOJSON" validate:"required,nefield=ShadowsPath"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
}

// ObservabilityConfig holds run metrics settings. Both sinks are optional.
type ObservabilityConfig struct {
	MetricsTextfile   string `envconfig:"METRICS_TEXTFILE"`
	CloudWatchEnabled bool   `envconfig:"METRICS_CLOUDWATCH_ENABLED" default:"false"`
	MetricNamespace   string `envconfig:"METRIC_NAMESPACE" default:"ShadowRoads" validate:"required"`
	AWSRegion         string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	AWSEndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// When returns the configured instant.
func (c RunConfig) When() (time.Time, error) {
	return solar.ParseLocal(c.DateTimeLocal, c.Timezone)
}

// CRS returns the target reference, resolving "auto" to the observer's UTM
// zone.
func (c RunConfig) CRS() string {
	if strings.EqualFold(strings.TrimSpace(c.TargetCRS), projection.AutoCRS) {
		return projection.UTMZoneFor(c.CenterLon, c.CenterLat)
	}
	return c.TargetCRS
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSourceResolution indicates a failure reading a fallback source such
	// as the YAML run file.
	ErrSourceResolution ConfigErrorType = "SOURCE_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types, including missing required variables.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
