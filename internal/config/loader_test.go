package config

import (
	"context"
	"errors"
	"os"
	"testing"
)

// allKeys lists every variable the Config struct reads.
var allKeys = []string{
	"SHADOW_CENTER_LAT", "SHADOW_CENTER_LON", "SHADOW_DATETIME_LOCAL",
	"SHADOW_TIMEZONE", "SHADOW_TARGET_CRS", "SHADOW_BUILDINGS_GEOJSON",
	"SHADOW_INFRA_FILES", "SHADOW_SHADOWS_GEOJSON", "SHADOW_SHADED_ROADS_GEOJSON",
	"SHADOW_MIN_ELEVATION_DEG", "SHADOW_SIMPLIFY_TOLERANCE_M", "SHADOW_REFRACTION",
	"SHADOW_WORKERS", "LOG_LEVEL", "LOG_FORMAT", "METRICS_TEXTFILE",
	"METRICS_CLOUDWATCH_ENABLED", "METRIC_NAMESPACE", "AWS_REGION", "AWS_ENDPOINT_URL",
}

// testSource is a configurable Source for loader tests.
type testSource struct {
	name      string
	values    map[string]string
	err       error
	callCount int
}

func (s *testSource) Name() string { return s.name }

func (s *testSource) Values(_ context.Context) (map[string]string, error) {
	s.callCount++
	if s.err != nil {
		return nil, s.err
	}
	return s.values, nil
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// testDeps returns loader dependencies whose writes are undone when the
// test ends and which never read a .env file.
func testDeps(t *testing.T) loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv: func(key, value string) error {
			t.Setenv(key, value)
			return nil
		},
		dotenv: func() error { return nil },
	}
}

// setFullTestEnv sets all required environment variables for a valid Config.
func setFullTestEnv(t *testing.T) {
	t.Helper()
	clearEnv(t)

	t.Setenv("SHADOW_CENTER_LAT", "-33.4372")
	t.Setenv("SHADOW_CENTER_LON", "-70.6506")
	t.Setenv("SHADOW_DATETIME_LOCAL", "2025-01-15 12:00:00")
	t.Setenv("SHADOW_BUILDINGS_GEOJSON", "data/buildings.geojson")
	t.Setenv("SHADOW_INFRA_FILES", "data/roads.geojson,data/cycleways.geojson")
	t.Setenv("SHADOW_SHADOWS_GEOJSON", "out/shadows.geojson")
	t.Setenv("SHADOW_SHADED_ROADS_GEOJSON", "out/shaded_roads.geojson")
}

// TestLoadConfigSuccess verifies that a complete environment loads and that
// defaults are applied to everything left unset.
func TestLoadConfigSuccess(t *testing.T) {
	setFullTestEnv(t)

	cfg, err := loadConfigWithDeps(nil, testDeps(t))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}

	if cfg.Run.CenterLat != -33.4372 {
		t.Errorf("Run.CenterLat = %v, want -33.4372", cfg.Run.CenterLat)
	}
	if cfg.Run.CenterLon != -70.6506 {
		t.Errorf("Run.CenterLon = %v, want -70.6506", cfg.Run.CenterLon)
	}
	if len(cfg.IO.InfraPaths) != 2 || cfg.IO.InfraPaths[1] != "data/cycleways.geojson" {
		t.Errorf("IO.InfraPaths = %v, want two paths", cfg.IO.InfraPaths)
	}

	// Verify defaults
	if cfg.Run.Timezone != "UTC" {
		t.Errorf("Run.Timezone = %q, want default UTC", cfg.Run.Timezone)
	}
	if cfg.Run.TargetCRS != "EPSG:32719" {
		t.Errorf("Run.TargetCRS = %q, want default EPSG:32719", cfg.Run.TargetCRS)
	}
	if cfg.Run.MinElevationDeg != 1.0 {
		t.Errorf("Run.MinElevationDeg = %v, want 1.0", cfg.Run.MinElevationDeg)
	}
	if cfg.Run.SimplifyToleranceM != 0.05 {
		t.Errorf("Run.SimplifyToleranceM = %v, want 0.05", cfg.Run.SimplifyToleranceM)
	}
	if !cfg.Run.Refraction {
		t.Error("Run.Refraction should default to true")
	}
	if cfg.Run.Workers != 4 {
		t.Errorf("Run.Workers = %d, want 4", cfg.Run.Workers)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Observability.MetricNamespace != "ShadowRoads" {
		t.Errorf("Observability.MetricNamespace = %q, want ShadowRoads", cfg.Observability.MetricNamespace)
	}
	if cfg.Observability.CloudWatchEnabled {
		t.Error("Observability.CloudWatchEnabled should default to false")
	}

	// Verify build info populated
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want %q", cfg.Build.Version, "dev")
	}
}

// TestLoadConfigMissingRequired verifies that an unset observer location is
// a parsing error from envconfig's required tag.
func TestLoadConfigMissingRequired(t *testing.T) {
	setFullTestEnv(t)
	os.Unsetenv("SHADOW_CENTER_LAT")

	_, err := loadConfigWithDeps(nil, testDeps(t))
	if err == nil {
		t.Fatal("expected error for missing SHADOW_CENTER_LAT, got nil")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("expected ErrParsing, got %q", cfgErr.Type)
	}
}

// TestLoadConfigValidationFailures verifies the struct rules.
func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"latitude out of range", "SHADOW_CENTER_LAT", "91"},
		{"longitude out of range", "SHADOW_CENTER_LON", "-181"},
		{"datetime layout", "SHADOW_DATETIME_LOCAL", "2025-01-15T12:00:00Z"},
		{"unknown timezone", "SHADOW_TIMEZONE", "Mars/Olympus_Mons"},
		{"unsupported EPSG", "SHADOW_TARGET_CRS", "EPSG:4326"},
		{"garbage CRS", "SHADOW_TARGET_CRS", "utm please"},
		{"zero elevation floor", "SHADOW_MIN_ELEVATION_DEG", "0"},
		{"negative tolerance", "SHADOW_SIMPLIFY_TOLERANCE_M", "-0.1"},
		{"zero workers", "SHADOW_WORKERS", "0"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"outputs collide", "SHADOW_SHADED_ROADS_GEOJSON", "out/shadows.geojson"},
		{"empty infra entry", "SHADOW_INFRA_FILES", "a.geojson,,b.geojson"},
		{"endpoint not a url", "AWS_ENDPOINT_URL", "localstack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFullTestEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := loadConfigWithDeps(nil, testDeps(t))
			if err == nil {
				t.Fatalf("expected validation error for %s=%q", tt.key, tt.value)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("expected ErrValidation, got %q (%v)", cfgErr.Type, err)
			}
		})
	}
}

// TestLoadConfigAcceptedCRS verifies the reference forms the crs rule allows.
func TestLoadConfigAcceptedCRS(t *testing.T) {
	for _, crs := range []string{"EPSG:32719", "32618", "EPSG:3857", "auto", "+proj=utm +zone=19 +south +datum=WGS84 +units=m +no_defs"} {
		t.Run(crs, func(t *testing.T) {
			setFullTestEnv(t)
			t.Setenv("SHADOW_TARGET_CRS", crs)

			if _, err := loadConfigWithDeps(nil, testDeps(t)); err != nil {
				t.Errorf("unexpected error for %q: %v", crs, err)
			}
		})
	}
}

// TestLoadConfigSourceFallback verifies that source values fill unset
// variables only: OS Environment > Source.
func TestLoadConfigSourceFallback(t *testing.T) {
	setFullTestEnv(t)
	os.Unsetenv("SHADOW_CENTER_LAT")

	src := &testSource{
		name: "run.yaml",
		values: map[string]string{
			"SHADOW_CENTER_LAT": "40.0",
			"SHADOW_CENTER_LON": "10.0", // already set, must not win
			"SHADOW_WORKERS":    "8",
		},
	}

	cfg, err := loadConfigWithDeps([]Source{src}, testDeps(t))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}

	if cfg.Run.CenterLat != 40.0 {
		t.Errorf("Run.CenterLat = %v, want source value 40.0", cfg.Run.CenterLat)
	}
	if cfg.Run.CenterLon != -70.6506 {
		t.Errorf("Run.CenterLon = %v, want env value -70.6506", cfg.Run.CenterLon)
	}
	if cfg.Run.Workers != 8 {
		t.Errorf("Run.Workers = %d, want 8", cfg.Run.Workers)
	}
	if src.callCount != 1 {
		t.Errorf("src.callCount = %d, want 1", src.callCount)
	}
}

// TestLoadConfigSourceOrder verifies that an earlier source wins.
func TestLoadConfigSourceOrder(t *testing.T) {
	setFullTestEnv(t)

	first := &testSource{name: "first", values: map[string]string{"SHADOW_WORKERS": "2"}}
	second := &testSource{name: "second", values: map[string]string{"SHADOW_WORKERS": "16"}}

	cfg, err := loadConfigWithDeps([]Source{first, second}, testDeps(t))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if cfg.Run.Workers != 2 {
		t.Errorf("Run.Workers = %d, want 2 from the first source", cfg.Run.Workers)
	}
}

// TestLoadConfigSourceError verifies that a failing source is reported as a
// ConfigError with ErrSourceResolution type.
func TestLoadConfigSourceError(t *testing.T) {
	setFullTestEnv(t)

	src := &testSource{name: "run.yaml", err: errors.New("permission denied")}

	_, err := loadConfigWithDeps([]Source{src}, testDeps(t))
	if err == nil {
		t.Fatal("expected error when source fails, got nil")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Type != ErrSourceResolution {
		t.Errorf("expected ErrSourceResolution, got %q", cfgErr.Type)
	}
	if !errors.Is(err, src.err) {
		t.Error("expected the source error to be wrapped")
	}
}

// TestLoadConfigSetEnvError verifies that a failure injecting a value stops
// the load.
func TestLoadConfigSetEnvError(t *testing.T) {
	setFullTestEnv(t)
	os.Unsetenv("SHADOW_WORKERS")

	deps := testDeps(t)
	deps.setEnv = func(string, string) error { return errors.New("read-only environment") }

	src := &testSource{name: "run.yaml", values: map[string]string{"SHADOW_WORKERS": "8"}}
	_, err := loadConfigWithDeps([]Source{src}, deps)

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrSourceResolution {
		t.Fatalf("expected ErrSourceResolution, got %v", err)
	}
}

// TestConfigValidateAfterOverride verifies that Validate catches values set
// after loading.
func TestConfigValidateAfterOverride(t *testing.T) {
	setFullTestEnv(t)

	cfg, err := loadConfigWithDeps(nil, testDeps(t))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}

	cfg.Run.DateTimeLocal = "noon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error after override")
	}
}

// TestConfigErrorFormat verifies the diagnostic message layout.
func TestConfigErrorFormat(t *testing.T) {
	inner := errors.New("boom")
	withErr := &ConfigError{Type: ErrParsing, Message: "failed", Err: inner}
	if got, want := withErr.Error(), "[PARSING_FAILED] failed: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(withErr, inner) {
		t.Error("expected Unwrap to expose the inner error")
	}

	bare := &ConfigError{Type: ErrValidation, Message: "bad"}
	if got, want := bare.Error(), "[VALIDATION_FAILED] bad"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
