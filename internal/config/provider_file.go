package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shadowroads/internal/solar"
)

// fileKeys maps run-file keys to the environment variables they feed.
var fileKeys = map[string]string{
	"center_lat":           "SHADOW_CENTER_LAT",
	"center_lon":           "SHADOW_CENTER_LON",
	"datetime_local":       "SHADOW_DATETIME_LOCAL",
	"timezone":             "SHADOW_TIMEZONE",
	"target_epsg":          "SHADOW_TARGET_CRS",
	"target_crs":           "SHADOW_TARGET_CRS",
	"buildings_geojson":    "SHADOW_BUILDINGS_GEOJSON",
	"infra_files":          "SHADOW_INFRA_FILES",
	"shadows_geojson":      "SHADOW_SHADOWS_GEOJSON",
	"shaded_roads_geojson": "SHADOW_SHADED_ROADS_GEOJSON",
	"min_elevation_deg":    "SHADOW_MIN_ELEVATION_DEG",
	"simplify_tolerance_m": "SHADOW_SIMPLIFY_TOLERANCE_M",
	"refraction":           "SHADOW_REFRACTION",
	"workers":              "SHADOW_WORKERS",
	"metrics_textfile":     "METRICS_TEXTFILE",
}

// FileSource reads a YAML run file such as:
//
//	center_lat: -33.4372
//	center_lon: -70.6506
//	datetime_local: "2025-01-15 12:00:00"
//	target_epsg: 32719
//	buildings_geojson: data/buildings.geojson
//	infra_files: [data/roads.geojson, data/cycleways.geojson]
//	shadows_geojson: out/shadows.geojson
//	shaded_roads_geojson: out/shaded_roads.geojson
//
// Unknown keys are rejected so typos surface instead of silently falling
// back to defaults.
type FileSource struct {
	path     string
	readFile func(string) ([]byte, error)
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, readFile: os.ReadFile}
}

// Name returns the file path.
func (s *FileSource) Name() string { return s.path }

// Values parses the file and converts each setting to its environment
// variable form.
func (s *FileSource) Values(_ context.Context) (map[string]string, error) {
	data, err := s.readFile(s.path)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	out := make(map[string]string, len(doc))
	for key, raw := range doc {
		env, ok := fileKeys[key]
		if !ok {
			return nil, fmt.Errorf("unknown key %q in %s", key, s.path)
		}
		if raw == nil {
			continue
		}

		var val string
		switch key {
		case "target_epsg", "target_crs":
			val, err = crsValue(raw)
		case "infra_files":
			val, err = listValue(raw)
		default:
			val, err = scalarValue(raw)
		}
		if err != nil {
			return nil, fmt.Errorf("key %q in %s: %w", key, s.path, err)
		}
		out[env] = val
	}
	return out, nil
}

// crsValue accepts a bare EPSG number (target_epsg: 32719) or a string
// reference.
func crsValue(raw any) (string, error) {
	switch v := raw.(type) {
	case int:
		return fmt.Sprintf("EPSG:%d", v), nil
	case string:
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return "EPSG:" + strings.TrimSpace(v), nil
		}
		return v, nil
	default:
		return "", fmt.Errorf("unsupported CRS value %v", raw)
	}
}

// listValue renders a YAML sequence (or a single string) as the comma list
// envconfig expects.
func listValue(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarValue(item)
			if err != nil {
				return "", err
			}
			if strings.Contains(s, ",") {
				return "", fmt.Errorf("path %q contains a comma", s)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("expected a list, got %T", raw)
	}
}

func scalarValue(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		// Unquoted timestamps are naive local times, not instants.
		return v.Format(solar.LocalLayout), nil
	default:
		return "", fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}
