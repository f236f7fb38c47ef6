package geoio

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowroads/internal/types"
)

const buildingsFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "way/1", "properties": {"height_m": 12},
     "geometry": {"type": "Polygon", "coordinates": [[[-70.6,-33.4],[-70.5999,-33.4],[-70.5999,-33.3999],[-70.6,-33.4]]]}},
    {"type": "Feature", "properties": {"height_m": "7.5"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-70.6,-33.4],[-70.5999,-33.4],[-70.5999,-33.3999],[-70.6,-33.4]]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"height_m": "tall"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"height_m": 0},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"height_m": -4},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"height_m": 3}, "geometry": null},
    {"type": "Feature", "properties": {"height_m": 3},
     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}},
    {"type": "Feature", "properties": {"height_m": 3},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1]]]}}
  ]
}`

const roadsFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"osm_id": 101, "highway": "primary", "name": "Av. Providencia", "oneway": "yes", "surface": "asphalt"},
     "geometry": {"type": "LineString", "coordinates": [[-70.6,-33.4],[-70.59,-33.41]]}},
    {"type": "Feature", "id": "way/9", "properties": {"highway": "footway"},
     "geometry": {"type": "MultiLineString", "coordinates": [[[-70.6,-33.4],[-70.59,-33.4]],[[-70.58,-33.4],[-70.57,-33.4]]]}},
    {"type": "Feature", "properties": {},
     "geometry": {"type": "Point", "coordinates": [-70.6,-33.4]}},
    {"type": "Feature", "properties": {}, "geometry": null}
  ]
}`

func newTestStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeZstd(t *testing.T, dir, name, content string) string {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, enc.EncodeAll([]byte(content), nil), 0o644))
	return path
}

func TestReadBuildings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "buildings.geojson", buildingsFixture)

	got, err := newTestStore().ReadBuildings(path)
	require.NoError(t, err)

	require.Len(t, got.Buildings, 2)
	assert.Equal(t, "way/1", got.Buildings[0].ID)
	assert.Equal(t, 12.0, got.Buildings[0].HeightM)
	assert.IsType(t, orb.Polygon{}, got.Buildings[0].Footprint)

	assert.Equal(t, path+"#1", got.Buildings[1].ID)
	assert.Equal(t, 7.5, got.Buildings[1].HeightM)
	assert.Len(t, got.Buildings[1].Polygons(), 1)

	assert.Equal(t, map[types.SkipReason]int{
		types.SkipMissingHeight:     1,
		types.SkipNonNumericHeight:  1,
		types.SkipNonPositiveHeight: 2,
		types.SkipNoGeometry:        1,
		types.SkipWrongGeometryType: 1,
		types.SkipInvalidGeometry:   1,
	}, got.Skipped)
}

func TestReadBuildingsCompressed(t *testing.T) {
	path := writeZstd(t, t.TempDir(), "buildings.geojson.zst", buildingsFixture)

	got, err := newTestStore().ReadBuildings(path)
	require.NoError(t, err)
	assert.Len(t, got.Buildings, 2)
}

func TestReadBuildingsErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := newTestStore().ReadBuildings(filepath.Join(dir, "nope.geojson"))
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrCodeInputMissing))
		assert.Equal(t, types.ExitInputError, types.ExitCodeOf(err))
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeFile(t, dir, "broken.geojson", `{"type": "FeatureCollection", "features": [`)
		_, err := newTestStore().ReadBuildings(path)
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrCodeInputInvalid))
	})

	t.Run("corrupt zstd", func(t *testing.T) {
		path := writeFile(t, dir, "buildings.geojson.zst", "not compressed")
		_, err := newTestStore().ReadBuildings(path)
		require.Error(t, err)
		assert.True(t, types.IsCode(err, types.ErrCodeInputInvalid))
	})

	t.Run("empty collection is not an error here", func(t *testing.T) {
		path := writeFile(t, dir, "empty.geojson", `{"type": "FeatureCollection", "features": []}`)
		got, err := newTestStore().ReadBuildings(path)
		require.NoError(t, err)
		assert.Empty(t, got.Buildings)
	})
}

func TestReadRoads(t *testing.T) {
	dir := t.TempDir()
	roads := writeFile(t, dir, "roads.geojson", roadsFixture)
	missing := filepath.Join(dir, "cycleways.geojson")

	got, err := newTestStore().ReadRoads([]string{roads, missing})
	require.NoError(t, err)

	require.Len(t, got.Roads, 2)
	assert.Equal(t, []string{missing}, got.Missing)
	assert.Equal(t, map[types.SkipReason]int{
		types.SkipWrongGeometryType: 1,
		types.SkipNoGeometry:        1,
	}, got.Skipped)

	first := got.Roads[0]
	assert.Equal(t, roads, first.Source)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, map[string]any{
		"osm_id":  float64(101),
		"highway": "primary",
		"name":    "Av. Providencia",
		"oneway":  "yes",
	}, first.Properties)

	second := got.Roads[1]
	assert.Equal(t, 1, second.Index)
	assert.IsType(t, orb.MultiLineString{}, second.Geometry)
	assert.Equal(t, "way/9", second.Properties["id"])
}

func TestReadRoadsInvalidJSONIsFatal(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "roads.geojson", "[]{")

	_, err := newTestStore().ReadRoads([]string{bad})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeInputInvalid))
}

func TestEncodeShadows(t *testing.T) {
	region := orb.MultiPolygon{
		{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		{orb.Ring{{5, 5}, {6, 5}, {6, 6}, {5, 5}}},
	}

	data, err := EncodeShadows(region)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	for _, f := range fc.Features {
		assert.Equal(t, "Polygon", f.Geometry.GeoJSONType())
		assert.Empty(t, f.Properties)
	}
}

func TestEncodeShadowsEmpty(t *testing.T) {
	data, err := EncodeShadows(nil)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])
	assert.Equal(t, []any{}, raw["features"])
}

func TestEncodeShadedRoads(t *testing.T) {
	segments := []types.ShadedSegment{
		{
			Geometry:   orb.LineString{{-70.6, -33.4}, {-70.59, -33.4}},
			LengthM:    929.87654,
			Properties: map[string]any{"osm_id": float64(101), "highway": "primary"},
		},
		{Geometry: orb.LineString{{0, 0}, {0, 1}}, LengthM: 1},
	}

	data, err := EncodeShadedRoads(segments)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, "LineString", first.Geometry.GeoJSONType())
	assert.Equal(t, true, first.Properties[ShadedProperty])
	assert.Equal(t, 929.88, first.Properties[LengthProperty])
	assert.Equal(t, "primary", first.Properties["highway"])
	assert.Equal(t, true, fc.Features[1].Properties[ShadedProperty])

	// the input properties are not mutated
	assert.NotContains(t, segments[0].Properties, ShadedProperty)
}

func TestCommit(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()

	plain := filepath.Join(dir, "out", "shadows.geojson")
	packed := filepath.Join(dir, "out", "roads.geojson.zst")

	require.NoError(t, s.Commit(
		Output{Path: plain, Data: []byte(`{"a":1}`)},
		Output{Path: packed, Data: []byte(`{"b":2}`)},
	))

	got, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	decoded, err := s.readFile(packed)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(decoded))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestCommitIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()

	existing := writeFile(t, dir, "shadows.geojson", "previous run")
	blocker := writeFile(t, dir, "not-a-dir", "")

	err := s.Commit(
		Output{Path: existing, Data: []byte("new run")},
		Output{Path: filepath.Join(blocker, "roads.geojson"), Data: []byte("x")},
	)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeOutputWrite))
	assert.Equal(t, types.ExitOutputError, types.ExitCodeOf(err))

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestEncodeShadowsCommitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()
	path := filepath.Join(dir, "shadows.geojson.zst")

	region := orb.MultiPolygon{{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}
	data, err := EncodeShadows(region)
	require.NoError(t, err)
	require.NoError(t, s.Commit(Output{Path: path, Data: data}))

	data, err = s.readFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
}
