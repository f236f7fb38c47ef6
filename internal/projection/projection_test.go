package projection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowroads/internal/types"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantDef  string
		wantErr  bool
	}{
		{"EPSG:32719", "EPSG:32719", "+proj=utm +zone=19 +south +datum=WGS84 +units=m +no_defs", false},
		{"32619", "EPSG:32619", "+proj=utm +zone=19 +datum=WGS84 +units=m +no_defs", false},
		{"epsg:3857", "EPSG:3857", webMercator, false},
		{"+proj=utm +zone=33 +datum=WGS84", "+proj=utm +zone=33 +datum=WGS84", "+proj=utm +zone=33 +datum=WGS84", false},
		{"EPSG:4326", "", "", true},
		{"EPSG:32661", "", "", true},
		{"not-a-crs", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, def, err := Resolve(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDef, def)
		})
	}
}

func TestUTMZoneFor(t *testing.T) {
	assert.Equal(t, "EPSG:32719", UTMZoneFor(-70.61, -33.43)) // Providencia, Santiago
	assert.Equal(t, "EPSG:32633", UTMZoneFor(13.4, 52.5))     // Berlin
	assert.Equal(t, "EPSG:32601", UTMZoneFor(-180, 10))
	assert.Equal(t, "EPSG:32660", UTMZoneFor(180, 10))
}

func TestForwardOnCentralMeridian(t *testing.T) {
	south, err := New("EPSG:32719")
	require.NoError(t, err)

	x, y, err := south.Forward(-69, 0)
	require.NoError(t, err)
	assert.InDelta(t, 500000, x, 1e-3)
	assert.InDelta(t, 10000000, y, 1e-3)

	north, err := New("EPSG:32619")
	require.NoError(t, err)
	x, y, err = north.Forward(-69, 0)
	require.NoError(t, err)
	assert.InDelta(t, 500000, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-3)
}

func TestRoundTripWithinMicroDegree(t *testing.T) {
	p, err := New("EPSG:32719")
	require.NoError(t, err)

	samples := []orb.Point{
		{-70.6100, -33.4300},
		{-70.6234, -33.4187},
		{-70.5912, -33.4411},
		{-69.0000, -33.0000},
		{-71.9000, -20.1000},
	}

	for _, s := range samples {
		metric, err := ToMetric(s, p)
		require.NoError(t, err)
		back, err := ToGeographic(metric, p)
		require.NoError(t, err)

		if diff := cmp.Diff(s, back.(orb.Point), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("round trip of %v mismatch (-want +got):\n%s", s, diff)
		}
	}
}

func TestToMetricPreservesShapeAndScale(t *testing.T) {
	p, err := New("EPSG:32719")
	require.NoError(t, err)

	// ~0.001 deg of latitude is ~111 m.
	line := orb.LineString{{-70.61, -33.430}, {-70.61, -33.431}, {-70.609, -33.431}}
	metric, err := ToMetric(line, p)
	require.NoError(t, err)

	ls, ok := metric.(orb.LineString)
	require.True(t, ok)
	require.Len(t, ls, 3)
	assert.InDelta(t, 110.9, planar.Distance(ls[0], ls[1]), 1.0)
	assert.Equal(t, orb.Point{-70.61, -33.430}, line[0], "input must not be mutated")

	poly := orb.MultiPolygon{{{{-70.61, -33.43}, {-70.609, -33.43}, {-70.609, -33.429}, {-70.61, -33.43}}}}
	mp, err := ToMetric(poly, p)
	require.NoError(t, err)
	assert.IsType(t, orb.MultiPolygon{}, mp)
	assert.Len(t, mp.(orb.MultiPolygon)[0][0], 4)
}

func TestToMetricRejectsMalformed(t *testing.T) {
	p, err := New("EPSG:32719")
	require.NoError(t, err)

	_, err = ToMetric(orb.MultiPoint{{0, 0}}, p)
	assert.True(t, types.IsCode(err, types.ErrCodeInvalidGeometry))

	_, err = ToMetric(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}}}, p)
	assert.True(t, types.IsCode(err, types.ErrCodeInvalidGeometry))
}
