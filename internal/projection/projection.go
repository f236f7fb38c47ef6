// Package projection converts geometries between WGS84 longitude/latitude
// and the planar metric reference system used for all shadow computation.
package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"

	"shadowroads/internal/geometry"
	"shadowroads/internal/types"
)

// wgs84 is the geographic reference all input and output files use.
const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// webMercator is accepted for quick looks; distances are not true meters
// away from the equator.
const webMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs"

// AutoCRS selects the UTM zone containing the observer.
const AutoCRS = "auto"

// Provider implements types.ProjectionProvider on top of ctessum/geom/proj.
type Provider struct {
	name    string
	forward proj.Transformer
	inverse proj.Transformer
}

var _ types.ProjectionProvider = (*Provider)(nil)

// New builds a provider for the target reference. target may be an EPSG
// code ("EPSG:32719" or "32719") for UTM or Web Mercator, or a raw PROJ.4
// definition starting with "+proj=".
func New(target string) (*Provider, error) {
	name, def, err := Resolve(target)
	if err != nil {
		return nil, err
	}

	src, err := proj.Parse(wgs84)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProjectionFailed, "parsing WGS84 definition", err)
	}
	dst, err := proj.Parse(def)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProjectionFailed, fmt.Sprintf("parsing %s", name), err)
	}

	fwd, err := src.NewTransform(dst)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProjectionFailed, fmt.Sprintf("building WGS84 -> %s transform", name), err)
	}
	inv, err := dst.NewTransform(src)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeProjectionFailed, fmt.Sprintf("building %s -> WGS84 transform", name), err)
	}

	return &Provider{name: name, forward: fwd, inverse: inv}, nil
}

// Name returns the normalized reference name.
func (p *Provider) Name() string { return p.name }

// Forward converts lon/lat degrees to planar meters.
func (p *Provider) Forward(lon, lat float64) (float64, float64, error) {
	return p.forward(lon, lat)
}

// Inverse converts planar meters to lon/lat degrees.
func (p *Provider) Inverse(x, y float64) (float64, float64, error) {
	return p.inverse(x, y)
}

// Resolve normalizes a target reference into a display name and a PROJ.4
// definition.
func Resolve(target string) (name, def string, err error) {
	t := strings.TrimSpace(target)
	if strings.HasPrefix(t, "+proj=") {
		return t, t, nil
	}

	code, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(t), "EPSG:"))
	if err != nil {
		return "", "", types.NewAppError(types.ErrCodeConfigInvalid, fmt.Sprintf("unrecognized target CRS %q", target), err)
	}
	name = fmt.Sprintf("EPSG:%d", code)

	switch {
	case code == 3857:
		return name, webMercator, nil
	case code > 32600 && code <= 32660:
		return name, fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code > 32700 && code <= 32760:
		return name, fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	default:
		return "", "", types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("EPSG:%d is not a supported planar reference; use a WGS84 UTM zone, 3857, or a +proj= definition", code), nil)
	}
}

// UTMZoneFor returns the EPSG code of the WGS84 UTM zone containing the
// given point.
func UTMZoneFor(lon, lat float64) string {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	if lat < 0 {
		return fmt.Sprintf("EPSG:%d", 32700+zone)
	}
	return fmt.Sprintf("EPSG:%d", 32600+zone)
}

// ToMetric projects a geographic geometry into the planar system. The
// result has the same variant, point count and topology as g.
func ToMetric(g orb.Geometry, p types.ProjectionProvider) (orb.Geometry, error) {
	return apply(g, p.Name(), p.Forward)
}

// ToGeographic is the inverse of ToMetric.
func ToGeographic(g orb.Geometry, p types.ProjectionProvider) (orb.Geometry, error) {
	return apply(g, "WGS84", p.Inverse)
}

func apply(g orb.Geometry, to string, fn func(a, b float64) (float64, float64, error)) (orb.Geometry, error) {
	if err := geometry.Validate(g); err != nil {
		return nil, err
	}
	return geometry.Transform(g, func(pt orb.Point) (orb.Point, error) {
		x, y, err := fn(pt[0], pt[1])
		if err != nil {
			return orb.Point{}, types.NewAppError(types.ErrCodeProjectionFailed,
				fmt.Sprintf("projecting (%g, %g) to %s", pt[0], pt[1], to), err)
		}
		out := orb.Point{x, y}
		if !geometry.Finite(out) {
			return orb.Point{}, types.NewAppError(types.ErrCodeProjectionFailed,
				fmt.Sprintf("projecting (%g, %g) to %s gave a non-finite result", pt[0], pt[1], to), nil)
		}
		return out, nil
	})
}
