// Package solar computes the apparent position of the sun for an observer
// using the NOAA solar calculator equations (Meeus, "Astronomical
// Algorithms"). Accuracy is well under a tenth of a degree for dates
// between 1800 and 2100, far tighter than the shadow approximation needs.
package solar

import (
	"fmt"
	"math"
	"time"

	"shadowroads/internal/types"
)

// LocalLayout is the layout of the naive local date-time accepted in
// configuration.
const LocalLayout = "2006-01-02 15:04:05"

const (
	julianUnixEpoch = 2440587.5
	julianJ2000     = 2451545.0
	daysPerCentury  = 36525.0
	secondsPerDay   = 86400.0
)

// NOAA implements types.SolarPositionProvider.
type NOAA struct {
	// Refraction applies the standard atmospheric refraction correction to
	// the elevation.
	Refraction bool
}

var _ types.SolarPositionProvider = NOAA{}

// NewNOAA returns a provider with the given refraction setting.
func NewNOAA(refraction bool) NOAA {
	return NOAA{Refraction: refraction}
}

// Position returns the sun elevation and azimuth for the observer at
// lat/lon (degrees, east positive) at instant t. Elevations below the
// horizon are returned unchanged.
func (n NOAA) Position(lat, lon float64, t time.Time) types.SunPosition {
	u := t.UTC()
	jd := float64(u.UnixNano())/1e9/secondsPerDay + julianUnixEpoch
	jc := (jd - julianJ2000) / daysPerCentury

	meanLong := normalize(280.46646 + jc*(36000.76983+jc*0.0003032))
	meanAnom := 357.52911 + jc*(35999.05029-0.0001537*jc)
	ecc := 0.016708634 - jc*(0.000042037+0.0000001267*jc)

	center := sinDeg(meanAnom)*(1.914602-jc*(0.004817+0.000014*jc)) +
		sinDeg(2*meanAnom)*(0.019993-0.000101*jc) +
		sinDeg(3*meanAnom)*0.000289
	trueLong := meanLong + center
	omega := 125.04 - 1934.136*jc
	appLong := trueLong - 0.00569 - 0.00478*sinDeg(omega)

	meanObliq := 23 + (26+(21.448-jc*(46.815+jc*(0.00059-jc*0.001813)))/60)/60
	obliq := meanObliq + 0.00256*cosDeg(omega)

	decl := degrees(math.Asin(sinDeg(obliq) * sinDeg(appLong)))

	y := math.Pow(math.Tan(radians(obliq/2)), 2)
	eqTime := 4 * degrees(y*sinDeg(2*meanLong)-
		2*ecc*sinDeg(meanAnom)+
		4*ecc*y*sinDeg(meanAnom)*cosDeg(2*meanLong)-
		0.5*y*y*sinDeg(4*meanLong)-
		1.25*ecc*ecc*sinDeg(2*meanAnom))

	minutes := float64(u.Hour()*60+u.Minute()) + (float64(u.Second())+float64(u.Nanosecond())/1e9)/60
	trueSolar := math.Mod(minutes+eqTime+4*lon, 1440)
	if trueSolar < 0 {
		trueSolar += 1440
	}

	hourAngle := trueSolar/4 - 180

	cosZenith := sinDeg(lat)*sinDeg(decl) + cosDeg(lat)*cosDeg(decl)*cosDeg(hourAngle)
	zenith := degrees(math.Acos(clamp(cosZenith)))
	elevation := 90 - zenith

	if n.Refraction {
		elevation += refraction(elevation)
	}

	return types.SunPosition{
		ElevationDeg: elevation,
		AzimuthDeg:   azimuth(lat, decl, zenith, hourAngle),
	}
}

// azimuth returns the sun azimuth clockwise from north in [0,360).
func azimuth(lat, decl, zenith, hourAngle float64) float64 {
	denom := cosDeg(lat) * sinDeg(zenith)
	if math.Abs(denom) < 1e-12 {
		// At the poles or with the sun at zenith the bearing is undefined;
		// report the bearing the sun is heading toward along the meridian.
		if lat >= 0 {
			return 180
		}
		return 0
	}

	a := degrees(math.Acos(clamp((sinDeg(lat)*cosDeg(zenith) - sinDeg(decl)) / denom)))
	var az float64
	if hourAngle > 0 {
		az = a + 180
	} else {
		az = 540 - a
	}
	return normalize(az)
}

// refraction is the NOAA approximation of atmospheric refraction, in
// degrees, for an unrefracted elevation e in degrees.
func refraction(e float64) float64 {
	var arcsec float64
	switch {
	case e > 85:
		return 0
	case e > 5:
		te := math.Tan(radians(e))
		arcsec = 58.1/te - 0.07/math.Pow(te, 3) + 0.000086/math.Pow(te, 5)
	case e > -0.575:
		arcsec = 1735 + e*(-518.2+e*(103.4+e*(-12.79+e*0.711)))
	default:
		arcsec = -20.772 / math.Tan(radians(e))
	}
	return arcsec / 3600
}

// ParseLocal interprets a naive "YYYY-MM-DD HH:MM:SS" value in the named
// IANA time zone.
func ParseLocal(value, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeConfigInvalid, fmt.Sprintf("unknown time zone %q", zone), err)
	}
	t, err := time.ParseInLocation(LocalLayout, value, loc)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeConfigInvalid,
			fmt.Sprintf("local date-time %q must use layout %q", value, LocalLayout), err)
	}
	return t, nil
}

func normalize(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// math.Mod can round a tiny negative up to exactly 360.
	if d >= 360 {
		d = 0
	}
	return d
}

func clamp(v float64) float64 { return math.Max(-1, math.Min(1, v)) }

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
func sinDeg(d float64) float64  { return math.Sin(radians(d)) }
func cosDeg(d float64) float64  { return math.Cos(radians(d)) }
