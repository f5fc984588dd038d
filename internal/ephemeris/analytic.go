package ephemeris

import (
	"math"
	"time"
)

const (
	rad = math.Pi / 180
	deg = 180 / math.Pi

	julianUnixEpoch = 2440587.5 // Julian day of 1970-01-01T00:00:00Z
	julianJ2000     = 2451545.0
	secondsPerDay   = 86400.0

	earthRadiusKm = 6378.14
)

// AnalyticProvider computes elevation from closed-form solar and lunar series.
// It has no external dependencies and is always available.
type AnalyticProvider struct{}

// NewAnalyticProvider returns the built-in elevation model
func NewAnalyticProvider() *AnalyticProvider {
	return &AnalyticProvider{}
}

// Elevation returns the topocentric elevation of body in degrees
func (AnalyticProvider) Elevation(body Body, t time.Time, loc Location) (float64, error) {
	d := daysSinceJ2000(t)
	switch body {
	case Sun:
		ra, dec := sunEquatorial(d)
		return altitude(d, loc, ra, dec), nil
	case Moon:
		ra, dec, dist := moonEquatorial(d)
		h := altitude(d, loc, ra, dec) * rad
		parallax := math.Asin(earthRadiusKm / dist)
		return (h - parallax*math.Cos(h)) * deg, nil
	default:
		return 0, ErrUnavailable
	}
}

// daysSinceJ2000 returns fractional days since 2000-01-01T12:00:00 TT (UTC is close enough)
func daysSinceJ2000(t time.Time) float64 {
	jd := float64(t.UnixNano())/1e9/secondsPerDay + julianUnixEpoch
	return jd - julianJ2000
}

// sunEquatorial returns right ascension and declination in radians
func sunEquatorial(d float64) (ra, dec float64) {
	meanLon := math.Mod(280.460+0.9856474*d, 360)
	g := math.Mod(357.528+0.9856003*d, 360) * rad

	lambda := (meanLon + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * rad
	epsilon := (23.439 - 0.0000004*d) * rad

	ra = math.Atan2(math.Cos(epsilon)*math.Sin(lambda), math.Cos(lambda))
	dec = math.Asin(math.Sin(epsilon) * math.Sin(lambda))
	return ra, dec
}

// moonEquatorial returns right ascension and declination in radians and the
// geocentric distance in kilometres
func moonEquatorial(d float64) (ra, dec, distKm float64) {
	l0 := (218.316 + 13.176396*d) * rad // ecliptic longitude
	m := (134.963 + 13.064993*d) * rad  // mean anomaly
	f := (93.272 + 13.229350*d) * rad   // mean distance from ascending node

	lambda := l0 + 6.289*rad*math.Sin(m)
	beta := 5.128 * rad * math.Sin(f)
	distKm = 385001 - 20905*math.Cos(m)

	epsilon := 23.4397 * rad
	ra = math.Atan2(math.Sin(lambda)*math.Cos(epsilon)-math.Tan(beta)*math.Sin(epsilon), math.Cos(lambda))
	dec = math.Asin(math.Sin(beta)*math.Cos(epsilon) + math.Cos(beta)*math.Sin(epsilon)*math.Sin(lambda))
	return ra, dec, distKm
}

// altitude converts equatorial coordinates to geocentric altitude in degrees
func altitude(d float64, loc Location, ra, dec float64) float64 {
	gmst := math.Mod(280.46061837+360.98564736629*d, 360)
	hourAngle := (gmst+loc.Longitude)*rad - ra
	lat := loc.Latitude * rad

	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(hourAngle)
	return math.Asin(math.Max(-1, math.Min(1, sinAlt))) * deg
}

// elongation returns the sun-moon angular separation in radians
func elongation(d float64) float64 {
	sunRA, sunDec := sunEquatorial(d)
	moonRA, moonDec, _ := moonEquatorial(d)
	cosPsi := math.Sin(sunDec)*math.Sin(moonDec) + math.Cos(sunDec)*math.Cos(moonDec)*math.Cos(sunRA-moonRA)
	return math.Acos(math.Max(-1, math.Min(1, cosPsi)))
}
