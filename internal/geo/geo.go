// Package geo holds spherical-earth helpers used to place an AP relative to a receiver.
package geo

import (
	"math"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
)

const (
	EarthRadiusM = 6371000.0
	// MinDistanceM is the floor applied before log-domain path loss.
	MinDistanceM = 1.0
)

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

// DistanceM is the haversine great-circle distance in meters.
func DistanceM(a, b model.LatLon) float64 {
	phi1, phi2 := rad(a.Lat), rad(b.Lat)
	dphi := phi2 - phi1
	dl := rad(b.Lon - a.Lon)
	h := math.Sin(dphi/2)*math.Sin(dphi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dl/2)*math.Sin(dl/2)
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// ClampDistance applies MinDistanceM.
func ClampDistance(d float64) float64 {
	if math.IsNaN(d) || d < MinDistanceM {
		return MinDistanceM
	}
	return d
}

// InitialBearing from a to b in degrees clockwise from true north, in [0,360).
func InitialBearing(a, b model.LatLon) float64 {
	phi1, phi2 := rad(a.Lat), rad(b.Lat)
	dl := rad(b.Lon - a.Lon)
	y := math.Sin(dl) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dl)
	return NormalizeDeg(deg(math.Atan2(y, x)))
}

// NormalizeDeg maps any angle into [0,360).
func NormalizeDeg(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// OffAxisDeg is the absolute angle in [0,180] between a pointing direction and a bearing.
func OffAxisDeg(pointingDeg, bearingDeg float64) float64 {
	d := math.Abs(NormalizeDeg(bearingDeg-pointingDeg+180) - 180)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Destination returns the point reached from p after distM along bearingDeg.
func Destination(p model.LatLon, bearingDeg, distM float64) model.LatLon {
	delta := distM / EarthRadiusM
	theta := rad(bearingDeg)
	phi1, l1 := rad(p.Lat), rad(p.Lon)
	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	l2 := l1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi1), math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))
	lon := math.Mod(deg(l2)+540, 360) - 180
	return model.LatLon{Lat: deg(phi2), Lon: lon}
}

// ElevationDeg is the angle above the horizontal seen from a receiver at rxHeight
// toward a transmitter at txHeight, ignoring earth curvature.
func ElevationDeg(rxHeightM, txHeightM, distM float64) float64 {
	return deg(math.Atan2(txHeightM-rxHeightM, ClampDistance(distM)))
}
