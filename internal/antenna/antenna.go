// Package antenna computes receiver off-axis discrimination toward an AP.
package antenna

import (
	"math"
	"sort"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
)

// Envelope is the parametric pattern used when no table is supplied:
// A(d) = min(12 (d/HPBW)^2, SidelobeFloorDB) per plane.
type Envelope struct {
	HPBWAzDeg        float64 `yaml:"hpbw_az_deg"`
	HPBWElDeg        float64 `yaml:"hpbw_el_deg"`
	SidelobeFloorDB  float64 `yaml:"sidelobe_floor_db"`
	BacklobeFloorDBi float64 `yaml:"backlobe_floor_dbi"`
}

func DefaultEnvelope() Envelope {
	return Envelope{HPBWAzDeg: 3, HPBWElDeg: 3, SidelobeFloorDB: 20, BacklobeFloorDBi: -10}
}

func parabolicDB(offDeg, hpbwDeg, floorDB float64) float64 {
	if hpbwDeg <= 0 {
		return floorDB
	}
	return math.Min(12*math.Pow(offDeg/hpbwDeg, 2), floorDB)
}

// Table is a sorted RPE table of (angle, attenuation) samples.
type Table []model.PatternSample

// NewTable sorts samples by angle; duplicate angles keep the last value given.
func NewTable(samples []model.PatternSample) Table {
	if len(samples) == 0 {
		return nil
	}
	pts := append([]model.PatternSample(nil), samples...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].AngleDeg < pts[j].AngleDeg })
	out := pts[:0]
	for _, p := range pts {
		if n := len(out); n > 0 && math.Abs(out[n-1].AngleDeg-p.AngleDeg) < 1e-9 {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return Table(out)
}

// AttenuationDB interpolates linearly at |angle| and clamps to the nearest edge
// outside the table's domain.
func (t Table) AttenuationDB(angleDeg float64) float64 {
	if len(t) == 0 {
		return 0
	}
	x := math.Abs(angleDeg)
	if x <= t[0].AngleDeg {
		return t[0].AttenuationDB
	}
	last := t[len(t)-1]
	if x >= last.AngleDeg {
		return last.AttenuationDB
	}
	i := sort.Search(len(t), func(i int) bool { return t[i].AngleDeg >= x })
	a, b := t[i-1], t[i]
	if b.AngleDeg-a.AngleDeg < 1e-12 {
		return a.AttenuationDB
	}
	f := (x - a.AngleDeg) / (b.AngleDeg - a.AngleDeg)
	return a.AttenuationDB + f*(b.AttenuationDB-a.AttenuationDB)
}

// Geometry is the AP direction as seen from the receiver, relative to its boresight.
type Geometry struct {
	AzimuthOffDeg   float64
	ElevationOffDeg float64
}

// OffAxis derives the receiver-side geometry. A receiver without an azimuth is
// treated as pointing at the AP; missing heights give zero elevation offset.
func OffAxis(ap, rx model.LatLon, rxAzimuthDeg, apHeightM, rxHeightM *float64) Geometry {
	var g Geometry
	if rxAzimuthDeg != nil {
		toAP := geo.InitialBearing(rx, ap)
		g.AzimuthOffDeg = geo.OffAxisDeg(geo.NormalizeDeg(*rxAzimuthDeg), toAP)
	}
	if apHeightM != nil && rxHeightM != nil {
		g.ElevationOffDeg = math.Abs(geo.ElevationDeg(*rxHeightM, *apHeightM, geo.DistanceM(ap, rx)))
	}
	return g
}

type Discrimination struct {
	AzimuthDB        float64
	ElevationDB      float64
	EffectiveGainDBi float64
}

// TotalDB is the gain reduction actually applied, after the backlobe floor.
func (d Discrimination) TotalDB(maxGainDBi float64) float64 {
	return maxGainDBi - d.EffectiveGainDBi
}

// Discriminate applies the receiver's pattern table per plane when present and
// the envelope otherwise; the combined gain never drops below the backlobe floor.
func Discriminate(maxGainDBi float64, pattern *model.Pattern, env Envelope, g Geometry) Discrimination {
	var d Discrimination
	if pattern != nil && len(pattern.Azimuth) > 0 {
		d.AzimuthDB = NewTable(pattern.Azimuth).AttenuationDB(g.AzimuthOffDeg)
	} else {
		d.AzimuthDB = parabolicDB(g.AzimuthOffDeg, env.HPBWAzDeg, env.SidelobeFloorDB)
	}
	if pattern != nil && len(pattern.Elevation) > 0 {
		d.ElevationDB = NewTable(pattern.Elevation).AttenuationDB(g.ElevationOffDeg)
	} else {
		d.ElevationDB = parabolicDB(g.ElevationOffDeg, env.HPBWElDeg, env.SidelobeFloorDB)
	}
	d.EffectiveGainDBi = math.Max(maxGainDBi-(d.AzimuthDB+d.ElevationDB), env.BacklobeFloorDBi)
	return d
}
