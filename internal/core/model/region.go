package model

// Ellipse is a horizontal uncertainty ellipse. Axes are semi-axis lengths in
// meters; orientation is the major axis bearing in degrees from true north.
type Ellipse struct {
	Center         LatLon  `json:"center"`
	MajorAxisM     float64 `json:"majorAxis"`
	MinorAxisM     float64 `json:"minorAxis"`
	OrientationDeg float64 `json:"orientation"`
}

// RadialVertex is a polygon vertex given as bearing and distance from a center.
type RadialVertex struct {
	AngleDeg float64 `json:"angle"`
	LengthM  float64 `json:"length"`
}

type RadialPolygon struct {
	Center        LatLon         `json:"center"`
	OuterBoundary []RadialVertex `json:"outerBoundary"`
}

type LinearPolygon struct {
	OuterBoundary []LatLon `json:"outerBoundary"`
}

// Region is an AP location: exactly one of the shapes is set.
type Region struct {
	Point   *LatLon
	Ellipse *Ellipse
	Linear  *LinearPolygon
	Radial  *RadialPolygon
}

// Shapes counts how many shape kinds are set.
func (r Region) Shapes() int {
	n := 0
	for _, set := range []bool{r.Point != nil, r.Ellipse != nil, r.Linear != nil, r.Radial != nil} {
		if set {
			n++
		}
	}
	return n
}

// Anchor is a representative point of the region: the point, center, or first vertex.
func (r Region) Anchor() (LatLon, bool) {
	switch {
	case r.Point != nil:
		return *r.Point, true
	case r.Ellipse != nil:
		return r.Ellipse.Center, true
	case r.Radial != nil:
		return r.Radial.Center, true
	case r.Linear != nil && len(r.Linear.OuterBoundary) > 0:
		return r.Linear.OuterBoundary[0], true
	}
	return LatLon{}, false
}
