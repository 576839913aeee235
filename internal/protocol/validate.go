package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/geo"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/propagation"
)

// Decode parses a request body. With strict set, unknown fields are rejected
// as UNEXPECTED_PARAM; any other decode failure is INVALID_VALUE. Field names
// match case-insensitively, as encoding/json does, so "REQUESTID" binds to
// requestId rather than counting as unknown.
func Decode(body []byte, strict bool) (Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(body))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&req); err != nil {
		if name, ok := unknownField(err); ok {
			return req, unexpected(name)
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return req, invalid(te.Field)
		}
		return req, invalid("body")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return req, invalid("body")
	}
	return req, nil
}

// unknownField extracts the name from encoding/json's unknown field error.
func unknownField(err error) (string, bool) {
	const prefix = `json: unknown field "`
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(msg, prefix), `"`), true
}

type basis uint8

const (
	basisChannel basis = iota + 1
	basisFrequency
)

func (b basis) String() string {
	if b == basisFrequency {
		return "frequency"
	}
	return "channel"
}

// validated is a request that passed shape validation.
type validated struct {
	req    Request
	region model.Region
	basis  basis
	height *float64
	indoor *bool
	env    *propagation.Environment
	path   *propagation.Kind
}

func validate(req Request) (validated, error) {
	v := validated{req: req}
	if req.Location == nil {
		return v, missing("location")
	}
	region, err := toRegion(*req.Location)
	if err != nil {
		return v, err
	}
	v.region = region

	if el := req.Location.Elevation; el != nil && el.Height != nil {
		if !finite(*el.Height) {
			return v, invalid("location.elevation.height")
		}
		v.height = el.Height
	}
	if d := req.Location.IndoorDeployment; d != nil {
		switch *d {
		case DeploymentUnknown:
		case DeploymentIndoor, DeploymentOutdoor:
			in := *d == DeploymentIndoor
			v.indoor = &in
		default:
			return v, invalid("location.indoorDeployment")
		}
	}

	hasCh, hasFreq := req.InquiredChannels != nil, req.InquiredFrequencyRange != nil
	switch {
	case !hasCh && !hasFreq:
		return v, missing("inquiredChannels", "inquiredFrequencyRange")
	case hasCh && hasFreq:
		return v, invalid("inquiredChannels", "inquiredFrequencyRange")
	case hasCh:
		v.basis = basisChannel
		if len(req.InquiredChannels) == 0 {
			return v, missing("inquiredChannels")
		}
	default:
		v.basis = basisFrequency
		if len(req.InquiredFrequencyRange) == 0 {
			return v, missing("inquiredFrequencyRange")
		}
		if req.MinDesiredPower != nil {
			return v, unexpected("minDesiredPower")
		}
	}

	if req.Environment != nil {
		env, err := propagation.ParseEnvironment(*req.Environment)
		if err != nil {
			return v, invalid("environment")
		}
		v.env = &env
	}
	if req.PathModel != nil {
		k, err := propagation.ParseKind(*req.PathModel)
		if err != nil {
			return v, invalid("pathModel")
		}
		v.path = &k
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"protectionMarginDb", req.ProtectionMarginDB},
		{"penetrationLossDb", req.PenetrationLossDB},
		{"minDesiredPower", req.MinDesiredPower},
	} {
		if f.v != nil && !finite(*f.v) {
			return v, invalid(f.name)
		}
	}
	return v, nil
}

func toRegion(loc Location) (model.Region, error) {
	var shapes []string
	if loc.Point != nil {
		shapes = append(shapes, "location.point")
	}
	if loc.Ellipse != nil {
		shapes = append(shapes, "location.ellipse")
	}
	if loc.LinearPolygon != nil {
		shapes = append(shapes, "location.linearPolygon")
	}
	if loc.RadialPolygon != nil {
		shapes = append(shapes, "location.radialPolygon")
	}
	switch len(shapes) {
	case 0:
		return model.Region{}, missing("location.point")
	case 1:
	default:
		return model.Region{}, invalid(shapes...)
	}

	var r model.Region
	switch {
	case loc.Point != nil:
		p, err := toLatLon(loc.Point, "location.point")
		if err != nil {
			return r, err
		}
		r.Point = &p
	case loc.Ellipse != nil:
		e := loc.Ellipse
		c, err := toLatLon(e.Center, "location.ellipse.center")
		if err != nil {
			return r, err
		}
		if e.MajorAxis == nil || e.MinorAxis == nil {
			return r, missing("location.ellipse.majorAxis", "location.ellipse.minorAxis")
		}
		if !(*e.MajorAxis > 0) || !(*e.MinorAxis > 0) || *e.MinorAxis > *e.MajorAxis || math.IsInf(*e.MajorAxis, 0) {
			return r, invalid("location.ellipse.majorAxis", "location.ellipse.minorAxis")
		}
		orient := 0.0
		if e.Orientation != nil {
			if !finite(*e.Orientation) {
				return r, invalid("location.ellipse.orientation")
			}
			orient = *e.Orientation
		}
		r.Ellipse = &model.Ellipse{Center: c, MajorAxisM: *e.MajorAxis, MinorAxisM: *e.MinorAxis, OrientationDeg: orient}
	case loc.LinearPolygon != nil:
		if len(loc.LinearPolygon.OuterBoundary) < 3 {
			return r, invalid("location.linearPolygon.outerBoundary")
		}
		lp := &model.LinearPolygon{}
		for i := range loc.LinearPolygon.OuterBoundary {
			p, err := toLatLon(&loc.LinearPolygon.OuterBoundary[i], "location.linearPolygon.outerBoundary")
			if err != nil {
				return r, err
			}
			lp.OuterBoundary = append(lp.OuterBoundary, p)
		}
		r.Linear = lp
	default:
		rp := loc.RadialPolygon
		c, err := toLatLon(rp.Center, "location.radialPolygon.center")
		if err != nil {
			return r, err
		}
		if len(rp.OuterBoundary) < 3 {
			return r, invalid("location.radialPolygon.outerBoundary")
		}
		out := &model.RadialPolygon{Center: c}
		for _, vec := range rp.OuterBoundary {
			if vec.Angle == nil || vec.Length == nil {
				return r, missing("location.radialPolygon.outerBoundary")
			}
			if !finite(*vec.Angle) || !finite(*vec.Length) || *vec.Length < 0 {
				return r, invalid("location.radialPolygon.outerBoundary")
			}
			out.OuterBoundary = append(out.OuterBoundary, model.RadialVertex{AngleDeg: *vec.Angle, LengthM: *vec.Length})
		}
		r.Radial = out
	}
	return r, nil
}

// regionExtentM is the farthest a region's boundary reaches from its anchor.
func regionExtentM(r model.Region) float64 {
	var ext float64
	switch {
	case r.Ellipse != nil:
		ext = r.Ellipse.MajorAxisM
	case r.Radial != nil:
		for _, v := range r.Radial.OuterBoundary {
			ext = max(ext, v.LengthM)
		}
	case r.Linear != nil:
		for _, p := range r.Linear.OuterBoundary {
			ext = max(ext, geo.DistanceM(r.Linear.OuterBoundary[0], p))
		}
	}
	return ext
}

func toLatLon(p *Point, field string) (model.LatLon, error) {
	if p == nil {
		return model.LatLon{}, missing(field)
	}
	var miss []string
	if p.Latitude == nil {
		miss = append(miss, field+".latitude")
	}
	if p.Longitude == nil {
		miss = append(miss, field+".longitude")
	}
	if len(miss) > 0 {
		return model.LatLon{}, missing(miss...)
	}
	ll := model.LatLon{Lat: *p.Latitude, Lon: *p.Longitude}
	if !ll.Valid() {
		return model.LatLon{}, invalid(field)
	}
	return ll, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
