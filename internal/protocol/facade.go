// Package protocol validates available spectrum inquiries, dispatches them to
// the grant engine, and shapes the engine output into protocol responses.
package protocol

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/channelplan"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/engine"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/mapper"
)

const (
	// DefaultAvailabilityTTL stamps availabilityExpireTime when none is configured.
	DefaultAvailabilityTTL = 15 * time.Minute
	// DefaultMaxRegionExtentM bounds how far a location shape may reach from its anchor.
	DefaultMaxRegionExtentM = 5000.0
)

// CertPolicy holds the resolved certification lists. A nil Certified set
// disables the certified-list check.
type CertPolicy struct {
	Certified       map[string]struct{}
	Disallowed      map[string]struct{}
	DisallowedPairs map[[2]string]struct{}
}

func NewCertPolicy(certified, disallowed []string, pairs [][2]string) CertPolicy {
	var p CertPolicy
	if len(certified) > 0 {
		p.Certified = toSet(certified)
	}
	p.Disallowed = toSet(disallowed)
	p.DisallowedPairs = make(map[[2]string]struct{}, len(pairs))
	for _, pr := range pairs {
		p.DisallowedPairs[pr] = struct{}{}
	}
	return p
}

func toSet(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}

// Check returns ErrDeviceDisallowed when the identity is blocked or not certified.
func (p CertPolicy) Check(certID, serial string) error {
	if _, ok := p.Disallowed[certID]; ok {
		return fmt.Errorf("%w: certification %q", ErrDeviceDisallowed, certID)
	}
	if _, ok := p.DisallowedPairs[[2]string{certID, serial}]; ok {
		return fmt.Errorf("%w: certification %q serial %q", ErrDeviceDisallowed, certID, serial)
	}
	if p.Certified != nil {
		if _, ok := p.Certified[certID]; !ok {
			return fmt.Errorf("%w: certification %q not on certified list", ErrDeviceDisallowed, certID)
		}
	}
	return nil
}

// MarshalJSON encodes the lists sorted, so equal policies encode identically.
// A nil Certified set encodes as null and an empty one as [].
func (p CertPolicy) MarshalJSON() ([]byte, error) {
	pairs := slices.Collect(maps.Keys(p.DisallowedPairs))
	slices.SortFunc(pairs, func(a, b [2]string) int {
		return cmp.Or(strings.Compare(a[0], b[0]), strings.Compare(a[1], b[1]))
	})
	return json.Marshal(struct {
		Certified       []string    `json:"certified"`
		Disallowed      []string    `json:"disallowed"`
		DisallowedPairs [][2]string `json:"disallowedPairs"`
	}{sortedKeys(p.Certified), sortedKeys(p.Disallowed), pairs})
}

func sortedKeys(m map[string]struct{}) []string {
	if m == nil {
		return nil
	}
	return append([]string{}, slices.Sorted(maps.Keys(m))...)
}

type Options struct {
	Strict           bool
	AvailabilityTTL  time.Duration
	MaxRegionExtentM float64
	Now              func() time.Time
	Certification    CertPolicy
}

type Facade struct {
	eng    *engine.Engine
	mapper mapper.Interface
	opts   Options
}

func New(eng *engine.Engine, m mapper.Interface, opts Options) *Facade {
	if opts.AvailabilityTTL <= 0 {
		opts.AvailabilityTTL = DefaultAvailabilityTTL
	}
	if !(opts.MaxRegionExtentM > 0) {
		opts.MaxRegionExtentM = DefaultMaxRegionExtentM
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Facade{eng: eng, mapper: m, opts: opts}
}

// Outcome carries the response plus what the transport layer may want to
// record about it.
type Outcome struct {
	Response Response
	Basis    string
	Records  []model.GrantRecord
	Err      error
}

// Handle decodes and answers one raw inquiry body. It never fails: every
// problem becomes a response code.
func (f *Facade) Handle(ctx context.Context, body []byte, receivers []model.ReceiverPoint) Outcome {
	req, err := Decode(body, f.opts.Strict)
	if err != nil {
		return f.reject(req.RequestID, "", err)
	}
	return f.HandleRequest(ctx, req, receivers)
}

// HandleRequest runs Validate, Dispatch, Evaluate and BuildResponse in order;
// each stage is a terminal exit on failure.
func (f *Facade) HandleRequest(ctx context.Context, req Request, receivers []model.ReceiverPoint) Outcome {
	v, err := validate(req)
	if err != nil {
		return f.reject(req.RequestID, "", err)
	}
	if regionExtentM(v.region) > f.opts.MaxRegionExtentM {
		return f.reject(req.RequestID, v.basis.String(), invalid("location"))
	}
	if d := req.DeviceDescriptor; d != nil && d.CertificationID != "" {
		if err := f.opts.Certification.Check(d.CertificationID, d.SerialNumber); err != nil {
			return f.reject(req.RequestID, v.basis.String(), err)
		}
	}

	plan, err := dispatch(v)
	if err != nil {
		return f.reject(req.RequestID, v.basis.String(), err)
	}

	records, err := f.evaluate(ctx, v, plan, receivers)
	if err != nil {
		return f.reject(req.RequestID, v.basis.String(), err)
	}

	resp := f.success(req.RequestID)
	switch v.basis {
	case basisChannel:
		resp.AvailableChannelInfo = buildChannelInfo(plan, records)
	case basisFrequency:
		merge := req.MergeBins == nil || *req.MergeBins
		resp.AvailableFrequencyInfo = buildFrequencyInfo(plan, records, merge)
	}
	return Outcome{Response: resp, Basis: v.basis.String(), Records: records}
}

func (f *Facade) evaluate(ctx context.Context, v validated, p plan, receivers []model.ReceiverPoint) ([]model.GrantRecord, error) {
	pts, err := f.mapper.EvaluationPoints(v.region)
	if err != nil {
		return nil, invalid("location")
	}
	aps := make([]engine.AP, len(pts))
	for i, pt := range pts {
		aps[i] = engine.AP{ID: fmt.Sprintf("p%d", i), Location: pt, HeightM: v.height}
	}

	eng, err := f.eng.With(engine.Overrides{
		PathModel:          v.path,
		Environment:        v.env,
		Indoor:             v.indoor,
		PenetrationDB:      v.req.PenetrationLossDB,
		ProtectionMarginDB: v.req.ProtectionMarginDB,
		Device:             engine.DeviceLimits{MinEIRPDBm: v.req.MinDesiredPower},
	})
	if err != nil {
		return nil, invalid("configuration")
	}
	records, err := eng.Grant(ctx, engine.Inquiry{Points: aps, Receivers: receivers, Channels: p.channels})
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return records, nil
}

func (f *Facade) success(id string) Response {
	return Response{
		RequestID:              id,
		Response:               Status{ResponseCode: CodeSuccess, ShortDescription: CodeSuccess.String()},
		AvailabilityExpireTime: f.opts.Now().UTC().Add(f.opts.AvailabilityTTL).Format(time.RFC3339),
	}
}

func (f *Facade) reject(id, basis string, err error) Outcome {
	code := CodeOf(err)
	st := Status{ResponseCode: code, ShortDescription: code.String()}
	var ve *ValidationError
	if errors.As(err, &ve) && (len(ve.Missing) > 0 || len(ve.Invalid) > 0 || len(ve.Unexpected) > 0) {
		st.SupplementalInfo = &SupplementalInfo{
			MissingParams:    ve.Missing,
			InvalidParams:    ve.Invalid,
			UnexpectedParams: ve.Unexpected,
		}
	}
	return Outcome{Response: Response{RequestID: id, Response: st}, Basis: basis, Err: err}
}

// plan is the dispatched channel list plus how to fold records back into the
// response shape.
type plan struct {
	channels []model.Channel
	groups   []group
}

// maxPlanChannels bounds the channels or bins one inquiry may evaluate. The
// whole 6 GHz band is 1200 bins.
const maxPlanChannels = 2048

// group is one inquired operating class (or frequency range) and the span of
// plan.channels it produced.
type group struct {
	class      int
	start, end int
}

func dispatch(v validated) (plan, error) {
	var p plan
	if v.basis == basisChannel {
		for _, q := range v.req.InquiredChannels {
			if q.GlobalOperatingClass == nil {
				return p, missing("inquiredChannels.globalOperatingClass")
			}
			oc, err := channelplan.Lookup(*q.GlobalOperatingClass)
			if err != nil {
				return p, unsupported("inquiredChannels.globalOperatingClass")
			}
			g := group{class: oc.ID, start: len(p.channels)}
			switch {
			case q.ChannelCfi == nil && oc.Enumerable():
				p.channels = append(p.channels, oc.Channels()...)
			case q.ChannelCfi == nil:
				return p, unsupported("inquiredChannels.channelCfi")
			default:
				for _, cfi := range q.ChannelCfi {
					ch, err := oc.Channel(cfi)
					if err != nil {
						return p, invalid("inquiredChannels.channelCfi")
					}
					p.channels = append(p.channels, ch)
				}
			}
			g.end = len(p.channels)
			p.groups = append(p.groups, g)
			if len(p.channels) > maxPlanChannels {
				return p, invalid("inquiredChannels")
			}
		}
		return p, nil
	}

	for _, r := range v.req.InquiredFrequencyRange {
		if r.LowFrequency == nil || r.HighFrequency == nil {
			return p, missing("inquiredFrequencyRange.lowFrequency", "inquiredFrequencyRange.highFrequency")
		}
		bins, err := channelplan.Bins(*r.LowFrequency, *r.HighFrequency)
		if err != nil {
			return p, invalid("inquiredFrequencyRange")
		}
		if len(p.channels)+len(bins) > maxPlanChannels {
			return p, invalid("inquiredFrequencyRange")
		}
		g := group{start: len(p.channels)}
		p.channels = append(p.channels, bins...)
		g.end = len(p.channels)
		p.groups = append(p.groups, g)
	}
	return p, nil
}

// Decode parses body under the façade's schema mode.
func (f *Facade) Decode(body []byte) (Request, error) {
	return Decode(body, f.opts.Strict)
}

// Reject builds the response for a request that failed before evaluation.
func (f *Facade) Reject(requestID string, err error) Outcome {
	return f.reject(requestID, "", err)
}

// Restamp readies a stored response for a new caller: its requestId is
// echoed and a successful answer gets a fresh expiry.
func (f *Facade) Restamp(resp Response, requestID string) Response {
	resp.RequestID = requestID
	if resp.Response.ResponseCode == CodeSuccess {
		resp.AvailabilityExpireTime = f.success(requestID).AvailabilityExpireTime
	}
	return resp
}

// Canonical is the request encoding used to recognise identical inquiries.
// The requestId is excluded.
func Canonical(req Request) ([]byte, error) {
	req.RequestID = ""
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("canonical request: %w", err)
	}
	return b, nil
}
