package engine

import (
	"errors"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/linkbudget"
)

// stricter orders evaluations by tolerable EIRP, ties broken by receiver id.
func stricter(a, b model.InterferenceResult) bool {
	if a.TolerableEIRPDBm != b.TolerableEIRPDBm {
		return a.TolerableEIRPDBm < b.TolerableEIRPDBm
	}
	return a.ReceiverID < b.ReceiverID
}

// Reduce folds receiver evaluations for one channel into a GrantRecord. The
// fold is a minimum, so partial reductions may be combined in any order.
func (e *Engine) Reduce(ch model.Channel, evals []model.InterferenceResult, excluded []model.Exclusion) model.GrantRecord {
	rec := model.GrantRecord{Channel: ch}
	if len(excluded) > 0 {
		rec.Excluded = append([]model.Exclusion(nil), excluded...)
	}
	for i := range evals {
		if rec.Limiting == nil || stricter(evals[i], *rec.Limiting) {
			ev := evals[i]
			rec.Limiting = &ev
		}
	}

	capDBm := e.capDBm(ch.BandwidthMHz)
	rec.AllowedEIRPDBm = capDBm
	rec.Trace.Cause = model.CauseRegulatoryCap
	if rec.Limiting != nil && rec.Limiting.TolerableEIRPDBm < capDBm {
		rec.AllowedEIRPDBm = rec.Limiting.TolerableEIRPDBm
		rec.Trace = model.Trace{LimitingReceiverID: rec.Limiting.ReceiverID, Cause: model.CauseFor(rec.Limiting.Regime)}
	}
	rec.AllowedPSDDBmPerMHz = linkbudget.PSDFromEIRP(rec.AllowedEIRPDBm, ch.BandwidthMHz)

	rec.Decision = model.Deny
	if rec.AllowedEIRPDBm >= e.cfg.MinGrantEIRPDBm {
		rec.Decision = model.Grant
	}
	if e.belowDeviceMinimum(rec.AllowedEIRPDBm, rec.AllowedPSDDBmPerMHz) {
		rec.Decision = model.Deny
		rec.Trace.Cause = model.CauseDeviceMinimum
	}
	return rec
}

func (e *Engine) belowDeviceMinimum(eirp, psd float64) bool {
	d := e.cfg.Device
	return d.MinEIRPDBm != nil && eirp < *d.MinEIRPDBm ||
		d.MinPSDDBmPerMHz != nil && psd < *d.MinPSDDBmPerMHz
}

// GrantChannel evaluates every receiver from every AP point on one channel.
// Malformed receivers are excluded and listed on the record.
func (e *Engine) GrantChannel(points []AP, receivers []model.ReceiverPoint, ch model.Channel) model.GrantRecord {
	evals := make([]model.InterferenceResult, 0, len(points)*len(receivers))
	var excluded []model.Exclusion
	for _, rx := range receivers {
		mark := len(evals)
		for _, ap := range points {
			ev, err := e.Evaluate(ap, rx, ch)
			if err != nil {
				var de *model.DataError
				if !errors.As(err, &de) {
					de = &model.DataError{ReceiverID: rx.ID, Field: "evaluation", Reason: err.Error()}
				}
				excluded = append(excluded, model.Exclusion{ReceiverID: rx.ID, Reason: de.Error()})
				// discard only this receiver's partial evaluations
				evals = evals[:mark]
				break
			}
			evals = append(evals, ev)
		}
	}
	return e.Reduce(ch, evals, excluded)
}

// Flatten expands incumbents into their receivers, passive sites included.
func Flatten(incumbents []model.Incumbent) []model.ReceiverPoint {
	var out []model.ReceiverPoint
	for _, inc := range incumbents {
		out = append(out, inc.Receivers()...)
	}
	return out
}
