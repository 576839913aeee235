package engine

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/linkbudget"
)

var ErrNoPoints = errors.New("engine: inquiry has no AP points")

// Inquiry is everything needed to grant a channel set. Points are the sampled
// AP positions; the strictest point governs each channel.
type Inquiry struct {
	Points    []AP
	Receivers []model.ReceiverPoint
	Channels  []model.Channel
}

// Grant produces one GrantRecord per channel, in channel order. Channels are
// evaluated on up to Config.Workers goroutines.
func (e *Engine) Grant(ctx context.Context, in Inquiry) ([]model.GrantRecord, error) {
	if len(in.Points) == 0 {
		return nil, ErrNoPoints
	}
	out := make([]model.GrantRecord, len(in.Channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, ch := range in.Channels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.GrantChannel(in.Points, in.Receivers, ch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AggregateAPs reports, per channel, the worst margin across AP sites and the
// linear-sum interference seen at each receiver with all APs on air.
func (e *Engine) AggregateAPs(ctx context.Context, aps []AP, receivers []model.ReceiverPoint, channels []model.Channel) ([]model.AggregateResult, error) {
	if len(aps) == 0 {
		return nil, ErrNoPoints
	}
	out := make([]model.AggregateResult, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, ch := range channels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.aggregateChannel(aps, receivers, ch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) aggregateChannel(aps []AP, receivers []model.ReceiverPoint, ch model.Channel) model.AggregateResult {
	res := model.AggregateResult{
		Channel:        ch,
		WorstMarginDB:  math.Inf(1),
		AggregateINRDB: math.Inf(-1),
		Pass:           true,
	}
	prot := e.cfg.Protection
	for _, rx := range receivers {
		var (
			sumMW float64
			noise float64
			ok    bool
		)
		for _, ap := range aps {
			ev, err := e.Evaluate(ap, rx, ch)
			if err != nil {
				ok = false
				break
			}
			ok = true
			eirp := valueOr(ap.EIRPDBm, e.cfg.RegulatoryCapDBm)
			i := ev.InterferenceDBm - ev.ReferenceEIRPDBm + eirp
			m := prot.Headroom(ev.NoiseDBm, i)
			if m < res.WorstMarginDB || m == res.WorstMarginDB && (ap.ID < res.WorstAPID || ap.ID == res.WorstAPID && rx.ID < res.WorstReceiverID) {
				res.WorstMarginDB, res.WorstAPID, res.WorstReceiverID = m, ap.ID, rx.ID
			}
			sumMW += linkbudget.DBmToMilliwatt(i)
			noise = ev.NoiseDBm
		}
		if !ok {
			continue
		}
		if inr := linkbudget.MilliwattToDBm(sumMW) - noise; inr > res.AggregateINRDB {
			res.AggregateINRDB, res.AggregateReceiverID = inr, rx.ID
		}
	}
	if math.IsInf(res.WorstMarginDB, 1) {
		// nothing scored; no receiver can be harmed
		res.WorstMarginDB = 0
		res.AggregateINRDB = math.Inf(-1)
		res.AggregatePass = true
		return res
	}
	res.Pass = res.WorstMarginDB >= 0
	res.AggregatePass = res.AggregateINRDB <= prot.ThresholdDB-prot.MarginDB
	return res
}
