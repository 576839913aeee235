package protocol

import (
	"math"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
)

// psdTolerance is the largest PSD difference treated as equal when merging bins.
const psdTolerance = 1e-6

// buildChannelInfo emits one entry per inquired class with parallel index and
// EIRP arrays. Denied channels are left out.
func buildChannelInfo(p plan, records []model.GrantRecord) []ChannelInfo {
	out := make([]ChannelInfo, 0, len(p.groups))
	for _, g := range p.groups {
		info := ChannelInfo{GlobalOperatingClass: g.class, ChannelCfi: []int{}, MaxEirp: []float64{}}
		for _, rec := range records[g.start:g.end] {
			if rec.Decision != model.Grant {
				continue
			}
			info.ChannelCfi = append(info.ChannelCfi, rec.Channel.Index)
			info.MaxEirp = append(info.MaxEirp, round2(rec.AllowedEIRPDBm))
		}
		out = append(out, info)
	}
	return out
}

// buildFrequencyInfo reports granted 1 MHz bins. When merge is set, bins of
// one inquired range that touch and carry the same PSD (within psdTolerance)
// collapse into one entry. Entries never span two inquired ranges.
func buildFrequencyInfo(p plan, records []model.GrantRecord, merge bool) []FrequencyInfo {
	var out []FrequencyInfo
	for _, g := range p.groups {
		first := len(out)
		for _, rec := range records[g.start:g.end] {
			if rec.Decision != model.Grant {
				continue
			}
			lo, hi, psd := rec.Channel.LowMHz(), rec.Channel.HighMHz(), rec.AllowedPSDDBmPerMHz
			if n := len(out); merge && n > first {
				last := &out[n-1]
				if last.FrequencyRange.HighFrequency == lo && math.Abs(last.MaxPsd-psd) < psdTolerance {
					last.FrequencyRange.HighFrequency = hi
					continue
				}
			}
			out = append(out, FrequencyInfo{FrequencyRange: Range{LowFrequency: lo, HighFrequency: hi}, MaxPsd: psd})
		}
	}
	for i := range out {
		out[i].MaxPsd = round2(out[i].MaxPsd)
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
