// Package channelplan maps operating classes and channel indices onto
// immutable channels, and partitions frequency ranges into evaluation bins.
package channelplan

import (
	"errors"
	"fmt"
	"math"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
)

var (
	ErrUnknownClass = errors.New("channelplan: operating class has no channel mapping")
	ErrInvalidIndex = errors.New("channelplan: channel index not in operating class")
	ErrEmptyRange   = errors.New("channelplan: frequency range yields no bins")
	ErrOutOfBand    = errors.New("channelplan: frequency range outside 6 GHz band")
)

// 6 GHz band edges in MHz.
const (
	BandLowMHz  = 5925.0
	BandHighMHz = 7125.0
	wifiOrigin  = 5950.0
	nruBaseCFI  = 600000
)

type BandRange struct {
	Band    model.Band
	LowMHz  float64
	HighMHz float64
}

var Bands = []BandRange{
	{Band: model.BandUNII5, LowMHz: 5925, HighMHz: 6425},
	{Band: model.BandUNII6, LowMHz: 6425, HighMHz: 6525},
	{Band: model.BandUNII7, LowMHz: 6525, HighMHz: 6875},
	{Band: model.BandUNII8, LowMHz: 6875, HighMHz: 7125},
}

// BandOf tags a center frequency with its U-NII sub-band, or "" outside 6 GHz.
func BandOf(centerMHz float64) model.Band {
	for _, b := range Bands {
		if centerMHz >= b.LowMHz && centerMHz < b.HighMHz {
			return b.Band
		}
	}
	return ""
}

type classKind uint8

const (
	kindWiFi classKind = iota
	kindNRU
)

type OpClass struct {
	ID           int
	BandwidthMHz float64
	kind         classKind
	origin       float64
	first, step  int
}

var classes = map[int]OpClass{
	131: {ID: 131, BandwidthMHz: 20, origin: wifiOrigin, first: 1, step: 4},
	132: {ID: 132, BandwidthMHz: 40, origin: wifiOrigin, first: 3, step: 8},
	133: {ID: 133, BandwidthMHz: 80, origin: wifiOrigin, first: 7, step: 16},
	134: {ID: 134, BandwidthMHz: 160, origin: wifiOrigin, first: 15, step: 32},
	136: {ID: 136, BandwidthMHz: 20, origin: BandLowMHz, first: 2},
	137: {ID: 137, BandwidthMHz: 320, origin: wifiOrigin, first: 31, step: 32},
	300: {ID: 300, BandwidthMHz: 20, kind: kindNRU},
	301: {ID: 301, BandwidthMHz: 40, kind: kindNRU},
	302: {ID: 302, BandwidthMHz: 60, kind: kindNRU},
	303: {ID: 303, BandwidthMHz: 80, kind: kindNRU},
	304: {ID: 304, BandwidthMHz: 100, kind: kindNRU},
}

func Lookup(goc int) (OpClass, error) {
	c, ok := classes[goc]
	if !ok {
		return OpClass{}, fmt.Errorf("%w: %d", ErrUnknownClass, goc)
	}
	return c, nil
}

// Enumerable reports whether the class can list its channels without explicit indices.
func (c OpClass) Enumerable() bool { return c.kind == kindWiFi }

// CenterMHz maps a channel index onto a center frequency.
func (c OpClass) CenterMHz(cfi int) float64 {
	if c.kind == kindNRU {
		return 3000 + 15*float64(cfi-nruBaseCFI)/1000
	}
	return c.origin + 5*float64(cfi)
}

func (c OpClass) Channel(cfi int) (model.Channel, error) {
	if c.kind == kindWiFi {
		if c.step == 0 && cfi != c.first || c.step > 0 && (cfi < c.first || (cfi-c.first)%c.step != 0) {
			return model.Channel{}, fmt.Errorf("%w: class %d index %d", ErrInvalidIndex, c.ID, cfi)
		}
	} else if cfi < nruBaseCFI {
		return model.Channel{}, fmt.Errorf("%w: class %d index %d", ErrInvalidIndex, c.ID, cfi)
	}
	ch := model.Channel{
		OperatingClass: c.ID,
		Index:          cfi,
		CenterMHz:      c.CenterMHz(cfi),
		BandwidthMHz:   c.BandwidthMHz,
	}
	if ch.LowMHz() < BandLowMHz-1e-9 || ch.HighMHz() > BandHighMHz+1e-9 {
		return model.Channel{}, fmt.Errorf("%w: class %d index %d outside 6 GHz", ErrInvalidIndex, c.ID, cfi)
	}
	ch.Band = BandOf(ch.CenterMHz)
	if c.kind == kindNRU {
		ch.Band = model.BandNRU
	}
	return ch, nil
}

// Channels lists every channel of an enumerable class in index order.
func (c OpClass) Channels() []model.Channel {
	if !c.Enumerable() {
		return nil
	}
	var out []model.Channel
	if c.step == 0 {
		if ch, err := c.Channel(c.first); err == nil {
			out = append(out, ch)
		}
		return out
	}
	for cfi := c.first; ; cfi += c.step {
		ch, err := c.Channel(cfi)
		if err != nil {
			break
		}
		out = append(out, ch)
	}
	return out
}

// Generate returns grid channels of the given bandwidths lying fully inside [lowMHz, highMHz].
func Generate(lowMHz, highMHz float64, bandwidthsMHz ...float64) []model.Channel {
	var out []model.Channel
	for _, bw := range bandwidthsMHz {
		for _, id := range []int{131, 132, 133, 134, 137} {
			c := classes[id]
			if c.BandwidthMHz != bw {
				continue
			}
			for _, ch := range c.Channels() {
				if ch.LowMHz() >= lowMHz-1e-9 && ch.HighMHz() <= highMHz+1e-9 {
					out = append(out, ch)
				}
			}
		}
	}
	return out
}

// Bins partitions [lowMHz, highMHz] into 1 MHz bins [f, f+1] with integral
// edges fully inside the range. The range must lie within the 6 GHz band.
func Bins(lowMHz, highMHz float64) ([]model.Channel, error) {
	if math.IsNaN(lowMHz) || math.IsNaN(highMHz) || !(highMHz > lowMHz) {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrEmptyRange, lowMHz, highMHz)
	}
	if lowMHz < BandLowMHz || highMHz > BandHighMHz {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrOutOfBand, lowMHz, highMHz)
	}
	start, end := int(math.Ceil(lowMHz)), int(math.Floor(highMHz))
	n := end - start
	if n <= 0 {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrEmptyRange, lowMHz, highMHz)
	}
	out := make([]model.Channel, n)
	for i := range out {
		f := float64(start + i)
		out[i] = model.Channel{Band: model.BandBin, CenterMHz: f + 0.5, BandwidthMHz: 1}
	}
	return out, nil
}
