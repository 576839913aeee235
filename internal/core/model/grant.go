package model

import "strconv"

type Band string

const (
	BandUNII5 Band = "UNII-5"
	BandUNII6 Band = "UNII-6"
	BandUNII7 Band = "UNII-7"
	BandUNII8 Band = "UNII-8"
	BandNRU   Band = "NR-U"
	BandBin   Band = "bin"
)

// Channel is immutable once produced by the channel plan.
type Channel struct {
	Band           Band
	OperatingClass int
	Index          int
	CenterMHz      float64
	BandwidthMHz   float64
}

// ID is "<class>/<index>" for planned channels and "<low>-<high>" for frequency bins.
func (c Channel) ID() string {
	if c.OperatingClass == 0 {
		return strconv.FormatFloat(c.LowMHz(), 'f', -1, 64) + "-" + strconv.FormatFloat(c.HighMHz(), 'f', -1, 64)
	}
	return strconv.Itoa(c.OperatingClass) + "/" + strconv.Itoa(c.Index)
}

func (c Channel) LowMHz() float64  { return c.CenterMHz - c.BandwidthMHz/2 }
func (c Channel) HighMHz() float64 { return c.CenterMHz + c.BandwidthMHz/2 }

type Regime uint8

const (
	RegimeCoChannel Regime = iota
	RegimeAdjacent
)

func (r Regime) String() string {
	if r == RegimeAdjacent {
		return "adjacent-channel"
	}
	return "co-channel"
}

type Cause string

const (
	CauseCoChannel     Cause = "co-channel"
	CauseAdjacent      Cause = "adjacent-channel"
	CauseDeviceMinimum Cause = "device-minimum"
	CauseRegulatoryCap Cause = "regulatory-cap"
)

// CauseFor maps an interference regime onto its trace cause.
func CauseFor(r Regime) Cause {
	if r == RegimeAdjacent {
		return CauseAdjacent
	}
	return CauseCoChannel
}

type Decision string

const (
	Grant Decision = "grant"
	Deny  Decision = "deny"
)

// InterferenceResult is one (receiver, channel) evaluation. Interference and
// margin are stated at ReferenceEIRPDBm.
type InterferenceResult struct {
	ReceiverID       string
	ChannelID        string
	DistanceM        float64
	PathLossDB       float64
	DiscriminationDB float64
	Regime           Regime
	OffsetMHz        float64
	ACIRDB           float64
	ReferenceEIRPDBm float64
	InterferenceDBm  float64
	NoiseDBm         float64
	MarginDB         float64
	TolerableEIRPDBm float64
}

type Trace struct {
	LimitingReceiverID string
	Cause              Cause
}

// Exclusion records a receiver dropped from aggregation because its record was malformed.
type Exclusion struct {
	ReceiverID string
	Reason     string
}

type GrantRecord struct {
	Channel             Channel
	AllowedEIRPDBm      float64
	AllowedPSDDBmPerMHz float64
	Decision            Decision
	Trace               Trace
	Excluded            []Exclusion

	// Limiting is the strictest receiver evaluation; nil when no receiver was scored.
	Limiting *InterferenceResult
}

// GrantRow is the flat record handed to report collaborators.
type GrantRow struct {
	ChannelID           string   `json:"channelId"`
	CenterMHz           float64  `json:"centerMhz"`
	BandwidthMHz        float64  `json:"bandwidthMhz"`
	OffsetMHz           float64  `json:"offsetMhz"`
	PathLossDB          float64  `json:"pathLossDb"`
	NoiseDBm            float64  `json:"noiseDbm"`
	AllowedEIRPDBm      float64  `json:"allowedEirpDbm"`
	AllowedPSDDBmPerMHz float64  `json:"allowedPsdDbmPerMhz"`
	Decision            Decision `json:"decision"`
}

func (g GrantRecord) Row() GrantRow {
	row := GrantRow{
		ChannelID:           g.Channel.ID(),
		CenterMHz:           g.Channel.CenterMHz,
		BandwidthMHz:        g.Channel.BandwidthMHz,
		AllowedEIRPDBm:      g.AllowedEIRPDBm,
		AllowedPSDDBmPerMHz: g.AllowedPSDDBmPerMHz,
		Decision:            g.Decision,
	}
	if g.Limiting != nil {
		row.OffsetMHz = g.Limiting.OffsetMHz
		row.PathLossDB = g.Limiting.PathLossDB
		row.NoiseDBm = g.Limiting.NoiseDBm
	}
	return row
}

// AggregateResult summarises one channel across several AP sites.
type AggregateResult struct {
	Channel         Channel
	WorstMarginDB   float64
	WorstAPID       string
	WorstReceiverID string
	Pass            bool

	// AggregateINRDB is the highest linear-sum I/N seen at any receiver with
	// every AP transmitting at once; AggregatePass compares it to the threshold.
	AggregateINRDB      float64
	AggregateReceiverID string
	AggregatePass       bool
}
