package propagation

import (
	"fmt"
	"math"
	"strings"
)

type Environment string

const (
	EnvNone     Environment = ""
	EnvUrban    Environment = "urban"
	EnvSuburban Environment = "suburban"
	EnvRural    Environment = "rural"
	EnvIndoor   Environment = "indoor"
)

var clutterDB = map[Environment]float64{
	EnvNone:     0,
	EnvUrban:    8,
	EnvSuburban: 4,
	EnvRural:    1,
	EnvIndoor:   12,
}

// DefaultIndoorPenetrationDB applies when the AP is indoors and no explicit value is set.
const DefaultIndoorPenetrationDB = 12.0

// DefaultAutoThresholdM splits the automatic choice between short and long range models.
const DefaultAutoThresholdM = 5000.0

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAuto:
		return KindAuto, nil
	case KindFreeSpace, KindLogDistance, KindTwoSlope, KindITM:
		return k, nil
	case "free_space", "fs":
		return KindFreeSpace, nil
	case "winner", "log_distance":
		return KindLogDistance, nil
	case "twoslope", "two-slope":
		return KindTwoSlope, nil
	case "longley_rice":
		return KindITM, nil
	default:
		return "", fmt.Errorf("propagation: unknown path model %q", s)
	}
}

func ParseEnvironment(s string) (Environment, error) {
	e := Environment(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := clutterDB[e]; !ok {
		return "", fmt.Errorf("propagation: unknown environment %q", s)
	}
	return e, nil
}

type Config struct {
	Kind           Kind
	Environment    Environment
	Indoor         bool
	PenetrationDB  *float64
	AutoThresholdM float64
	LogDistance    LogDistance
	TwoSlope       TwoSlope
	ITM            IrregularTerrain
}

func DefaultConfig() Config {
	return Config{
		Kind:           KindAuto,
		AutoThresholdM: DefaultAutoThresholdM,
		LogDistance:    DefaultLogDistance(),
		TwoSlope:       DefaultTwoSlope(),
	}
}

// Loss is the breakdown of one path-loss evaluation.
type Loss struct {
	Model         Kind
	BaseDB        float64
	ClutterDB     float64
	PenetrationDB float64
}

func (l Loss) TotalDB() float64 { return l.BaseDB + l.ClutterDB + l.PenetrationDB }

// Selector is an immutable model choice plus environment offsets; safe for concurrent use.
type Selector struct {
	cfg Config
}

func NewSelector(cfg Config) (Selector, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindAuto
	}
	if _, err := ParseKind(string(cfg.Kind)); err != nil {
		return Selector{}, err
	}
	if _, ok := clutterDB[cfg.Environment]; !ok {
		return Selector{}, fmt.Errorf("propagation: unknown environment %q", cfg.Environment)
	}
	if cfg.PenetrationDB != nil && (math.IsNaN(*cfg.PenetrationDB) || math.IsInf(*cfg.PenetrationDB, 0)) {
		return Selector{}, fmt.Errorf("propagation: penetration loss must be finite")
	}
	if cfg.AutoThresholdM <= 0 {
		cfg.AutoThresholdM = DefaultAutoThresholdM
	}
	if cfg.LogDistance.Exponent <= 0 {
		cfg.LogDistance = DefaultLogDistance()
	}
	if cfg.TwoSlope.BreakpointM <= 0 {
		cfg.TwoSlope = DefaultTwoSlope()
	}
	return Selector{cfg: cfg}, nil
}

func (s Selector) Config() Config { return s.cfg }

// Model returns the strategy used for a path of the given length.
func (s Selector) Model(distanceM float64) Model {
	switch s.cfg.Kind {
	case KindFreeSpace:
		return FreeSpace{}
	case KindLogDistance:
		return s.cfg.LogDistance
	case KindTwoSlope:
		return s.cfg.TwoSlope
	case KindITM:
		return s.cfg.ITM
	}
	if distanceM < s.cfg.AutoThresholdM {
		return s.cfg.LogDistance
	}
	return s.cfg.ITM
}

// PenetrationDB is the explicit value clamped at zero, else the indoor default.
func (s Selector) PenetrationDB() float64 {
	if s.cfg.PenetrationDB != nil {
		return math.Max(0, *s.cfg.PenetrationDB)
	}
	if s.cfg.Indoor {
		return DefaultIndoorPenetrationDB
	}
	return 0
}

func (s Selector) Loss(distanceM, freqMHz float64) Loss {
	m := s.Model(distanceM)
	return Loss{
		Model:         m.Kind(),
		BaseDB:        m.LossDB(distanceM, freqMHz),
		ClutterDB:     clutterDB[s.cfg.Environment],
		PenetrationDB: s.PenetrationDB(),
	}
}
