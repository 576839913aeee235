package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/acir"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/antenna"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/engine"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/propagation"
)

// EngineFile is the YAML engine defaults document. Absent keys keep the
// built-in defaults.
type EngineFile struct {
	RegulatoryCapDBm *float64 `yaml:"regulatory_cap_dbm"`
	PSDCapDBmPerMHz  *float64 `yaml:"psd_cap_dbm_per_mhz"`
	MinGrantEIRPDBm  *float64 `yaml:"min_grant_eirp_dbm"`

	Protection struct {
		ThresholdDB *float64 `yaml:"threshold_db"`
		MarginDB    *float64 `yaml:"margin_db"`
	} `yaml:"protection"`

	Propagation struct {
		Model          string   `yaml:"model"`
		Environment    string   `yaml:"environment"`
		Indoor         *bool    `yaml:"indoor"`
		PenetrationDB  *float64 `yaml:"penetration_db"`
		AutoThresholdM *float64 `yaml:"auto_threshold_m"`
		ITMClimate     string   `yaml:"itm_climate"`
	} `yaml:"propagation"`

	Device struct {
		MinEIRPDBm      *float64 `yaml:"min_eirp_dbm"`
		MinPSDDBmPerMHz *float64 `yaml:"min_psd_dbm_per_mhz"`
	} `yaml:"device"`

	// Receiver and Antenna are seeded with the built-in defaults before
	// decoding, so partial sections only replace the keys they name.
	Receiver      engine.ReceiverDefaults `yaml:"receiver"`
	Antenna       antenna.Envelope        `yaml:"antenna"`
	ACIR          acir.Overrides          `yaml:"acir"`
	Certification Certification           `yaml:"certification"`
}

// Certification lists device identities the façade accepts or refuses.
type Certification struct {
	Certified       []string       `yaml:"certified"`
	Disallowed      []string       `yaml:"disallowed"`
	DisallowedPairs []DevicePairID `yaml:"disallowed_pairs"`
}

type DevicePairID struct {
	CertificationID string `yaml:"certification_id"`
	SerialNumber    string `yaml:"serial_number"`
}

// Pairs flattens DisallowedPairs into (certification id, serial) tuples.
func (c Certification) Pairs() [][2]string {
	out := make([][2]string, 0, len(c.DisallowedPairs))
	for _, p := range c.DisallowedPairs {
		out = append(out, [2]string{p.CertificationID, p.SerialNumber})
	}
	return out
}

// ReadEngineFile parses path. Unknown keys are an error.
func ReadEngineFile(path string) (EngineFile, error) {
	var f EngineFile
	b, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read engine file: %w", err)
	}
	return ParseEngineFile(b)
}

func ParseEngineFile(b []byte) (EngineFile, error) {
	f := EngineFile{Receiver: engine.DefaultReceiver(), Antenna: antenna.DefaultEnvelope()}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("parse engine file: %w", err)
	}
	return f, nil
}

// Apply layers the file over base and validates the result.
func (f EngineFile) Apply(base engine.Config) (engine.Config, error) {
	c := base
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&c.RegulatoryCapDBm, f.RegulatoryCapDBm)
	setF(&c.MinGrantEIRPDBm, f.MinGrantEIRPDBm)
	setF(&c.Protection.ThresholdDB, f.Protection.ThresholdDB)
	setF(&c.Protection.MarginDB, f.Protection.MarginDB)
	setF(&c.Propagation.AutoThresholdM, f.Propagation.AutoThresholdM)
	if f.PSDCapDBmPerMHz != nil {
		c.PSDCapDBmPerMHz = f.PSDCapDBmPerMHz
	}

	var errs []error
	if f.Propagation.Model != "" {
		k, err := propagation.ParseKind(f.Propagation.Model)
		if err != nil {
			errs = append(errs, err)
		}
		c.Propagation.Kind = k
	}
	if f.Propagation.Environment != "" {
		env, err := propagation.ParseEnvironment(f.Propagation.Environment)
		if err != nil {
			errs = append(errs, err)
		}
		c.Propagation.Environment = env
	}
	if f.Propagation.Indoor != nil {
		c.Propagation.Indoor = *f.Propagation.Indoor
	}
	if f.Propagation.PenetrationDB != nil {
		c.Propagation.PenetrationDB = f.Propagation.PenetrationDB
	}
	if f.Propagation.ITMClimate != "" {
		c.Propagation.ITM.Climate = f.Propagation.ITMClimate
	}
	if f.Device.MinEIRPDBm != nil {
		c.Device.MinEIRPDBm = f.Device.MinEIRPDBm
	}
	if f.Device.MinPSDDBmPerMHz != nil {
		c.Device.MinPSDDBmPerMHz = f.Device.MinPSDDBmPerMHz
	}
	c.Receiver = f.Receiver
	c.Envelope = f.Antenna
	masks, err := acir.Build(f.ACIR)
	if err != nil {
		errs = append(errs, err)
	}
	c.Masks = masks

	if err := errors.Join(errs...); err != nil {
		return base, fmt.Errorf("engine file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return base, fmt.Errorf("engine file: %w", err)
	}
	return c, nil
}
