package incumbents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
)

// File is the on-disk snapshot document.
type File struct {
	Incumbents []model.Incumbent `json:"incumbents" yaml:"incumbents"`
}

// LoadFile reads a YAML or JSON snapshot; the extension picks the decoder.
func LoadFile(path string) ([]model.Incumbent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read incumbents: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(b)
	default:
		return DecodeYAML(b)
	}
}

func DecodeYAML(b []byte) ([]model.Incumbent, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode incumbents yaml: %w", err)
	}
	return f.Incumbents, nil
}

func DecodeJSON(b []byte) ([]model.Incumbent, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode incumbents json: %w", err)
	}
	return f.Incumbents, nil
}
