// Package invalidation defines incumbent update events and applies them to the
// snapshot store.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/incumbents"
)

type Op string

const (
	OpReplace Op = "replace"
	OpUpsert  Op = "upsert"
	OpDelete  Op = "delete"
)

// Event is one update from the incumbent database feed. Seq increases per
// Source; consumers drop anything at or below the last applied Seq.
type Event struct {
	Version    int               `json:"version"`
	Op         Op                `json:"op"`
	Source     string            `json:"source"`
	Seq        uint64            `json:"seq"`
	TS         time.Time         `json:"ts"`
	Incumbents []model.Incumbent `json:"incumbents,omitempty"`
	IDs        []string          `json:"ids,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch e.Op {
	case OpReplace:
	case OpUpsert:
		if len(e.Incumbents) == 0 {
			return fmt.Errorf("upsert requires incumbents")
		}
	case OpDelete:
		if len(e.IDs) == 0 {
			return fmt.Errorf("delete requires ids")
		}
		if len(e.Incumbents) > 0 {
			return fmt.Errorf("delete must not carry incumbents")
		}
		return nil
	default:
		return fmt.Errorf("op must be replace|upsert|delete")
	}
	if len(e.IDs) > 0 {
		return fmt.Errorf("%s must not carry ids", e.Op)
	}
	var errs []error
	for i, inc := range e.Incumbents {
		if inc.ID == "" {
			errs = append(errs, fmt.Errorf("incumbents[%d]: id is required", i))
		}
		if !inc.Location.Valid() {
			errs = append(errs, fmt.Errorf("incumbents[%d]: location out of range", i))
		}
	}
	return errors.Join(errs...)
}

// Target is the snapshot store as seen by event application.
type Target interface {
	Replace([]model.Incumbent) (*incumbents.Snapshot, error)
	Upsert([]model.Incumbent) (*incumbents.Snapshot, error)
	Delete([]string) *incumbents.Snapshot
}

// Apply validates e and publishes the resulting snapshot.
func (e Event) Apply(t Target) (*incumbents.Snapshot, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	switch e.Op {
	case OpReplace:
		return t.Replace(e.Incumbents)
	case OpUpsert:
		return t.Upsert(e.Incumbents)
	default:
		return t.Delete(e.IDs), nil
	}
}
