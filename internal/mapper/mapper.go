// Package mapper turns an AP location region into the points the engine evaluates.
package mapper

import (
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/model"
)

type Interface interface {
	EvaluationPoints(r model.Region) ([]model.LatLon, error)
}
