package h3mapper

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"
)

// coarsen walks cells up to parent resolutions until at most budget remain.
// A non-positive budget drops interior cells entirely.
func coarsen(cells []h3.Cell, budget int) ([]h3.Cell, error) {
	if budget <= 0 {
		return nil, nil
	}
	for len(cells) > budget {
		res := cells[0].Resolution()
		if res == 0 {
			return cells[:budget], nil
		}
		parents := make([]h3.Cell, 0, len(cells))
		for _, c := range cells {
			p, err := c.Parent(res - 1)
			if err != nil {
				return nil, fmt.Errorf("h3 parent: %w", err)
			}
			parents = append(parents, p)
		}
		cells = uniqueSorted(parents)
	}
	return cells, nil
}

func uniqueSorted(cells []h3.Cell) []h3.Cell {
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	out := cells[:0]
	for _, c := range cells {
		if n := len(out); n > 0 && out[n-1] == c {
			continue
		}
		out = append(out, c)
	}
	return out
}
