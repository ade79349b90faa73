package tiles

import (
	"fmt"

	"backend-geomine/internal/grid"
)

type HashMode string

const (
	// HashLegacy keeps the web client arithmetic: the products wrap to
	// 32 bits and a negative remainder always counts as present, so the real
	// fill rate is well above the nominal density. Worlds and stored tile ids
	// from earlier clients stay valid.
	HashLegacy HashMode = "legacy"
	// HashUniform folds the remainder into [0, 1000) and matches the nominal density.
	HashUniform HashMode = "uniform"
)

const (
	DefaultDensity = 0.15

	primeX = 73856093
	primeY = 19349663
)

func ParseHashMode(s string) (HashMode, error) {
	switch HashMode(s) {
	case "", HashLegacy:
		return HashLegacy, nil
	case HashUniform:
		return HashUniform, nil
	}
	return "", fmt.Errorf("unknown tile hash mode %q", s)
}

// Seed is the deterministic per-cell hash.
func Seed(c grid.Cell) int32 {
	return int32(int64(c.X)*primeX) ^ int32(int64(c.Y)*primeY)
}

// Generator decides tile existence. It is a pure function of the cell.
type Generator struct {
	Mode    HashMode
	Density float64
}

func (g Generator) Exists(c grid.Cell) bool {
	density := g.Density
	if density <= 0 {
		density = DefaultDensity
	}
	r := Seed(c) % 1000
	if g.Mode == HashUniform && r < 0 {
		r += 1000
	}
	return float64(r)/1000 < density
}
