package grid

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrBadCellID = errors.New("malformed cell id")

// Cell is an integer tile coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key packs the cell into a single map key.
func (c Cell) Key() uint64 {
	return uint64(uint32(int32(c.X)))<<32 | uint64(uint32(int32(c.Y)))
}

func CellFromKey(k uint64) Cell {
	return Cell{X: int(int32(uint32(k >> 32))), Y: int(int32(uint32(k)))}
}

// ID is the persisted form of a cell, "x,y".
func (c Cell) ID() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

func ParseCell(id string) (Cell, error) {
	xs, ys, ok := strings.Cut(id, ",")
	if !ok {
		return Cell{}, ErrBadCellID
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Cell{}, ErrBadCellID
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Cell{}, ErrBadCellID
	}
	return Cell{X: x, Y: y}, nil
}

// Position is a continuous location in tile units relative to the session origin.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Position) Cell() Cell {
	return Cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
}

// DistanceTo is the euclidean distance in tile units from p to the cell.
func (p Position) DistanceTo(c Cell) float64 {
	dx := float64(c.X) - p.X
	dy := float64(c.Y) - p.Y
	return math.Sqrt(dx*dx + dy*dy)
}
