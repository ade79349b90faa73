package tiles

import (
	"sort"

	"backend-geomine/internal/grid"
)

const DefaultGridRange = 15

type Status string

const (
	StatusActive Status = "active"
	StatusMined  Status = "mined"
)

type Tile struct {
	ID     string `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Status Status `json:"status"`
}

func (t Tile) Cell() grid.Cell {
	return grid.Cell{X: t.X, Y: t.Y}
}

type Options struct {
	// GridRange is the half-width of the square generated around a center.
	GridRange int
	// EvictRange drops tiles further than this many cells from the center
	// after each generation pass. Zero keeps every tile for the session.
	EvictRange int
	Exists     func(grid.Cell) bool
}

// Field is the sparse set of generated tiles for one session.
type Field struct {
	gridRange  int
	evictRange int
	exists     func(grid.Cell) bool
	mined      *MinedSet
	tiles      map[uint64]*Tile
}

func NewField(opts Options, mined *MinedSet) *Field {
	if opts.GridRange <= 0 {
		opts.GridRange = DefaultGridRange
	}
	if opts.Exists == nil {
		opts.Exists = Generator{Mode: HashLegacy, Density: DefaultDensity}.Exists
	}
	if opts.EvictRange > 0 && opts.EvictRange < opts.GridRange {
		opts.EvictRange = opts.GridRange
	}
	if mined == nil {
		mined = NewMinedSet()
	}
	return &Field{
		gridRange:  opts.GridRange,
		evictRange: opts.EvictRange,
		exists:     opts.Exists,
		mined:      mined,
		tiles:      map[uint64]*Tile{},
	}
}

// EnsureAround generates every missing tile within the grid range of the
// floored center and returns how many were added. Existing tiles are kept.
func (f *Field) EnsureAround(center grid.Position) int {
	c := center.Cell()
	added := 0
	for dx := -f.gridRange; dx <= f.gridRange; dx++ {
		for dy := -f.gridRange; dy <= f.gridRange; dy++ {
			cell := grid.Cell{X: c.X + dx, Y: c.Y + dy}
			if _, ok := f.tiles[cell.Key()]; ok {
				continue
			}
			if !f.exists(cell) {
				continue
			}
			status := StatusActive
			if f.mined.Has(cell) {
				status = StatusMined
			}
			f.tiles[cell.Key()] = &Tile{ID: cell.ID(), X: cell.X, Y: cell.Y, Status: status}
			added++
		}
	}
	if f.evictRange > 0 {
		f.evict(c)
	}
	return added
}

func (f *Field) evict(center grid.Cell) {
	for k, t := range f.tiles {
		if abs(t.X-center.X) > f.evictRange || abs(t.Y-center.Y) > f.evictRange {
			delete(f.tiles, k)
		}
	}
}

func (f *Field) Get(c grid.Cell) (Tile, bool) {
	t, ok := f.tiles[c.Key()]
	if !ok {
		return Tile{}, false
	}
	return *t, true
}

// MarkMined flips an active tile to mined and records it in the mined set.
// It reports false when the tile is unknown or already mined.
func (f *Field) MarkMined(c grid.Cell) bool {
	t, ok := f.tiles[c.Key()]
	if !ok || t.Status != StatusActive {
		return false
	}
	t.Status = StatusMined
	f.mined.Add(c)
	return true
}

// Active returns the active tiles within radius of pos, nearest first.
func (f *Field) Active(pos grid.Position, radius float64) []Tile {
	var out []Tile
	for _, t := range f.tiles {
		if t.Status != StatusActive {
			continue
		}
		if pos.DistanceTo(t.Cell()) <= radius {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := pos.DistanceTo(out[i].Cell()), pos.DistanceTo(out[j].Cell())
		if di != dj {
			return di < dj
		}
		return less(out[i], out[j])
	})
	return out
}

// Tiles returns a copy of every tile within span cells of center, ordered by row.
func (f *Field) Tiles(center grid.Cell, span int) []Tile {
	out := make([]Tile, 0, len(f.tiles))
	for _, t := range f.tiles {
		if span > 0 && (abs(t.X-center.X) > span || abs(t.Y-center.Y) > span) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (f *Field) Len() int {
	return len(f.tiles)
}

func (f *Field) Mined() *MinedSet {
	return f.mined
}

func less(a, b Tile) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
