package mining

import (
	"math/rand"
	"sync"
	"time"

	"backend-geomine/internal/grid"
	"backend-geomine/internal/tiles"
)

const (
	DefaultRadius = 1.5
	MinReward     = 1
	MaxReward     = 5
)

// Strike is one tile mined during a scan.
type Strike struct {
	Tile   tiles.Tile `json:"tile"`
	Points int        `json:"points"`
}

type Miner struct {
	Radius float64
	// MaxPerTick caps strikes per scan, nearest first. Zero means no cap.
	MaxPerTick int
	// Reward draws the points for one tile.
	Reward func() int
}

func NewMiner(radius float64, maxPerTick int) *Miner {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Miner{Radius: radius, MaxPerTick: maxPerTick, Reward: RandomReward(time.Now().UnixNano())}
}

// RandomReward returns a generator of rewards in [MinReward, MaxReward].
func RandomReward(seed int64) func() int {
	var mu sync.Mutex
	r := rand.New(rand.NewSource(seed))
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return MinReward + r.Intn(MaxReward-MinReward+1)
	}
}

// Scan mines every active tile within the radius of pos.
func (m *Miner) Scan(field *tiles.Field, pos grid.Position) []Strike {
	var strikes []Strike
	for _, t := range field.Active(pos, m.Radius) {
		if m.MaxPerTick > 0 && len(strikes) >= m.MaxPerTick {
			break
		}
		if !field.MarkMined(t.Cell()) {
			continue
		}
		t.Status = tiles.StatusMined
		strikes = append(strikes, Strike{Tile: t, Points: m.Reward()})
	}
	return strikes
}
