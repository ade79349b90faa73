package session

import (
	"errors"
	"time"

	"backend-geomine/internal/config"
	"backend-geomine/internal/grid"
	"backend-geomine/internal/mining"
	"backend-geomine/internal/position"
	"backend-geomine/internal/tiles"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateTracking      State = "tracking"
	StateStopped       State = "stopped"
)

var (
	ErrStopped           = errors.New("session stopped")
	ErrCapabilityMissing = errors.New("geolocation capability missing")
	ErrNotFound          = errors.New("session not found")
	ErrRateLimited       = errors.New("too many samples")
	ErrNoFix             = errors.New("no accepted position yet")
)

const DefaultFloatingTextTTL = 1500 * time.Millisecond

// Settings holds the tunables shared by every session.
type Settings struct {
	MaxAccuracyM  float64
	MaxSpeedMps   float64
	MetersPerTile float64

	GridRange  int
	EvictRange int
	HashMode   tiles.HashMode
	Density    float64

	MiningRadius float64
	MaxPerTick   int

	ViewportWidth   float64
	ViewportHeight  float64
	FloatingTextTTL time.Duration

	// SampleRate limits samples per second per session. Zero disables it.
	SampleRate  float64
	SampleBurst int

	MinedTilesKey string
}

func DefaultSettings() Settings {
	return Settings{
		MaxAccuracyM:    position.DefaultMaxAccuracyM,
		MaxSpeedMps:     position.DefaultMaxSpeedMps,
		MetersPerTile:   grid.DefaultMetersPerTile,
		GridRange:       tiles.DefaultGridRange,
		HashMode:        tiles.HashLegacy,
		Density:         tiles.DefaultDensity,
		MiningRadius:    mining.DefaultRadius,
		ViewportWidth:   390,
		ViewportHeight:  844,
		FloatingTextTTL: DefaultFloatingTextTTL,
		SampleRate:      5,
		SampleBurst:     10,
		MinedTilesKey:   tiles.DefaultMinedTilesKey,
	}
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID         string        `json:"id,omitempty"`
	State      State         `json:"state"`
	Origin     *Coordinate   `json:"origin,omitempty"`
	Coords     *Coordinate   `json:"coords,omitempty"`
	Position   grid.Position `json:"grid_position"`
	Cell       grid.Cell     `json:"cell"`
	Advisory   string        `json:"advisory,omitempty"`
	TileCount  int           `json:"tile_count"`
	MinedCount int           `json:"mined_count"`
}

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SettingsFrom derives session settings from the process configuration.
func SettingsFrom(cfg config.Config) (Settings, error) {
	mode, err := tiles.ParseHashMode(cfg.TileHashMode)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		MaxAccuracyM:    cfg.MaxAccuracyM,
		MaxSpeedMps:     cfg.MaxSpeedMps,
		MetersPerTile:   cfg.MetersPerTile,
		GridRange:       cfg.TileGridRange,
		EvictRange:      cfg.TileEvictRange,
		HashMode:        mode,
		Density:         cfg.TileDensity,
		MiningRadius:    cfg.MiningRadius,
		MaxPerTick:      cfg.MiningMaxPerTick,
		ViewportWidth:   cfg.ViewportWidth,
		ViewportHeight:  cfg.ViewportHeight,
		FloatingTextTTL: DefaultFloatingTextTTL,
		SampleRate:      cfg.SampleRatePerSec,
		SampleBurst:     cfg.SampleBurst,
		MinedTilesKey:   cfg.MinedTilesKey,
	}, nil
}
