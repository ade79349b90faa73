package mission

import "time"

type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Kind string

const (
	KindStandard    Kind = "standard"
	KindDestination Kind = "destination"
)

type DestinationDetails struct {
	StartLat          float64 `json:"start_lat"`
	StartLon          float64 `json:"start_lon"`
	TargetDistanceM   float64 `json:"target_distance_m"`
	DistanceTraveledM float64 `json:"distance_traveled_m"`
}

type Mission struct {
	ID            string              `json:"id"`
	PlayerID      string              `json:"player_id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Points        int                 `json:"points"`
	Status        Status              `json:"status"`
	Type          Kind                `json:"type"`
	IsAIGenerated bool                `json:"is_ai_generated"`
	Destination   *DestinationDetails `json:"destination_details,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Preset is one of the destination distances a player can pick.
type Preset struct {
	Label  string `json:"label"`
	Meters int    `json:"meters"`
	Points int    `json:"points"`
}

var Presets = []Preset{
	{Label: "Short Walk", Meters: 200, Points: 15},
	{Label: "Medium Jaunt", Meters: 500, Points: 40},
	{Label: "Long Trek", Meters: 1000, Points: 100},
}

func PresetFor(meters int) (Preset, bool) {
	for _, p := range Presets {
		if p.Meters == meters {
			return p, true
		}
	}
	return Preset{}, false
}
