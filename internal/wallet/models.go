package wallet

import "time"

// StartingBalance is what a fresh wallet holds before any activity.
const StartingBalance = 2150.75

type Kind string

const (
	KindGeomine       Kind = "Geomine"
	KindMissionReward Kind = "Mission Reward"
	KindPurchase      Kind = "Purchase"
)

type Transaction struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"player_id"`
	Kind        Kind      `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Balance struct {
	PlayerID string  `json:"player_id"`
	Balance  float64 `json:"balance"`
}
