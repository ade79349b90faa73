package stream

import "encoding/json"

type EventType string

const (
	EventFloatingText EventType = "floating_text"
	EventAdvisory     EventType = "advisory"
	EventSnapshot     EventType = "snapshot"
	EventMission      EventType = "mission"
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// FloatingText is a transient label drawn at a screen coordinate.
type FloatingText struct {
	Text        string  `json:"text"`
	ScreenX     float64 `json:"screen_x"`
	ScreenY     float64 `json:"screen_y"`
	ExpiresInMs int64   `json:"expires_in_ms"`
}

type Advisory struct {
	Message string `json:"message"`
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
