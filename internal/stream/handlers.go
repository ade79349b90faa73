package stream

import (
	"context"
	"encoding/json"
	"log"

	"backend-geomine/internal/position"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IngestFunc receives position samples sent by a websocket client.
type IngestFunc func(ctx context.Context, sessionID string, s position.Sample) error

// AuthorizeFunc decides, before the upgrade, whether the request may
// attach to a session. Its error is returned to the client as is.
type AuthorizeFunc func(c *fiber.Ctx, sessionID string) error

func RegisterRoutes(r fiber.Router, hub *Hub, ingest IngestFunc, authorize AuthorizeFunc) {
	r.Get("/ws/:sessionID", func(c *fiber.Ctx) error {
		if authorize != nil {
			if err := authorize(c, c.Params("sessionID")); err != nil {
				return err
			}
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				break
			}
			if ingest == nil {
				continue
			}
			var sample position.Sample
			if err := json.Unmarshal(data, &sample); err != nil {
				reply(client, Event{Type: EventAdvisory, Data: Advisory{Message: "invalid sample"}})
				continue
			}
			if err := ingest(context.Background(), sessionID, sample); err != nil {
				log.Printf("ingest sample for session %s: %v", sessionID, err)
				reply(client, Event{Type: EventAdvisory, Data: Advisory{Message: err.Error()}})
			}
		}
		hub.Unregister(client)
		<-done
	}))
}

// reply sends an event to a single client without going through the hub.
// Only called from the read loop, before the client is unregistered.
func reply(client *Client, ev Event) {
	payload, err := encode(ev)
	if err != nil {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}
