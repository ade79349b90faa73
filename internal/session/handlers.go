package session

import (
	"errors"
	"time"

	"backend-geomine/internal/auth"
	"backend-geomine/internal/mission"
	"backend-geomine/internal/position"
	"backend-geomine/internal/stream"

	"github.com/gofiber/fiber/v2"
)

type destinationRequest struct {
	DistanceM int `json:"distance_m"`
}

func RegisterRoutes(r fiber.Router, mgr *Manager, authMiddleware fiber.Handler) {
	owned := func(c *fiber.Ctx) (string, error) {
		id := c.Params("id")
		owner, err := mgr.Owner(id)
		if err != nil || owner != auth.PlayerID(c) {
			return "", fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
		}
		return id, nil
	}

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		snap, err := mgr.Start(c.Context(), auth.PlayerID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(snap)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := owned(c)
		if err != nil {
			return err
		}
		snap, err := mgr.Snapshot(id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(snap)
	})

	r.Get("/:id/tiles", authMiddleware, func(c *fiber.Ctx) error {
		id, err := owned(c)
		if err != nil {
			return err
		}
		tiles, err := mgr.Tiles(id, c.QueryInt("span", 0))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(tiles)
	})

	r.Get("/:id/missions", authMiddleware, func(c *fiber.Ctx) error {
		id, err := owned(c)
		if err != nil {
			return err
		}
		missions, err := mgr.Missions(id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if missions == nil {
			missions = []mission.Mission{}
		}
		return c.JSON(missions)
	})

	r.Post("/:id/samples", authMiddleware, func(c *fiber.Ctx) error {
		id, err := owned(c)
		if err != nil {
			return err
		}
		var sample position.Sample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now()
		}
		out, err := mgr.Push(c.Context(), id, sample)
		switch {
		case errors.Is(err, ErrRateLimited):
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		case errors.Is(err, ErrStopped), errors.Is(err, ErrCapabilityMissing):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(out)
	})

	r.Post("/:id/destination", authMiddleware, func(c *fiber.Ctx) error {
		id, err := owned(c)
		if err != nil {
			return err
		}
		var req destinationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m, err := mgr.StartDestination(c.Context(), id, req.DistanceM)
		switch {
		case errors.Is(err, mission.ErrUnknownPreset):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNoFix), errors.Is(err, mission.ErrActiveDestination):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := owned(c)
		if err != nil {
			return err
		}
		if err := mgr.Stop(id); err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// AuthorizeStream lets only the owner of a session attach to its event
// stream, which also accepts samples.
func AuthorizeStream(mgr *Manager, svc *auth.Service) stream.AuthorizeFunc {
	return func(c *fiber.Ctx, sessionID string) error {
		token := auth.TokenFromRequest(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		playerID, err := svc.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		owner, err := mgr.Owner(sessionID)
		if err != nil || owner != playerID {
			return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
		}
		return nil
	}
}
