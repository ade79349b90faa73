package mission

import (
	"context"
	"errors"
	"log"

	"backend-geomine/internal/auth"
	"backend-geomine/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type destinationRequest struct {
	DistanceM int     `json:"distance_m"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// ChangeFunc is told when a player's missions changed through these routes.
type ChangeFunc func(ctx context.Context, playerID string) error

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, onChange ChangeFunc) {
	changed := func(c *fiber.Ctx) {
		if onChange == nil {
			return
		}
		if err := onChange(c.Context(), auth.PlayerID(c)); err != nil {
			log.Printf("refresh missions of %s: %v", auth.PlayerID(c), err)
		}
	}

	r.Get("/presets", func(c *fiber.Ctx) error {
		return c.JSON(Presets)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		missions, err := svc.List(c.Context(), auth.PlayerID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if missions == nil {
			missions = []Mission{}
		}
		return c.JSON(missions)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Mission
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.PlayerID = auth.PlayerID(c)
		req.Type = KindStandard
		req.Destination = nil
		m, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		changed(c)
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Post("/destination", authMiddleware, func(c *fiber.Ctx) error {
		var req destinationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m, err := svc.CreateDestination(c.Context(), auth.PlayerID(c), req.DistanceM, geo.Point{Lat: req.Lat, Lon: req.Lon})
		switch {
		case errors.Is(err, ErrUnknownPreset):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrActiveDestination):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		changed(c)
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Post("/:id/submit", authMiddleware, func(c *fiber.Ctx) error {
		err := svc.Submit(c.Context(), auth.PlayerID(c), c.Params("id"))
		if errors.Is(err, ErrNotSubmittable) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		changed(c)
		return c.JSON(fiber.Map{"id": c.Params("id"), "status": StatusPending})
	})
}
