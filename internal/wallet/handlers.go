package wallet

import (
	"backend-geomine/internal/auth"

	"github.com/gofiber/fiber/v2"
)

type purchaseRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		b, err := svc.Balance(c.Context(), auth.PlayerID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(b)
	})

	r.Get("/transactions", authMiddleware, func(c *fiber.Ctx) error {
		txs, err := svc.Transactions(c.Context(), auth.PlayerID(c), c.QueryInt("limit", 50))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if txs == nil {
			txs = []Transaction{}
		}
		return c.JSON(txs)
	})

	r.Post("/purchases", authMiddleware, func(c *fiber.Ctx) error {
		var req purchaseRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Amount <= 0 || req.Description == "" {
			return fiber.NewError(fiber.StatusBadRequest, "amount and description required")
		}
		tx, err := svc.Credit(c.Context(), auth.PlayerID(c), req.Amount, req.Description, KindPurchase)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(tx)
	})
}
