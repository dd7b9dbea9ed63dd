package handlers

import (
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/anjiri1684/creator_market/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type payoutRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) RequestPayout(c *fiber.Ctx) error {
	sellerID, err := middleware.UserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
	}

	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_amount", "amount must be a whole number of minor units")
	}

	payout, err := h.payouts.RequestPayout(c.UserContext(), sellerID, req.Amount)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payout)
}

func (h *Handler) ListMyPayouts(c *fiber.Ctx) error {
	sellerID, err := middleware.UserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
	}
	payouts, err := h.payouts.ListPayouts(c.UserContext(), sellerID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(payouts)
}

func (h *Handler) CancelPayout(c *fiber.Ctx) error {
	sellerID, err := middleware.UserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
	}
	payoutID, err := uuid.Parse(c.Params("payoutId"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid payout id")
	}

	payout, err := h.payouts.CancelPayout(c.UserContext(), sellerID, payoutID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(payout)
}

// GetSellerAccount is public: level and balance are shown on storefronts.
func (h *Handler) GetSellerAccount(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("sellerId"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid seller id")
	}
	acc, err := services.GetAccount(c.UserContext(), h.store, sellerID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"level":               acc.Level,
		"available_balance":   acc.AvailableBalance,
		"cumulative_earnings": acc.CumulativeEarnings,
	})
}
