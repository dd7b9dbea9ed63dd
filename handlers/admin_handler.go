package handlers

import (
	"github.com/anjiri1684/creator_market/models"
	"github.com/anjiri1684/creator_market/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) ListPayouts(c *fiber.Ctx) error {
	payouts, err := h.payouts.ListPayoutsByStatus(c.UserContext(), c.Query("status", models.PayoutPending))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(payouts)
}

func (h *Handler) DisbursePayout(c *fiber.Ctx) error {
	payoutID, err := uuid.Parse(c.Params("payoutId"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid payout id")
	}
	payout, err := h.payouts.InitiateDisbursement(c.UserContext(), payoutID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(payout)
}

// RecordPayoutOutcome is the manual path for disbursement channels that do
// not call back on their own.
func (h *Handler) RecordPayoutOutcome(c *fiber.Ctx) error {
	payoutID, err := uuid.Parse(c.Params("payoutId"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid payout id")
	}
	var outcome services.DisbursementOutcome
	if err := h.parse(c, &outcome); err != nil {
		return invalidRequest(c, err)
	}

	if err := h.payouts.HandleDisbursementCallback(c.UserContext(), payoutID, outcome); err != nil {
		return h.respondError(c, err)
	}
	payout, err := h.store.GetPayout(c.UserContext(), payoutID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(payout)
}
