package handlers

import (
	"errors"

	"github.com/anjiri1684/creator_market/services"
	"github.com/gofiber/fiber/v2"
)

const SignatureHeader = "Stripe-Signature"

// HandlePaymentWebhook acknowledges processor notifications. Anything the
// processor could fix by redelivering gets a non-2xx answer; everything
// else is acknowledged so it is not redelivered forever.
func (h *Handler) HandlePaymentWebhook(c *fiber.Ctx) error {
	err := h.reconciler.HandleNotification(c.UserContext(), c.Body(), c.Get(SignatureHeader))
	switch {
	case err == nil,
		errors.Is(err, services.ErrMalformedNotification),
		errors.Is(err, services.ErrInvalidState):
		return c.SendStatus(fiber.StatusOK)
	case errors.Is(err, services.ErrInvalidSignature):
		return fail(c, fiber.StatusBadRequest, "invalid_signature", "invalid signature")
	default:
		return fail(c, fiber.StatusInternalServerError, "retry", "notification not processed")
	}
}
