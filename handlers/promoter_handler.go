package handlers

import (
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) RegisterPromoter(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
	}
	promoter, err := h.promoters.RegisterPromoter(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(promoter)
}
