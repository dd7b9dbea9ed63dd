package handlers

import (
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type checkoutRequest struct {
	ProductID    string `json:"product_id" validate:"required,uuid"`
	PromoterCode string `json:"promoter_code" validate:"omitempty,alphanum,max=10"`
}

func (h *Handler) CreateCheckout(c *fiber.Ctx) error {
	buyerID, err := middleware.UserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "unauthorized", err.Error())
	}

	var req checkoutRequest
	if err := h.parse(c, &req); err != nil {
		return invalidRequest(c, err)
	}

	res, err := h.checkout.CreateCheckout(c.UserContext(), buyerID, uuid.MustParse(req.ProductID), req.PromoterCode)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}
