package routes

import (
	"github.com/anjiri1684/creator_market/handlers"
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	api.Post("/payments/webhook", h.HandlePaymentWebhook)
	api.Post("/checkout", middleware.Protected(secret), h.CreateCheckout)
}
