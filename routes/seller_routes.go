package routes

import (
	"github.com/anjiri1684/creator_market/handlers"
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/gofiber/fiber/v2"
)

func SellerRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	seller := api.Group("/seller", middleware.Protected(secret), middleware.SellerRequired())
	seller.Post("/payouts", h.RequestPayout)
	seller.Get("/payouts", h.ListMyPayouts)
	seller.Post("/payouts/:payoutId/cancel", h.CancelPayout)

	api.Post("/promoters", middleware.Protected(secret), h.RegisterPromoter)
}
