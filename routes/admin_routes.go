package routes

import (
	"github.com/anjiri1684/creator_market/handlers"
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(secret), middleware.AdminRequired())
	admin.Get("/payouts", h.ListPayouts)
	admin.Post("/payouts/:payoutId/disburse", h.DisbursePayout)
	admin.Post("/payouts/:payoutId/outcome", h.RecordPayoutOutcome)
}
