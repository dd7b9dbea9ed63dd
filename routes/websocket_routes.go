package routes

import (
	"github.com/anjiri1684/creator_market/middleware"
	"github.com/anjiri1684/creator_market/websocket"
	contrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func WebsocketRoutes(app *fiber.App, hub *websocket.Hub, secret string) {
	ws := app.Group("/ws", middleware.ProtectedWS(secret), middleware.SellerRequired())

	ws.Use(func(c *fiber.Ctx) error {
		if !contrib.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		sellerID, err := middleware.UserID(c)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(websocket.LocalSellerID, sellerID)
		return c.Next()
	})
	ws.Get("/account", hub.Handler())
}
