package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// LiveRouter upgrades map clients onto the broadcast hub. Membership ends
// when the read loop exits - the hub itself never retries a subscriber.
func LiveRouter(router fiber.Router, deps *Dependencies) {
	router.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		return fiber.ErrUpgradeRequired
	})

	router.Get("/", websocket.New(func(conn *websocket.Conn) {
		deps.Hub.Register(conn)
		defer deps.Hub.Unregister(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
