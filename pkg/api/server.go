package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetmap/fleetmap/pkg/api/routes"
	"github.com/fleetmap/fleetmap/pkg/database"
	"github.com/fleetmap/fleetmap/pkg/redis_client"
)

func SetupServer(listen string, deps *routes.Dependencies) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	webApp.Get("/health", healthCheck)
	webApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.VehiclesRouter(group.Group("/vehicles"), deps)
	routes.PollLogRouter(group.Group("/poll-log"), deps)
	routes.WebhookRouter(group.Group("/webhook"), deps)

	routes.LiveRouter(webApp.Group("/live"), deps)

	return webApp.Listen(listen)
}

func healthCheck(c *fiber.Ctx) error {
	if redis_client.Client != nil {
		if err := redis_client.Client.Ping(context.Background()).Err(); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	if database.MongoGlobalInstance != nil {
		if err := database.MongoGlobalInstance.Client.Ping(context.Background(), nil); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.SendString("OK")
}
