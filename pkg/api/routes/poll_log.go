package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetmap/fleetmap/pkg/realtime/locationtracker"
)

func PollLogRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/", listPollOutcomes(deps))
	router.Delete("/", clearPollOutcomes(deps))
	router.Post("/trigger", triggerPoll(deps))
}

func listPollOutcomes(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := strconv.Atoi(c.Query("count", "20"))
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter count should be an integer",
			})
		}

		return c.JSON(deps.Pipeline.PollLog().Recent(count))
	}
}

func clearPollOutcomes(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Pipeline.PollLog().Clear()

		return c.JSON(fiber.Map{
			"status": "cleared",
		})
	}
}

// triggerPoll runs a full cycle synchronously. The operator gets a generic
// acknowledgement; the detail lands in the poll log.
func triggerPoll(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !deps.Pipeline.Enabled() {
			c.SendStatus(fiber.StatusServiceUnavailable)
			return c.JSON(fiber.Map{
				"error": "Polling is disabled - upstream credential not configured",
			})
		}

		if err := deps.Pipeline.RunCycle(c.Context()); err != nil {
			if errors.Is(err, locationtracker.ErrCycleInProgress) {
				c.SendStatus(fiber.StatusConflict)
				return c.JSON(fiber.Map{
					"error": "A poll cycle is already running",
				})
			}

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Poll cycle failed",
			})
		}

		return c.JSON(fiber.Map{
			"status": "completed",
		})
	}
}
