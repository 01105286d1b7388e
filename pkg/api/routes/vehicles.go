package routes

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	iso8601 "github.com/senseyeio/duration"
	"golang.org/x/exp/slices"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

func VehiclesRouter(router fiber.Router, deps *Dependencies) {
	router.Get("/", listVehicles(deps))
	router.Get("/:identifier", getVehicle(deps))
	router.Get("/:identifier/history", getVehicleHistory(deps))
	router.Put("/:identifier", updateVehicle(deps))
	router.Delete("/:identifier", deleteVehicle(deps))
}

func listVehicles(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if snapshots, hit := deps.Latest.Get(c.Context()); hit {
			return c.JSON(snapshots)
		}

		readings, err := deps.LocationRepo.LatestAll()
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load latest vehicle locations",
			})
		}

		snapshots := []fleetdf.VehicleSnapshot{}
		for _, reading := range readings {
			name, color := deps.Metadata.Get(reading.VehicleID)

			snapshots = append(snapshots, fleetdf.VehicleSnapshot{
				LocationReading: *reading,
				Name:            name,
				Color:           color,
			})
		}

		slices.SortFunc(snapshots, func(a, b fleetdf.VehicleSnapshot) int {
			if a.VehicleID < b.VehicleID {
				return -1
			} else if a.VehicleID > b.VehicleID {
				return 1
			}
			return 0
		})

		deps.Latest.Set(c.Context(), snapshots)

		return c.JSON(snapshots)
	}
}

func getVehicle(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		reading, err := deps.LocationRepo.LatestForVehicle(identifier)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load vehicle location",
			})
		}

		if reading == nil && !deps.Metadata.Has(identifier) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Vehicle matching Vehicle Identifier",
			})
		}

		name, color := deps.Metadata.Get(identifier)

		return c.JSON(fiber.Map{
			"vehicle_id": identifier,
			"name":       name,
			"color":      color,
			"latest":     reading,
		})
	}
}

func getVehicleHistory(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		count, err := strconv.Atoi(c.Query("count", "500"))
		if err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Parameter count should be an integer",
			})
		}

		var since time.Time
		if durationParam := c.Query("duration"); durationParam != "" {
			window, err := iso8601.ParseISO8601(durationParam)
			if err != nil {
				c.SendStatus(fiber.StatusBadRequest)
				return c.JSON(fiber.Map{
					"error": "Parameter duration should be an ISO8601 duration",
				})
			}

			now := time.Now()
			since = now.Add(-window.Shift(now).Sub(now))
		}

		readings, err := deps.LocationRepo.History(identifier, since, int64(count))
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not load vehicle history",
			})
		}

		readingsReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic", "detailed"},
		}, readings)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sherrif could not reduce History",
			})
		}

		return c.JSON(readingsReduced)
	}
}

type updateVehicleBody struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func updateVehicle(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		var body updateVehicleBody
		if err := c.BodyParser(&body); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Body should be JSON with name and/or color",
			})
		}

		name, color := deps.Metadata.Get(identifier)
		if body.Name != "" {
			name = body.Name
		}
		if body.Color != "" {
			color = body.Color
		}

		meta := &fleetdf.VehicleMeta{
			VehicleID: identifier,
			Name:      name,
			Color:     color,
			CreatedAt: time.Now(),
		}

		if err := deps.VehicleRepo.Save(meta); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not save vehicle metadata",
			})
		}

		// Cache and storage must never diverge; cache invalidation makes
		// the edit visible to the next read regardless of TTL
		deps.Metadata.Set(meta)
		deps.Latest.Invalidate(c.Context())

		deps.Hub.Broadcast(fleetdf.VehicleUpdateEvent{
			Type: fleetdf.VehicleUpdateEventTypeMeta,
			Data: fleetdf.VehicleUpdateEventData{
				VehicleID: identifier,
				Name:      name,
				Color:     color,
			},
		})

		return c.JSON(meta)
	}
}

func deleteVehicle(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		if err := deps.VehicleRepo.Delete(identifier); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not delete vehicle",
			})
		}

		if err := deps.LocationRepo.DeleteForVehicle(identifier); err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Could not delete vehicle history",
			})
		}

		deps.Metadata.Delete(identifier)
		deps.Latest.Invalidate(c.Context())

		return c.JSON(fiber.Map{
			"deleted": identifier,
		})
	}
}
