package vehicle

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

// BatchProcessor processes every trip of a vehicle.
type BatchProcessor interface {
	ProcessVehicle(ctx context.Context, authToken, vehicleID string) ([]model.Trip, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, batch BatchProcessor, authMiddleware fiber.Handler) {
	r.Post("/process", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			VehicleID string `json:"vehicle_id"`
			Token     string `json:"token"`
		}
		if err := c.BodyParser(&body); err != nil || body.VehicleID == "" || body.Token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "vehicle_id and token required")
		}
		trips, err := batch.ProcessVehicle(c.UserContext(), body.Token, body.VehicleID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(trips)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		v, err := svc.GetVehicle(c.UserContext(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(v)
	})

	r.Get("/:id/score", authMiddleware, func(c *fiber.Ctx) error {
		v, err := svc.GetVehicle(c.UserContext(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(v.Score)
	})

	r.Get("/:id/trips", authMiddleware, func(c *fiber.Ctx) error {
		trips, err := svc.Trips(c.UserContext(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(trips)
	})

	r.Post("/:id/init", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.InitVehicleStats(c.UserContext(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/recompute", authMiddleware, func(c *fiber.Ctx) error {
		v, err := svc.RecomputeVehicleStats(c.UserContext(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(v)
	})
}

func lookupError(err error) error {
	if errors.Is(err, model.ErrVehicleNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "vehicle not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
