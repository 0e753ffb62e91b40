package trip

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/process", authMiddleware, func(c *fiber.Ctx) error {
		var req processRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if req.VehicleID == "" || req.Token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "vehicle_id and token required")
		}
		if req.Trip.Start.IsZero() || req.Trip.End.Before(req.Trip.Start) {
			return fiber.NewError(fiber.StatusBadRequest, "trip start and end required")
		}

		out, err := svc.ProcessTrip(c.UserContext(), req.Token, req.VehicleID, req.Trip)
		if err != nil {
			return processError(err)
		}
		return c.JSON(out)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		trip, err := svc.GetTrip(c.UserContext(), c.Params("id"))
		if errors.Is(err, model.ErrTripNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "trip not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trip)
	})
}

func processError(err error) error {
	var collab *CollaboratorError
	switch {
	case errors.Is(err, model.ErrVehicleNotFound):
		return fiber.NewError(fiber.StatusNotFound, "vehicle not found")
	case errors.As(err, &collab):
		return fiber.NewError(fiber.StatusBadGateway, collab.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
