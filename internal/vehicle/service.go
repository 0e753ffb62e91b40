package vehicle

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/events"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

type Store interface {
	FindVehicle(ctx context.Context, id string) (model.Vehicle, error)
	SaveVehicle(ctx context.Context, v model.Vehicle) error
	FindTripsForVehicle(ctx context.Context, vehicleID string) ([]model.Trip, error)
	// UpdateVehicle locks the vehicle, hands its full trip set to fn and
	// stores the result, all in one transaction.
	UpdateVehicle(ctx context.Context, id string, fn func(trips []model.Trip) model.Vehicle) (model.Vehicle, error)
}

type Service struct {
	store      Store
	aggregator *Aggregator
	publisher  events.Publisher
	log        logrus.FieldLogger
}

func NewService(store Store, aggregator *Aggregator, publisher events.Publisher, log logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{store: store, aggregator: aggregator, publisher: publisher, log: log}
}

// InitVehicleStats creates the vehicle or resets an existing one to zero
// totals and unknown ratings.
func (s *Service) InitVehicleStats(ctx context.Context, vehicleID string) error {
	return s.store.SaveVehicle(ctx, model.NewVehicle(vehicleID))
}

// RecomputeVehicleStats rebuilds the aggregate from the vehicle's full trip
// set. Fails with model.ErrVehicleNotFound for unknown vehicles.
func (s *Service) RecomputeVehicleStats(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	v, err := s.store.UpdateVehicle(ctx, vehicleID, func(trips []model.Trip) model.Vehicle {
		return s.aggregator.Aggregate(vehicleID, trips)
	})
	if err != nil {
		return model.Vehicle{}, err
	}

	s.log.WithFields(logrus.Fields{
		"vehicle_id":  vehicleID,
		"total_trips": v.TotalTrips,
		"overall":     v.Score.OverallClassification,
	}).Info("vehicle stats recomputed")

	if err := s.publisher.Publish(ctx, events.New(events.TypeVehicleScored, vehicleID, v)); err != nil {
		s.log.WithError(err).WithField("vehicle_id", vehicleID).Warn("publish vehicle score")
	}
	return v, nil
}

func (s *Service) GetVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	return s.store.FindVehicle(ctx, vehicleID)
}

func (s *Service) Trips(ctx context.Context, vehicleID string) ([]model.Trip, error) {
	if _, err := s.store.FindVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	return s.store.FindTripsForVehicle(ctx, vehicleID)
}
