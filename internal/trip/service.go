package trip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/events"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/filter"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/scoring"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/segment"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

type TelemetryProvider interface {
	GetTripTelemetry(ctx context.Context, authToken, vehicleID string, start, end time.Time) ([]model.LocationSample, error)
}

type TripLister interface {
	ListTrips(ctx context.Context, authToken, vehicleID string) ([]model.TripDescriptor, error)
}

type Store interface {
	FindTrip(ctx context.Context, id string) (model.Trip, error)
	SaveTrip(ctx context.Context, trip model.Trip) (model.Trip, error)
	FindVehicle(ctx context.Context, id string) (model.Vehicle, error)
}

// Vehicles maintains the per-vehicle aggregate.
type Vehicles interface {
	InitVehicleStats(ctx context.Context, vehicleID string) error
	RecomputeVehicleStats(ctx context.Context, vehicleID string) (model.Vehicle, error)
}

type Deps struct {
	Store     Store
	Telemetry TelemetryProvider
	Trips     TripLister
	Routes    segment.RouteProvider
	Vehicles  Vehicles
	Publisher events.Publisher
	Log       logrus.FieldLogger

	Segment     segment.Config
	Weights     scoring.TripWeights
	Concurrency int
}

// Service runs the trip pipeline: telemetry, smoothing, segmentation,
// scoring, persistence and the vehicle recompute.
type Service struct {
	store       Store
	telemetry   TelemetryProvider
	trips       TripLister
	routes      segment.RouteProvider
	vehicles    Vehicles
	publisher   events.Publisher
	log         logrus.FieldLogger
	segment     segment.Config
	weights     scoring.TripWeights
	concurrency int
}

func NewService(d Deps) *Service {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	return &Service{
		store:       d.Store,
		telemetry:   d.Telemetry,
		trips:       d.Trips,
		routes:      d.Routes,
		vehicles:    d.Vehicles,
		publisher:   d.Publisher,
		log:         d.Log,
		segment:     d.Segment,
		weights:     d.Weights,
		concurrency: d.Concurrency,
	}
}

// ProcessTrip runs one trip through the pipeline and recomputes the vehicle
// aggregate when the trip is kept. Discards are reported in the Outcome with
// a nil error.
func (s *Service) ProcessTrip(ctx context.Context, authToken, vehicleID string, desc Descriptor) (Outcome, error) {
	if _, err := s.store.FindVehicle(ctx, vehicleID); err != nil {
		return Outcome{}, err
	}

	out, err := s.process(ctx, authToken, vehicleID, desc)
	if err != nil || out.Discarded {
		return out, err
	}

	if _, err := s.vehicles.RecomputeVehicleStats(ctx, vehicleID); err != nil {
		return out, fmt.Errorf("recompute vehicle %s: %w", vehicleID, err)
	}
	return out, nil
}

// ProcessVehicle resets the vehicle, processes every trip the trips API lists
// for it and recomputes the aggregate once. Trips run concurrently, bounded
// by the configured limit; the first failure cancels the rest. The aggregate
// is recomputed even when the batch fails part way.
func (s *Service) ProcessVehicle(ctx context.Context, authToken, vehicleID string) ([]model.Trip, error) {
	descs, err := s.trips.ListTrips(ctx, authToken, vehicleID)
	if err != nil {
		return nil, &CollaboratorError{Source: "trips", Err: err}
	}
	if err := s.vehicles.InitVehicleStats(ctx, vehicleID); err != nil {
		return nil, fmt.Errorf("init vehicle %s: %w", vehicleID, err)
	}

	outcomes := make([]Outcome, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			out, err := s.process(gctx, authToken, vehicleID, desc)
			if err != nil {
				return fmt.Errorf("trip %s: %w", desc.ID, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	batchErr := g.Wait()

	// Trips saved before a failure are already in the store, so the aggregate
	// is rebuilt either way.
	if _, err := s.vehicles.RecomputeVehicleStats(ctx, vehicleID); err != nil {
		return nil, errors.Join(batchErr, fmt.Errorf("recompute vehicle %s: %w", vehicleID, err))
	}
	if batchErr != nil {
		return nil, batchErr
	}

	trips := make([]model.Trip, 0, len(outcomes))
	for _, out := range outcomes {
		if out.Trip != nil {
			trips = append(trips, *out.Trip)
		}
	}
	return trips, nil
}

func (s *Service) GetTrip(ctx context.Context, id string) (model.Trip, error) {
	return s.store.FindTrip(ctx, id)
}

func (s *Service) process(ctx context.Context, authToken, vehicleID string, desc Descriptor) (Outcome, error) {
	log := s.log.WithFields(logrus.Fields{"vehicle_id": vehicleID, "trip_id": desc.ID})

	locations, err := s.telemetry.GetTripTelemetry(ctx, authToken, vehicleID, desc.Start, desc.End)
	if err != nil {
		return Outcome{}, &CollaboratorError{Source: "telemetry", Err: err}
	}
	if len(locations) == 0 {
		return s.discard(ctx, log, vehicleID, desc, DiscardEmptyTelemetry), nil
	}

	smoothed := filter.Smooth(locations)
	res, err := segment.New(s.segment, s.routes).Run(ctx, smoothed)
	if err != nil {
		return Outcome{}, &CollaboratorError{Source: "routing", Err: err}
	}
	if scoring.DistanceKm(res.Routes) < scoring.MinTripDistanceKm {
		return s.discard(ctx, log, vehicleID, desc, DiscardBelowMinimumDistance), nil
	}

	metrics, err := scoring.Compute(res.Speeds, res.Routes, s.weights)
	if errors.Is(err, scoring.ErrNoSpeedSamples) {
		return s.discard(ctx, log, vehicleID, desc, DiscardBelowMinimumDistance), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	id := desc.ID
	if id == "" {
		id = uuid.NewString()
	}
	trip, err := s.store.SaveTrip(ctx, model.Trip{
		ID:        id,
		VehicleID: vehicleID,
		StartTime: desc.Start,
		EndTime:   desc.End,
		Locations: smoothed,
		Speeds:    res.Speeds,
		Metrics:   metrics,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("save trip %s: %w", id, err)
	}

	log.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"distance_km": metrics.DistanceKm,
		"overall":     metrics.Score.Overall,
	}).Info("trip processed")
	if err := s.publisher.Publish(ctx, events.New(events.TypeTripProcessed, vehicleID, map[string]any{
		"trip_id": trip.ID,
		"metrics": trip.Metrics,
	})); err != nil {
		log.WithError(err).Warn("publish trip processed")
	}
	return Outcome{Trip: &trip}, nil
}

func (s *Service) discard(ctx context.Context, log logrus.FieldLogger, vehicleID string, desc Descriptor, reason DiscardReason) Outcome {
	log.WithField("reason", reason).Info("trip discarded")
	payload := map[string]string{"trip_id": desc.ID, "reason": string(reason)}
	if err := s.publisher.Publish(ctx, events.New(events.TypeTripDiscarded, vehicleID, payload)); err != nil {
		log.WithError(err).Warn("publish trip discarded")
	}
	return discarded(reason)
}
