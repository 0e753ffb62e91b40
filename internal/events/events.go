package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	TypeTripProcessed = "trip.processed"
	TypeTripDiscarded = "trip.discarded"
	TypeVehicleScored = "vehicle.scored"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	VehicleID  string    `json:"vehicle_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

func New(eventType, vehicleID string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		VehicleID:  vehicleID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
