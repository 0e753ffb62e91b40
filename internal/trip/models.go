package trip

import (
	"fmt"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

type Descriptor = model.TripDescriptor

type DiscardReason string

const (
	DiscardEmptyTelemetry       DiscardReason = "empty_telemetry"
	DiscardBelowMinimumDistance DiscardReason = "below_minimum_distance"
)

// Outcome is the result of processing one trip: either the persisted trip or
// the reason it was discarded.
type Outcome struct {
	Trip      *model.Trip   `json:"trip,omitempty"`
	Discarded bool          `json:"discarded"`
	Reason    DiscardReason `json:"reason,omitempty"`
}

func discarded(reason DiscardReason) Outcome {
	return Outcome{Discarded: true, Reason: reason}
}

// CollaboratorError reports a failed telemetry or routing call. The trip is
// abandoned and nothing is stored.
type CollaboratorError struct {
	Source string
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

type processRequest struct {
	VehicleID string     `json:"vehicle_id"`
	Token     string     `json:"token"`
	Trip      Descriptor `json:"trip"`
}
