package model

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrVehicleNotFound = errors.New("vehicle not found")
)

// Rating is the ordinal driving score: Poor < Average < Good < Excellent.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingAverage   Rating = "Average"
	RatingPoor      Rating = "Poor"
	RatingUnknown   Rating = "Unknown"
)

// Points maps a rating onto the 0..3 scale used by weighted classification.
func (r Rating) Points() float64 {
	switch r {
	case RatingExcellent:
		return 3
	case RatingGood:
		return 2
	case RatingAverage:
		return 1
	default:
		return 0
	}
}

type Class string

const (
	ClassA       Class = "Class A"
	ClassB       Class = "Class B"
	ClassC       Class = "Class C"
	ClassD       Class = "Class D"
	ClassUnknown Class = "Unknown"
)

type LocationSample struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
}

// SpeedSample holds one retained segmentation window. Speeds are m/s,
// distance is metres.
type SpeedSample struct {
	Timestamp      time.Time `json:"timestamp"`
	ObservedSpeed  float64   `json:"observed_speed"`
	ReferenceSpeed float64   `json:"reference_speed"`
	TypicalSpeed   float64   `json:"typical_speed"`
	Distance       float64   `json:"distance"`
}

// RouteInfo is the routing provider's answer for one window. Per-leg values
// are nil where the provider has no data.
type RouteInfo struct {
	Distance         float64         `json:"distance"`
	Duration         float64         `json:"duration"`
	SegmentSpeeds    []*float64      `json:"segment_speeds"`
	SpeedLimits      []*float64      `json:"speed_limits"`
	SegmentDistances []float64       `json:"segment_distances"`
	Geometry         json.RawMessage `json:"geometry,omitempty"`
}

// TripDescriptor identifies one recorded trip of a vehicle at the telemetry
// source. ID may be empty.
type TripDescriptor struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type TripScore struct {
	HardBraking    Rating `json:"hard_braking"`
	SpeedAdherence Rating `json:"speed_adherence"`
	Overall        Class  `json:"overall"`
}

type TripMetrics struct {
	AverageSpeed             float64   `json:"average_speed"`
	MaxSpeed                 float64   `json:"max_speed"`
	DistanceKm               float64   `json:"distance_km"`
	HardBrakeCount           int       `json:"hard_brake_count"`
	SpeedAdherencePercentage float64   `json:"speed_adherence_percentage"`
	Score                    TripScore `json:"score"`
}

type Trip struct {
	ID        string           `json:"id"`
	VehicleID string           `json:"vehicle_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Locations []LocationSample `json:"locations"`
	Speeds    []SpeedSample    `json:"speeds"`
	Metrics   TripMetrics      `json:"metrics"`
	CreatedAt time.Time        `json:"created_at"`
}

type VehicleScore struct {
	Consistency           Rating `json:"consistency"`
	TimeOfDay             Rating `json:"time_of_day"`
	HardBraking           Rating `json:"hard_braking"`
	SpeedAdherence        Rating `json:"speed_adherence"`
	OverallClassification Class  `json:"overall_classification"`
}

type Vehicle struct {
	ID            string       `json:"id"`
	TotalTrips    int          `json:"total_trips"`
	TotalDistance float64      `json:"total_distance_km"`
	AverageSpeed  float64      `json:"average_speed"`
	Score         VehicleScore `json:"score"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewVehicle returns the record of a vehicle with no trips yet.
func NewVehicle(id string) Vehicle {
	return Vehicle{
		ID: id,
		Score: VehicleScore{
			Consistency:           RatingUnknown,
			TimeOfDay:             RatingUnknown,
			HardBraking:           RatingUnknown,
			SpeedAdherence:        RatingUnknown,
			OverallClassification: ClassUnknown,
		},
	}
}
