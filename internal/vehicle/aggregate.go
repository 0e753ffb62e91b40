package vehicle

import (
	"time"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/scoring"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

// Weights weighs the four vehicle ratings in the overall classification.
// The divisor is the weight sum.
type Weights struct {
	Consistency    float64
	TimeOfDay      float64
	HardBraking    float64
	SpeedAdherence float64
}

var DefaultWeights = Weights{Consistency: 1, TimeOfDay: 1, HardBraking: 1, SpeedAdherence: 2}

// Aggregator folds a vehicle's complete trip history into its record. It is
// a pure function of the trip set, so recomputing never drifts.
type Aggregator struct {
	loc     *time.Location
	weights Weights
}

func NewAggregator(loc *time.Location, weights Weights) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc, weights: weights}
}

func (a *Aggregator) Aggregate(vehicleID string, trips []model.Trip) model.Vehicle {
	v := model.NewVehicle(vehicleID)
	if len(trips) == 0 {
		return v
	}

	var distance, speed, adherence float64
	var brakes, commute, night int
	for _, t := range trips {
		distance += t.Metrics.DistanceKm
		speed += t.Metrics.AverageSpeed
		adherence += t.Metrics.SpeedAdherencePercentage
		brakes += t.Metrics.HardBrakeCount

		hour := t.StartTime.In(a.loc).Hour()
		if isCommuteHour(hour) {
			commute++
		}
		if isNightHour(hour) {
			night++
		}
	}

	n := float64(len(trips))
	v.TotalTrips = len(trips)
	v.TotalDistance = distance
	v.AverageSpeed = speed / n

	v.Score.Consistency = ConsistencyRating(100 * float64(commute) / n)
	v.Score.TimeOfDay = TimeOfDayRating(100 * float64(night) / n)
	v.Score.HardBraking = scoring.HardBrakingRating(brakes, distance)
	v.Score.SpeedAdherence = scoring.SpeedAdherenceRating(adherence / n)
	v.Score.OverallClassification = scoring.WeightedClass(
		scoring.Weighted{Rating: v.Score.Consistency, Weight: a.weights.Consistency},
		scoring.Weighted{Rating: v.Score.TimeOfDay, Weight: a.weights.TimeOfDay},
		scoring.Weighted{Rating: v.Score.HardBraking, Weight: a.weights.HardBraking},
		scoring.Weighted{Rating: v.Score.SpeedAdherence, Weight: a.weights.SpeedAdherence},
	)
	return v
}

// ConsistencyRating rates the share of trips started in commute hours.
func ConsistencyRating(percentage float64) model.Rating {
	switch {
	case percentage > 90:
		return model.RatingExcellent
	case percentage > 80:
		return model.RatingGood
	case percentage > 70:
		return model.RatingAverage
	default:
		return model.RatingPoor
	}
}

// TimeOfDayRating rates the share of trips started at night.
func TimeOfDayRating(percentage float64) model.Rating {
	switch {
	case percentage <= 5:
		return model.RatingExcellent
	case percentage <= 10:
		return model.RatingGood
	case percentage <= 20:
		return model.RatingAverage
	default:
		return model.RatingPoor
	}
}

func isCommuteHour(h int) bool {
	return (h >= 7 && h <= 9) || (h >= 16 && h <= 18)
}

func isNightHour(h int) bool {
	return h >= 23 || h < 4
}
