package scoring

import (
	"math"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

// TripWeights weighs the trip ratings in the overall class. The divisor is
// the weight sum.
type TripWeights struct {
	HardBraking    float64
	SpeedAdherence float64
}

var DefaultTripWeights = TripWeights{HardBraking: 1, SpeedAdherence: 2}

// Weighted is one rating's contribution to a weighted class.
type Weighted struct {
	Rating model.Rating
	Weight float64
}

// HardBrakingRating rates hard brakes per 100 km.
func HardBrakingRating(count int, distanceKm float64) model.Rating {
	rate := hardBrakeRate(count, distanceKm)
	switch {
	case rate <= 1:
		return model.RatingExcellent
	case rate <= 3:
		return model.RatingGood
	case rate <= 5:
		return model.RatingAverage
	default:
		return model.RatingPoor
	}
}

func hardBrakeRate(count int, distanceKm float64) float64 {
	if count == 0 {
		return 0
	}
	if distanceKm <= 0 {
		return math.Inf(1)
	}
	return float64(count) / (distanceKm / 100)
}

// SpeedAdherenceRating rates the percentage of samples above the reference speed.
func SpeedAdherenceRating(percentage float64) model.Rating {
	switch {
	case percentage <= 5:
		return model.RatingExcellent
	case percentage <= 15:
		return model.RatingGood
	case percentage <= 30:
		return model.RatingAverage
	default:
		return model.RatingPoor
	}
}

func Classify(score float64) model.Class {
	switch {
	case score >= 2.5:
		return model.ClassA
	case score >= 2:
		return model.ClassB
	case score >= 1.5:
		return model.ClassC
	default:
		return model.ClassD
	}
}

// WeightedClass classifies the weighted mean of the given ratings.
func WeightedClass(parts ...Weighted) model.Class {
	var sum, total float64
	for _, p := range parts {
		sum += p.Rating.Points() * p.Weight
		total += p.Weight
	}
	if total == 0 {
		return model.ClassUnknown
	}
	return Classify(sum / total)
}

func Score(hardBrakeCount int, adherencePercentage, distanceKm float64, w TripWeights) model.TripScore {
	hb := HardBrakingRating(hardBrakeCount, distanceKm)
	sa := SpeedAdherenceRating(adherencePercentage)
	return model.TripScore{
		HardBraking:    hb,
		SpeedAdherence: sa,
		Overall: WeightedClass(
			Weighted{Rating: hb, Weight: w.HardBraking},
			Weighted{Rating: sa, Weight: w.SpeedAdherence},
		),
	}
}
