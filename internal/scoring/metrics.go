package scoring

import (
	"errors"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

const (
	// HardBrakeThreshold is the deceleration in m/s² above which a drop
	// between two consecutive samples counts as a hard brake.
	HardBrakeThreshold = 7.0

	// MinTripDistanceKm is the shortest trip that is kept; anything shorter
	// is parking or GPS drift.
	MinTripDistanceKm = 1.0
)

var ErrNoSpeedSamples = errors.New("no speed samples")

// DistanceKm sums the routed distance of every window.
func DistanceKm(routes []model.RouteInfo) float64 {
	var m float64
	for _, r := range routes {
		m += r.Distance
	}
	return m / 1000
}

// Compute reduces a trip's speed samples into metrics and a score.
func Compute(speeds []model.SpeedSample, routes []model.RouteInfo, w TripWeights) (model.TripMetrics, error) {
	if len(speeds) == 0 {
		return model.TripMetrics{}, ErrNoSpeedSamples
	}

	var sum, peak float64
	var speeding int
	for i, s := range speeds {
		sum += s.ObservedSpeed
		if i == 0 || s.ObservedSpeed > peak {
			peak = s.ObservedSpeed
		}
		if s.ObservedSpeed > s.ReferenceSpeed {
			speeding++
		}
	}

	m := model.TripMetrics{
		AverageSpeed:             sum / float64(len(speeds)),
		MaxSpeed:                 peak,
		DistanceKm:               DistanceKm(routes),
		HardBrakeCount:           CountHardBrakes(speeds),
		SpeedAdherencePercentage: 100 * float64(speeding) / float64(len(speeds)),
	}
	m.Score = Score(m.HardBrakeCount, m.SpeedAdherencePercentage, m.DistanceKm, w)
	return m, nil
}

// CountHardBrakes counts consecutive pairs whose deceleration exceeds
// HardBrakeThreshold. Pairs without elapsed time are ignored.
func CountHardBrakes(speeds []model.SpeedSample) int {
	n := 0
	for k := 1; k < len(speeds); k++ {
		dt := speeds[k].Timestamp.Sub(speeds[k-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		if (speeds[k-1].ObservedSpeed-speeds[k].ObservedSpeed)/dt > HardBrakeThreshold {
			n++
		}
	}
	return n
}
