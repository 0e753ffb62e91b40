package filter

import (
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

const (
	ProcessNoise     = 3.0
	MeasurementNoise = 1.0
	TimeStep         = 1.0
)

// Kalman is a 1-D recursive estimator applied to latitude and longitude
// independently. It holds per-trip state and must not be shared between trips.
type Kalman struct {
	q, r, step float64
	estimate   geo.Point
	variance   float64
	primed     bool
}

func New() *Kalman {
	return &Kalman{q: ProcessNoise, r: MeasurementNoise, step: TimeStep}
}

// Filter feeds one raw fix and returns the corrected estimate. The first fix
// is returned unchanged.
func (k *Kalman) Filter(raw geo.Point) geo.Point {
	if !k.primed {
		k.estimate = raw
		k.variance = k.r
		k.primed = true
		return raw
	}

	predicted := k.variance + k.q*k.step
	gain := predicted / (predicted + k.r)

	k.estimate.Lat += gain * (raw.Lat - k.estimate.Lat)
	k.estimate.Lng += gain * (raw.Lng - k.estimate.Lng)
	k.variance = (1 - gain) * predicted

	return k.estimate
}

func (k *Kalman) Variance() float64 {
	return k.variance
}

// Smooth runs a fresh filter over one trip's samples. Timestamp and altitude
// pass through.
func Smooth(samples []model.LocationSample) []model.LocationSample {
	k := New()
	out := make([]model.LocationSample, len(samples))
	for i, s := range samples {
		p := k.Filter(geo.Point{Lat: s.Latitude, Lng: s.Longitude})
		out[i] = model.LocationSample{
			Timestamp: s.Timestamp,
			Latitude:  p.Lat,
			Longitude: p.Lng,
			Altitude:  s.Altitude,
		}
	}
	return out
}
