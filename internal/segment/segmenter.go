package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

const (
	DefaultWindow      = 5 * time.Second
	DefaultMaxSpeed    = 70.0 // m/s
	DefaultMinDistance = 1.0  // m
)

type RouteProvider interface {
	GetRouteInfo(ctx context.Context, start, end geo.Point) (model.RouteInfo, error)
}

type Config struct {
	Window      time.Duration
	MaxSpeed    float64
	MinDistance float64
}

func DefaultConfig() Config {
	return Config{
		Window:      DefaultWindow,
		MaxSpeed:    DefaultMaxSpeed,
		MinDistance: DefaultMinDistance,
	}
}

type Result struct {
	Speeds []model.SpeedSample
	Routes []model.RouteInfo
}

// Segmenter turns a smoothed location stream into per-window speed samples.
type Segmenter struct {
	cfg    Config
	routes RouteProvider
}

func New(cfg Config, routes RouteProvider) *Segmenter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = DefaultMaxSpeed
	}
	return &Segmenter{cfg: cfg, routes: routes}
}

// Run walks locations with an anchor index, closing a window once it spans at
// least cfg.Window. The first window, and any window that is too fast, too
// short or has no elapsed time, is dropped without a routing call. Any routing
// failure aborts the run.
func (s *Segmenter) Run(ctx context.Context, locations []model.LocationSample) (Result, error) {
	var res Result
	last := len(locations) - 1
	first := true

	for i := 0; i < last; {
		j := i + 1
		for j < last && locations[j].Timestamp.Sub(locations[i].Timestamp) < s.cfg.Window {
			j++
		}

		start, end := point(locations[i]), point(locations[j])
		elapsed := locations[j].Timestamp.Sub(locations[i].Timestamp).Seconds()
		distance := geo.DistanceM(start, end)

		if first || elapsed <= 0 || distance < s.cfg.MinDistance || distance/elapsed > s.cfg.MaxSpeed {
			first = false
			i = j
			continue
		}

		info, err := s.routes.GetRouteInfo(ctx, start, end)
		if err != nil {
			return Result{}, fmt.Errorf("route info for window %d-%d: %w", i, j, err)
		}

		res.Routes = append(res.Routes, info)
		res.Speeds = append(res.Speeds, model.SpeedSample{
			Timestamp:      locations[i].Timestamp,
			ObservedSpeed:  distance / elapsed,
			ReferenceSpeed: mean(info.SpeedLimits),
			TypicalSpeed:   mean(info.SegmentSpeeds),
			Distance:       distance,
		})
		i = j
	}

	return res, nil
}

func point(l model.LocationSample) geo.Point {
	return geo.Point{Lat: l.Latitude, Lng: l.Longitude}
}

// mean averages the non-nil values, 0 when there are none.
func mean(values []*float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
