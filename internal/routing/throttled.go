package routing

import (
	"context"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/throttle"
)

// Throttled admits every lookup through a shared throttle so that all trips
// together stay inside the provider quota.
type Throttled struct {
	next     Provider
	throttle *throttle.Throttle
}

func NewThrottled(next Provider, t *throttle.Throttle) *Throttled {
	return &Throttled{next: next, throttle: t}
}

func (t *Throttled) GetRouteInfo(ctx context.Context, start, end geo.Point) (model.RouteInfo, error) {
	var info model.RouteInfo
	err := t.throttle.Execute(ctx, func(ctx context.Context) error {
		var err error
		info, err = t.next.GetRouteInfo(ctx, start, end)
		return err
	})
	return info, err
}
