package segment

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

type fakeRoutes struct {
	calls [][2]geo.Point
	info  model.RouteInfo
	err   error
}

func (f *fakeRoutes) GetRouteInfo(_ context.Context, start, end geo.Point) (model.RouteInfo, error) {
	f.calls = append(f.calls, [2]geo.Point{start, end})
	return f.info, f.err
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// northbound returns n fixes one second apart moving north at speed m/s.
func northbound(n int, speed float64) []model.LocationSample {
	degPerMetre := 180 / (math.Pi * geo.EarthRadiusM)
	out := make([]model.LocationSample, n)
	for i := range out {
		out[i] = model.LocationSample{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Latitude:  10 + float64(i)*speed*degPerMetre,
			Longitude: 20,
		}
	}
	return out
}

func f64(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-6 }

func TestConstantSpeedStream(t *testing.T) {
	routes := &fakeRoutes{info: model.RouteInfo{Distance: 100}}
	seg := New(DefaultConfig(), routes)

	res, err := seg.Run(context.Background(), northbound(21, 15))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// windows 0-5 (dropped), 5-10, 10-15, 15-20
	if len(res.Speeds) != 3 || len(res.Routes) != 3 || len(routes.calls) != 3 {
		t.Fatalf("expected 3 routed windows, got speeds=%d routes=%d calls=%d",
			len(res.Speeds), len(res.Routes), len(routes.calls))
	}
	for k, s := range res.Speeds {
		if !near(s.ObservedSpeed, 15) || !near(s.Distance, 75) {
			t.Fatalf("window %d: unexpected sample %+v", k, s)
		}
		if want := base.Add(time.Duration(5*(k+1)) * time.Second); !s.Timestamp.Equal(want) {
			t.Fatalf("window %d: expected timestamp %v, got %v", k, want, s.Timestamp)
		}
	}
}

func TestLastWindowClampedToFinalSample(t *testing.T) {
	routes := &fakeRoutes{}
	seg := New(DefaultConfig(), routes)

	res, err := seg.Run(context.Background(), northbound(8, 10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Speeds) != 1 {
		t.Fatalf("expected one window, got %d", len(res.Speeds))
	}
	s := res.Speeds[0]
	if !s.Timestamp.Equal(base.Add(5*time.Second)) || !near(s.Distance, 20) || !near(s.ObservedSpeed, 10) {
		t.Fatalf("unexpected clamped window: %+v", s)
	}
}

func TestReferenceSpeedIgnoresMissingLimits(t *testing.T) {
	routes := &fakeRoutes{info: model.RouteInfo{
		SpeedLimits:   []*float64{f64(10), nil, f64(20)},
		SegmentSpeeds: []*float64{nil, nil},
	}}
	seg := New(DefaultConfig(), routes)

	res, err := seg.Run(context.Background(), northbound(11, 12))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Speeds) != 1 {
		t.Fatalf("expected one window, got %d", len(res.Speeds))
	}
	if res.Speeds[0].ReferenceSpeed != 15 || res.Speeds[0].TypicalSpeed != 0 {
		t.Fatalf("unexpected reference/typical speed: %+v", res.Speeds[0])
	}
}

func TestStationaryWindowsSkipRouting(t *testing.T) {
	routes := &fakeRoutes{}
	seg := New(DefaultConfig(), routes)

	res, err := seg.Run(context.Background(), northbound(30, 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Speeds) != 0 || len(routes.calls) != 0 {
		t.Fatalf("expected no samples and no routing, got %d/%d", len(res.Speeds), len(routes.calls))
	}
}

func TestTeleportWindowsDropped(t *testing.T) {
	routes := &fakeRoutes{}
	seg := New(Config{Window: 5 * time.Second, MaxSpeed: 50, MinDistance: 1}, routes)

	res, err := seg.Run(context.Background(), northbound(21, 80))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Speeds) != 0 || len(routes.calls) != 0 {
		t.Fatalf("expected no samples and no routing, got %d/%d", len(res.Speeds), len(routes.calls))
	}
}

func TestZeroMaxSpeedUsesDefault(t *testing.T) {
	routes := &fakeRoutes{}
	seg := New(Config{Window: 5 * time.Second, MinDistance: 1}, routes)

	res, err := seg.Run(context.Background(), northbound(11, 10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Speeds) != 1 {
		t.Fatalf("expected one window, got %d", len(res.Speeds))
	}
}

func TestDuplicateTimestampsDropped(t *testing.T) {
	routes := &fakeRoutes{}
	seg := New(DefaultConfig(), routes)

	locs := northbound(11, 10)
	locs = append(locs, model.LocationSample{Timestamp: locs[10].Timestamp, Latitude: 11, Longitude: 20})

	res, err := seg.Run(context.Background(), locs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 0-5 dropped as first, 5-10 kept, 10-11 has zero elapsed time
	if len(res.Speeds) != 1 {
		t.Fatalf("expected one window, got %d", len(res.Speeds))
	}
}

func TestRoutingFailureAborts(t *testing.T) {
	routes := &fakeRoutes{err: errors.New("quota exceeded")}
	seg := New(DefaultConfig(), routes)

	_, err := seg.Run(context.Background(), northbound(21, 15))
	if !errors.Is(err, routes.err) {
		t.Fatalf("expected routing error, got %v", err)
	}
	if len(routes.calls) != 1 {
		t.Fatalf("expected to stop after first failure, got %d calls", len(routes.calls))
	}
}

func TestTooFewLocations(t *testing.T) {
	seg := New(DefaultConfig(), &fakeRoutes{})

	for _, locs := range [][]model.LocationSample{nil, northbound(1, 10)} {
		res, err := seg.Run(context.Background(), locs)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if len(res.Speeds) != 0 {
			t.Fatalf("expected no samples for %d locations", len(locs))
		}
	}
}
