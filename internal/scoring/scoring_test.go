package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func sample(offset time.Duration, observed, reference float64) model.SpeedSample {
	return model.SpeedSample{Timestamp: t0.Add(offset), ObservedSpeed: observed, ReferenceSpeed: reference}
}

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-12 }

func TestHardBrakeDetection(t *testing.T) {
	cases := []struct {
		name   string
		speeds []model.SpeedSample
		want   int
	}{
		{"hard", []model.SpeedSample{sample(0, 20, 0), sample(time.Second, 10, 0)}, 1},
		{"soft", []model.SpeedSample{sample(0, 20, 0), sample(time.Second, 15, 0)}, 0},
		{"spread", []model.SpeedSample{sample(0, 20, 0), sample(5*time.Second, 10, 0)}, 0},
		{"same instant", []model.SpeedSample{sample(0, 20, 0), sample(0, 0, 0)}, 0},
	}
	for _, c := range cases {
		if got := CountHardBrakes(c.speeds); got != c.want {
			t.Fatalf("%s: expected %d hard brakes, got %d", c.name, c.want, got)
		}
	}
}

func TestHardBrakingRating(t *testing.T) {
	cases := []struct {
		count    int
		distance float64
		want     model.Rating
	}{
		{0, 100, model.RatingExcellent},
		{1, 100, model.RatingExcellent},
		{3, 100, model.RatingGood},
		{5, 100, model.RatingAverage},
		{6, 100, model.RatingPoor},
		{1, 25, model.RatingAverage},
		{0, 0, model.RatingExcellent},
		{1, 0, model.RatingPoor},
	}
	for _, c := range cases {
		if got := HardBrakingRating(c.count, c.distance); got != c.want {
			t.Fatalf("count=%d distance=%v: expected %s, got %s", c.count, c.distance, c.want, got)
		}
	}
}

func TestSpeedAdherenceRating(t *testing.T) {
	cases := []struct {
		pct  float64
		want model.Rating
	}{
		{0, model.RatingExcellent},
		{5, model.RatingExcellent},
		{15, model.RatingGood},
		{30, model.RatingAverage},
		{30.1, model.RatingPoor},
	}
	for _, c := range cases {
		if got := SpeedAdherenceRating(c.pct); got != c.want {
			t.Fatalf("%v%%: expected %s, got %s", c.pct, c.want, got)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		score float64
		want  model.Class
	}{
		{3, model.ClassA},
		{2.5, model.ClassA},
		{2, model.ClassB},
		{1.5, model.ClassC},
		{1.49, model.ClassD},
	}
	for _, c := range cases {
		if got := Classify(c.score); got != c.want {
			t.Fatalf("score %v: expected %s, got %s", c.score, c.want, got)
		}
	}
	if got := WeightedClass(); got != model.ClassUnknown {
		t.Fatalf("expected unknown class without parts, got %s", got)
	}
}

func TestScoreCombination(t *testing.T) {
	s := Score(0, 0, 100, DefaultTripWeights)
	want := model.TripScore{
		HardBraking:    model.RatingExcellent,
		SpeedAdherence: model.RatingExcellent,
		Overall:        model.ClassA,
	}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}

	// (3*1 + 1*2) / 3 = 1.67
	if s = Score(0, 25, 100, DefaultTripWeights); s.Overall != model.ClassC {
		t.Fatalf("expected class C, got %s", s.Overall)
	}

	// (0*1 + 3*2) / 3 = 2
	s = Score(10, 0, 100, DefaultTripWeights)
	if s.HardBraking != model.RatingPoor || s.Overall != model.ClassB {
		t.Fatalf("expected poor braking and class B, got %+v", s)
	}
}

func TestCompute(t *testing.T) {
	speeds := []model.SpeedSample{
		sample(0, 20, 25),
		sample(5*time.Second, 30, 25),
		sample(10*time.Second, 10, 25),
		sample(15*time.Second, 20, 25),
	}
	routes := []model.RouteInfo{{Distance: 600}, {Distance: 700}, {Distance: 200}}

	m, err := Compute(speeds, routes, DefaultTripWeights)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !near(m.AverageSpeed, 20) || m.MaxSpeed != 30 || !near(m.DistanceKm, 1.5) {
		t.Fatalf("unexpected speeds or distance: %+v", m)
	}
	if m.HardBrakeCount != 0 || m.SpeedAdherencePercentage != 25 {
		t.Fatalf("unexpected brakes or adherence: %+v", m)
	}
	if m.Score.HardBraking != model.RatingExcellent || m.Score.SpeedAdherence != model.RatingAverage {
		t.Fatalf("unexpected score: %+v", m.Score)
	}
}

func TestComputeEmpty(t *testing.T) {
	if _, err := Compute(nil, nil, DefaultTripWeights); !errors.Is(err, ErrNoSpeedSamples) {
		t.Fatalf("expected ErrNoSpeedSamples, got %v", err)
	}
}

func TestDistanceKm(t *testing.T) {
	if d := DistanceKm(nil); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
	if d := DistanceKm([]model.RouteInfo{{Distance: 1}}); math.IsNaN(d) {
		t.Fatalf("unexpected NaN")
	}
	if d := DistanceKm([]model.RouteInfo{{Distance: 250}, {Distance: 250}}); !near(d, 0.5) {
		t.Fatalf("expected 0.5 km, got %v", d)
	}
}
