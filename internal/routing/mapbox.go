package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

const (
	kmhToMps = 1000.0 / 3600.0
	mphToMps = 1609.344 / 3600.0
)

var ErrNoRoute = errors.New("no route between points")

type Provider interface {
	GetRouteInfo(ctx context.Context, start, end geo.Point) (model.RouteInfo, error)
}

// Mapbox queries the driving directions API for per-leg speed and speed
// limit annotations. All speeds it returns are in m/s.
type Mapbox struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewMapbox(baseURL, token string, client *http.Client) *Mapbox {
	if client == nil {
		client = http.DefaultClient
	}
	return &Mapbox{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
		Geometry json.RawMessage `json:"geometry"`
		Legs     []struct {
			Annotation struct {
				Distance []float64  `json:"distance"`
				Speed    []float64  `json:"speed"`
				MaxSpeed []maxSpeed `json:"maxspeed"`
			} `json:"annotation"`
		} `json:"legs"`
	} `json:"routes"`
}

type maxSpeed struct {
	Speed   *float64 `json:"speed"`
	Unit    string   `json:"unit"`
	Unknown bool     `json:"unknown"`
	None    bool     `json:"none"`
}

func (m maxSpeed) mps() *float64 {
	if m.Speed == nil || m.Unknown || m.None {
		return nil
	}
	v := *m.Speed
	switch m.Unit {
	case "mph":
		v *= mphToMps
	default:
		v *= kmhToMps
	}
	return &v
}

func (m *Mapbox) GetRouteInfo(ctx context.Context, start, end geo.Point) (model.RouteInfo, error) {
	q := url.Values{}
	q.Set("alternatives", "false")
	q.Set("annotations", "speed,maxspeed,distance")
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("access_token", m.token)
	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/driving/%f,%f;%f,%f?%s",
		m.baseURL, start.Lng, start.Lat, end.Lng, end.Lat, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.RouteInfo{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return model.RouteInfo{}, fmt.Errorf("mapbox request: %w", err)
	}
	defer resp.Body.Close()

	var body directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.RouteInfo{}, fmt.Errorf("mapbox decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.RouteInfo{}, fmt.Errorf("mapbox status %d: %s", resp.StatusCode, body.Message)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return model.RouteInfo{}, fmt.Errorf("%w: %s", ErrNoRoute, body.Code)
	}

	route := body.Routes[0]
	info := model.RouteInfo{
		Distance: route.Distance,
		Duration: route.Duration,
		Geometry: route.Geometry,
	}
	for _, leg := range route.Legs {
		a := leg.Annotation
		info.SegmentDistances = append(info.SegmentDistances, a.Distance...)
		for _, s := range a.Speed {
			s := s
			info.SegmentSpeeds = append(info.SegmentSpeeds, &s)
		}
		for _, ms := range a.MaxSpeed {
			info.SpeedLimits = append(info.SpeedLimits, ms.mps())
		}
	}
	return info, nil
}
