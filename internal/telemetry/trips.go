package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

// TripLister pages through the trips the DIMO trips API recorded for a
// vehicle.
type TripLister struct {
	baseURL string
	client  *http.Client
}

func NewTripLister(baseURL string, client *http.Client) *TripLister {
	if client == nil {
		client = http.DefaultClient
	}
	return &TripLister{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type tripsPage struct {
	Trips []struct {
		ID    string `json:"id"`
		Start struct {
			Time time.Time `json:"time"`
		} `json:"start"`
		End struct {
			Time time.Time `json:"time"`
		} `json:"end"`
	} `json:"trips"`
	TotalPages int `json:"totalPages"`
}

func (l *TripLister) ListTrips(ctx context.Context, authToken, vehicleID string) ([]model.TripDescriptor, error) {
	var trips []model.TripDescriptor
	for page := 1; ; page++ {
		body, err := l.fetch(ctx, authToken, vehicleID, page)
		if err != nil {
			return nil, err
		}
		for _, t := range body.Trips {
			trips = append(trips, model.TripDescriptor{ID: t.ID, Start: t.Start.Time, End: t.End.Time})
		}
		if page >= body.TotalPages || len(body.Trips) == 0 {
			return trips, nil
		}
	}
}

func (l *TripLister) fetch(ctx context.Context, authToken, vehicleID string, page int) (tripsPage, error) {
	endpoint := fmt.Sprintf("%s/vehicle/%s/trips?page=%s",
		l.baseURL, url.PathEscape(vehicleID), strconv.Itoa(page))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tripsPage{}, err
	}
	req.Header.Set("Authorization", bearer(authToken))

	resp, err := l.client.Do(req)
	if err != nil {
		return tripsPage{}, fmt.Errorf("trips request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return tripsPage{}, fmt.Errorf("trips status %d", resp.StatusCode)
	}

	var body tripsPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return tripsPage{}, fmt.Errorf("trips decode: %w", err)
	}
	return body, nil
}
