// Package telemetry talks to the DIMO telemetry and trips APIs. Every call is
// made with the caller's DIMO token.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

const signalsQuery = `{
  signals(tokenId: %s, interval: "1s", from: "%s", to: "%s") {
    currentLocationLatitude(agg: MED)
    currentLocationLongitude(agg: MED)
    currentLocationAltitude(agg: MED)
    timestamp
  }
}`

type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: url, client: client}
}

type graphQLResponse struct {
	Data struct {
		Signals []struct {
			Latitude  *float64  `json:"currentLocationLatitude"`
			Longitude *float64  `json:"currentLocationLongitude"`
			Altitude  *float64  `json:"currentLocationAltitude"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"signals"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GetTripTelemetry returns the located samples recorded between start and
// end in timestamp order. Samples without a position are skipped; a missing
// altitude reads as zero.
func (c *Client) GetTripTelemetry(ctx context.Context, authToken, vehicleID string, start, end time.Time) ([]model.LocationSample, error) {
	query := fmt.Sprintf(signalsQuery, vehicleID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(authToken))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telemetry request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telemetry status %d", resp.StatusCode)
	}

	var body graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("telemetry decode: %w", err)
	}
	if len(body.Errors) > 0 {
		msgs := make([]string, 0, len(body.Errors))
		for _, e := range body.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, errors.New("telemetry query: " + strings.Join(msgs, "; "))
	}

	samples := make([]model.LocationSample, 0, len(body.Data.Signals))
	for _, s := range body.Data.Signals {
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		sample := model.LocationSample{
			Timestamp: s.Timestamp,
			Latitude:  *s.Latitude,
			Longitude: *s.Longitude,
		}
		if s.Altitude != nil {
			sample.Altitude = *s.Altitude
		}
		samples = append(samples, sample)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}

func bearer(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}
