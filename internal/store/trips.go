package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/db"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

// SaveTrip writes the whole trip in one statement. Re-processing a trip id
// replaces the earlier record.
func (s *Postgres) SaveTrip(ctx context.Context, trip model.Trip) (model.Trip, error) {
	locations, err := json.Marshal(trip.Locations)
	if err != nil {
		return model.Trip{}, fmt.Errorf("marshal locations: %w", err)
	}
	speeds, err := json.Marshal(trip.Speeds)
	if err != nil {
		return model.Trip{}, fmt.Errorf("marshal speeds: %w", err)
	}

	startHash, endHash := endpointHashes(trip.Locations)
	m := trip.Metrics

	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, vehicle_id, start_time, end_time, start_geohash, end_geohash, locations, speeds,
		                   average_speed, max_speed, distance_km, hard_brake_count, speed_adherence_percentage,
		                   hard_braking_score, speed_adherence_score, overall_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			vehicle_id=EXCLUDED.vehicle_id, start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time,
			start_geohash=EXCLUDED.start_geohash, end_geohash=EXCLUDED.end_geohash,
			locations=EXCLUDED.locations, speeds=EXCLUDED.speeds,
			average_speed=EXCLUDED.average_speed, max_speed=EXCLUDED.max_speed, distance_km=EXCLUDED.distance_km,
			hard_brake_count=EXCLUDED.hard_brake_count, speed_adherence_percentage=EXCLUDED.speed_adherence_percentage,
			hard_braking_score=EXCLUDED.hard_braking_score, speed_adherence_score=EXCLUDED.speed_adherence_score,
			overall_score=EXCLUDED.overall_score
		RETURNING created_at
	`, trip.ID, trip.VehicleID, trip.StartTime, trip.EndTime, startHash, endHash, string(locations), string(speeds),
		m.AverageSpeed, m.MaxSpeed, m.DistanceKm, m.HardBrakeCount, m.SpeedAdherencePercentage,
		string(m.Score.HardBraking), string(m.Score.SpeedAdherence), string(m.Score.Overall))
	if err := row.Scan(&trip.CreatedAt); err != nil {
		return model.Trip{}, err
	}
	return trip, nil
}

func (s *Postgres) FindTrip(ctx context.Context, id string) (model.Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, vehicle_id, start_time, end_time, locations, speeds,
		       average_speed, max_speed, distance_km, hard_brake_count, speed_adherence_percentage,
		       hard_braking_score, speed_adherence_score, overall_score, created_at
		FROM trips WHERE id=$1
	`, id)

	var t model.Trip
	var locations, speeds []byte
	var hb, sa, overall string
	if err := row.Scan(&t.ID, &t.VehicleID, &t.StartTime, &t.EndTime, &locations, &speeds,
		&t.Metrics.AverageSpeed, &t.Metrics.MaxSpeed, &t.Metrics.DistanceKm, &t.Metrics.HardBrakeCount,
		&t.Metrics.SpeedAdherencePercentage, &hb, &sa, &overall, &t.CreatedAt); err != nil {
		if isNoRows(err) {
			return model.Trip{}, model.ErrTripNotFound
		}
		return model.Trip{}, err
	}
	if err := json.Unmarshal(locations, &t.Locations); err != nil {
		return model.Trip{}, fmt.Errorf("decode locations: %w", err)
	}
	if err := json.Unmarshal(speeds, &t.Speeds); err != nil {
		return model.Trip{}, fmt.Errorf("decode speeds: %w", err)
	}
	t.Metrics.Score = model.TripScore{
		HardBraking:    model.Rating(hb),
		SpeedAdherence: model.Rating(sa),
		Overall:        model.Class(overall),
	}
	return t, nil
}

// FindTripsForVehicle returns trip summaries (metrics without the location
// and speed series) ordered by start time.
func (s *Postgres) FindTripsForVehicle(ctx context.Context, vehicleID string) ([]model.Trip, error) {
	return findTripSummaries(ctx, s.db, vehicleID)
}

func findTripSummaries(ctx context.Context, q db.Querier, vehicleID string) ([]model.Trip, error) {
	rows, err := q.Query(ctx, `
		SELECT id, vehicle_id, start_time, end_time,
		       average_speed, max_speed, distance_km, hard_brake_count, speed_adherence_percentage,
		       hard_braking_score, speed_adherence_score, overall_score, created_at
		FROM trips WHERE vehicle_id=$1
		ORDER BY start_time, id
	`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		var t model.Trip
		var hb, sa, overall string
		if err := rows.Scan(&t.ID, &t.VehicleID, &t.StartTime, &t.EndTime,
			&t.Metrics.AverageSpeed, &t.Metrics.MaxSpeed, &t.Metrics.DistanceKm, &t.Metrics.HardBrakeCount,
			&t.Metrics.SpeedAdherencePercentage, &hb, &sa, &overall, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Metrics.Score = model.TripScore{
			HardBraking:    model.Rating(hb),
			SpeedAdherence: model.Rating(sa),
			Overall:        model.Class(overall),
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func endpointHashes(locations []model.LocationSample) (string, string) {
	if len(locations) == 0 {
		return "", ""
	}
	first, last := locations[0], locations[len(locations)-1]
	return geo.Hash(geo.Point{Lat: first.Latitude, Lng: first.Longitude}),
		geo.Hash(geo.Point{Lat: last.Latitude, Lng: last.Longitude})
}
