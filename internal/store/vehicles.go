package store

import (
	"context"
	"fmt"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/db"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

func (s *Postgres) FindVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, total_trips, total_distance_km, average_speed,
		       consistency_score, time_of_day_score, hard_braking_score, speed_adherence_score,
		       overall_classification, updated_at
		FROM vehicles WHERE id=$1
	`, id)

	var v model.Vehicle
	var consistency, timeOfDay, hb, sa, overall string
	if err := row.Scan(&v.ID, &v.TotalTrips, &v.TotalDistance, &v.AverageSpeed,
		&consistency, &timeOfDay, &hb, &sa, &overall, &v.UpdatedAt); err != nil {
		if isNoRows(err) {
			return model.Vehicle{}, model.ErrVehicleNotFound
		}
		return model.Vehicle{}, err
	}
	v.Score = model.VehicleScore{
		Consistency:           model.Rating(consistency),
		TimeOfDay:             model.Rating(timeOfDay),
		HardBraking:           model.Rating(hb),
		SpeedAdherence:        model.Rating(sa),
		OverallClassification: model.Class(overall),
	}
	return v, nil
}

// SaveVehicle creates the vehicle or overwrites its aggregate.
func (s *Postgres) SaveVehicle(ctx context.Context, v model.Vehicle) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (id, total_trips, total_distance_km, average_speed,
		                      consistency_score, time_of_day_score, hard_braking_score, speed_adherence_score,
		                      overall_classification, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
		ON CONFLICT (id) DO UPDATE SET
			total_trips=EXCLUDED.total_trips, total_distance_km=EXCLUDED.total_distance_km,
			average_speed=EXCLUDED.average_speed, consistency_score=EXCLUDED.consistency_score,
			time_of_day_score=EXCLUDED.time_of_day_score, hard_braking_score=EXCLUDED.hard_braking_score,
			speed_adherence_score=EXCLUDED.speed_adherence_score,
			overall_classification=EXCLUDED.overall_classification, updated_at=now()
	`, vehicleArgs(v)...)
	return err
}

// UpdateVehicle recomputes a vehicle from its full trip set in one
// transaction. The vehicle row stays locked until commit, so concurrent
// recomputations for the same vehicle run one after the other.
func (s *Postgres) UpdateVehicle(ctx context.Context, id string, fn func(trips []model.Trip) model.Vehicle) (model.Vehicle, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("begin: %w", err)
	}

	v, err := updateVehicle(ctx, tx, id, fn)
	if err != nil {
		_ = tx.Rollback(ctx)
		return model.Vehicle{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Vehicle{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

func updateVehicle(ctx context.Context, q db.Querier, id string, fn func([]model.Trip) model.Vehicle) (model.Vehicle, error) {
	var locked string
	if err := q.QueryRow(ctx, `SELECT id FROM vehicles WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if isNoRows(err) {
			return model.Vehicle{}, model.ErrVehicleNotFound
		}
		return model.Vehicle{}, err
	}

	trips, err := findTripSummaries(ctx, q, id)
	if err != nil {
		return model.Vehicle{}, err
	}

	v := fn(trips)
	v.ID = id
	row := q.QueryRow(ctx, `
		UPDATE vehicles
		SET total_trips=$2, total_distance_km=$3, average_speed=$4,
		    consistency_score=$5, time_of_day_score=$6, hard_braking_score=$7, speed_adherence_score=$8,
		    overall_classification=$9, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, vehicleArgs(v)...)
	if err := row.Scan(&v.UpdatedAt); err != nil {
		return model.Vehicle{}, err
	}
	return v, nil
}

func vehicleArgs(v model.Vehicle) []any {
	return []any{
		v.ID, v.TotalTrips, v.TotalDistance, v.AverageSpeed,
		string(v.Score.Consistency), string(v.Score.TimeOfDay), string(v.Score.HardBraking),
		string(v.Score.SpeedAdherence), string(v.Score.OverallClassification),
	}
}
