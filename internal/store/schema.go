// Package store persists canonical records to PostgreSQL. One table per
// record kind, each declaring a named UNIQUE constraint over that kind's
// natural key; the loader leans on those constraints for idempotence and
// refuses to run when one is missing.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgx the store needs. Satisfied by *pgxpool.Pool and
// *pgx.Conn.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrStoreUnavailable marks a run-fatal store failure: no connection, or a
// table missing its natural-key constraint.
var ErrStoreUnavailable = errors.New("store unavailable")

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS health_records (
		record_id BIGSERIAL PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		value NUMERIC(12, 4) NOT NULL,
		unit VARCHAR(50),
		source_name VARCHAR(100) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT health_records_natural_key
			UNIQUE (type, start_date, end_date, value, source_name)
	)`,
	`CREATE TABLE IF NOT EXISTS health_category_records (
		record_id BIGSERIAL PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		value VARCHAR(100),
		source_name VARCHAR(100) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT health_category_records_natural_key
			UNIQUE (type, start_date, end_date, value, source_name)
	)`,
	`CREATE TABLE IF NOT EXISTS workouts (
		workout_id BIGSERIAL PRIMARY KEY,
		activity_type VARCHAR(100) NOT NULL,
		start_date TIMESTAMP WITH TIME ZONE NOT NULL,
		end_date TIMESTAMP WITH TIME ZONE NOT NULL,
		duration_seconds NUMERIC(12, 2),
		total_distance NUMERIC(12, 4),
		distance_unit VARCHAR(50),
		total_energy_burned NUMERIC(12, 2),
		energy_unit VARCHAR(50),
		source_name VARCHAR(100) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT workouts_natural_key
			UNIQUE (activity_type, start_date, end_date, source_name)
	)`,
	`CREATE TABLE IF NOT EXISTS food_log (
		log_id BIGSERIAL PRIMARY KEY,
		log_date DATE NOT NULL,
		meal_type VARCHAR(50),
		food_item VARCHAR(255) NOT NULL,
		calories NUMERIC(10, 2),
		fat_g NUMERIC(10, 2),
		protein_g NUMERIC(10, 2),
		carbs_g NUMERIC(10, 2),
		sugar_g NUMERIC(10, 2),
		fiber_g NUMERIC(10, 2),
		sodium_mg NUMERIC(10, 2),
		source VARCHAR(50) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT food_log_natural_key
			UNIQUE (log_date, food_item, meal_type)
	)`,
	`CREATE TABLE IF NOT EXISTS body_measurements (
		measurement_id BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
		weight_kg NUMERIC(7, 3),
		body_fat_percent NUMERIC(5, 2),
		bmi NUMERIC(5, 2),
		muscle_mass_kg NUMERIC(7, 3),
		metabolic_age NUMERIC(5, 1),
		visceral_fat NUMERIC(5, 1),
		water_percent NUMERIC(5, 2),
		device_id VARCHAR(100) NOT NULL,
		source VARCHAR(50) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT body_measurements_natural_key
			UNIQUE (recorded_at, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blood_glucose (
		glucose_id BIGSERIAL PRIMARY KEY,
		reading_time TIMESTAMP WITH TIME ZONE NOT NULL,
		glucose_value NUMERIC(6, 2) NOT NULL,
		glucose_unit VARCHAR(20),
		reading_context VARCHAR(200),
		meal_relation VARCHAR(20),
		feeling_tag VARCHAR(100),
		note TEXT,
		source VARCHAR(50) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT blood_glucose_natural_key
			UNIQUE (reading_time, glucose_value, source)
	)`,
}

// CreateTables ensures all six canonical tables and their natural-key
// constraints exist.
func CreateTables(ctx context.Context, db DB) error {
	for _, stmt := range ddl {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// VerifyNaturalKeys confirms every table declares its natural-key UNIQUE
// constraint. A missing constraint would let the loader silently duplicate
// rows, so it is fatal, not per-record.
func VerifyNaturalKeys(ctx context.Context, db DB) error {
	for _, spec := range allTableSpecs() {
		var exists bool
		err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = $1 AND contype = 'u')`,
			spec.constraint,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: verify constraint %s: %v", ErrStoreUnavailable, spec.constraint, err)
		}
		if !exists {
			return fmt.Errorf("%w: table %s is missing constraint %s; run initdb first",
				ErrStoreUnavailable, spec.table, spec.constraint)
		}
	}
	return nil
}

// TableCount holds a row count for one table, for the counts diagnostic.
type TableCount struct {
	Table string
	Rows  int64
}

// TableCounts returns the row count of each canonical table, in a fixed
// order.
func TableCounts(ctx context.Context, db DB) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(kindOrder))
	for _, kind := range kindOrder {
		spec := tableSpecs[kind]
		var n int64
		if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM `+spec.table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", spec.table, err)
		}
		counts = append(counts, TableCount{Table: spec.table, Rows: n})
	}
	return counts, nil
}
