package store

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kholm/healthpipe/internal/record"
)

// tableSpec binds one record kind to its table, its natural-key constraint
// name, and the conflict-skipping insert.
type tableSpec struct {
	table      string
	constraint string
	insertSQL  string
	args       func(record.Record) []any
}

var kindOrder = []record.Kind{
	record.KindQuantity,
	record.KindCategory,
	record.KindWorkout,
	record.KindFood,
	record.KindBody,
	record.KindGlucose,
}

var tableSpecs = map[record.Kind]tableSpec{
	record.KindQuantity: {
		table:      "health_records",
		constraint: "health_records_natural_key",
		insertSQL: `INSERT INTO health_records
			(type, start_date, end_date, value, unit, source_name)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT ON CONSTRAINT health_records_natural_key DO NOTHING`,
		args: func(r record.Record) []any {
			q := r.(record.QuantityRecord)
			return []any{q.Type, q.StartTime, q.EndTime, q.Value, pgText(q.Unit), q.SourceName}
		},
	},
	record.KindCategory: {
		table:      "health_category_records",
		constraint: "health_category_records_natural_key",
		insertSQL: `INSERT INTO health_category_records
			(type, start_date, end_date, value, source_name)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT ON CONSTRAINT health_category_records_natural_key DO NOTHING`,
		args: func(r record.Record) []any {
			c := r.(record.CategoryRecord)
			return []any{c.Type, c.StartTime, c.EndTime, c.Value, c.SourceName}
		},
	},
	record.KindWorkout: {
		table:      "workouts",
		constraint: "workouts_natural_key",
		insertSQL: `INSERT INTO workouts
			(activity_type, start_date, end_date, duration_seconds,
			 total_distance, distance_unit, total_energy_burned, energy_unit, source_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT ON CONSTRAINT workouts_natural_key DO NOTHING`,
		args: func(r record.Record) []any {
			w := r.(record.WorkoutRecord)
			return []any{
				w.ActivityType, w.StartTime, w.EndTime, w.DurationSeconds,
				pgFloat(w.Distance), pgText(w.DistanceUnit),
				pgFloat(w.Energy), pgText(w.EnergyUnit), w.SourceName,
			}
		},
	},
	record.KindFood: {
		table:      "food_log",
		constraint: "food_log_natural_key",
		insertSQL: `INSERT INTO food_log
			(log_date, meal_type, food_item, calories, fat_g, protein_g,
			 carbs_g, sugar_g, fiber_g, sodium_mg, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT ON CONSTRAINT food_log_natural_key DO NOTHING`,
		args: func(r record.Record) []any {
			f := r.(record.FoodLogEntry)
			return []any{
				pgtype.Date{Time: f.LogDate, Valid: true}, f.MealType, f.FoodItem,
				pgFloat(f.Calories), pgFloat(f.FatG), pgFloat(f.ProteinG),
				pgFloat(f.CarbsG), pgFloat(f.SugarG), pgFloat(f.FiberG),
				pgFloat(f.SodiumMg), f.Source,
			}
		},
	},
	record.KindBody: {
		table:      "body_measurements",
		constraint: "body_measurements_natural_key",
		insertSQL: `INSERT INTO body_measurements
			(recorded_at, weight_kg, body_fat_percent, bmi, muscle_mass_kg,
			 metabolic_age, visceral_fat, water_percent, device_id, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT ON CONSTRAINT body_measurements_natural_key DO NOTHING`,
		args: func(r record.Record) []any {
			b := r.(record.BodyMeasurement)
			return []any{
				b.RecordedAt, pgFloat(b.WeightKg), pgFloat(b.BodyFatPercent),
				pgFloat(b.BMI), pgFloat(b.MuscleMassKg), pgFloat(b.MetabolicAge),
				pgFloat(b.VisceralFat), pgFloat(b.WaterPercent), b.DeviceID, b.Source,
			}
		},
	},
	record.KindGlucose: {
		table:      "blood_glucose",
		constraint: "blood_glucose_natural_key",
		insertSQL: `INSERT INTO blood_glucose
			(reading_time, glucose_value, glucose_unit, reading_context,
			 meal_relation, feeling_tag, note, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT ON CONSTRAINT blood_glucose_natural_key DO NOTHING`,
		args: func(r record.Record) []any {
			g := r.(record.GlucoseReading)
			return []any{
				g.ReadingTime, g.Value, pgText(g.Unit), pgText(g.ReadingContext),
				pgText(g.MealRelation), pgText(g.FeelingTag), pgText(g.Note), g.Source,
			}
		},
	},
}

func specFor(kind record.Kind) (tableSpec, error) {
	spec, ok := tableSpecs[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("no table for record kind %v", kind)
	}
	return spec, nil
}

func allTableSpecs() []tableSpec {
	specs := make([]tableSpec, 0, len(kindOrder))
	for _, k := range kindOrder {
		specs = append(specs, tableSpecs[k])
	}
	return specs
}

// pgFloat maps an optional numeric to a nullable column value.
// Absent means NULL, never zero.
func pgFloat(p *float64) pgtype.Float8 {
	if p == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *p, Valid: true}
}

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
