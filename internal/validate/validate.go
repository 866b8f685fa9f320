// Package validate is the final gate before batching: it rejects canonical
// records that are internally inconsistent or outside their declared sane
// ranges, classifying each rejection. Accepted records pass through
// unchanged; rejections are counted by the orchestrator and never abort the
// source.
package validate

import (
	"fmt"

	"github.com/kholm/healthpipe/internal/record"
)

// Declared sane ranges. Values outside these are rejected as OutOfRange.
const (
	maxGlucoseMgDl = 1000
	maxWeightKg    = 700
	maxBMI         = 200
	maxPercent     = 100
)

// Check returns nil when rec may be persisted, or a classified rejection.
func Check(rec record.Record) *record.Rejection {
	switch r := rec.(type) {
	case record.QuantityRecord:
		if r.StartTime.After(r.EndTime) {
			return ordering(r.StartTime.String(), r.EndTime.String())
		}
	case record.CategoryRecord:
		if r.StartTime.After(r.EndTime) {
			return ordering(r.StartTime.String(), r.EndTime.String())
		}
	case record.WorkoutRecord:
		if r.StartTime.After(r.EndTime) {
			return ordering(r.StartTime.String(), r.EndTime.String())
		}
		if r.DurationSeconds < 0 {
			return outOfRange("duration_seconds", r.DurationSeconds)
		}
		if r.Distance != nil && *r.Distance < 0 {
			return outOfRange("total_distance", *r.Distance)
		}
		if r.Energy != nil && *r.Energy < 0 {
			return outOfRange("total_energy_burned", *r.Energy)
		}
	case record.FoodLogEntry:
		if r.FoodItem == "" {
			return missing("food_item")
		}
		if r.Calories != nil && *r.Calories < 0 {
			return outOfRange("calories", *r.Calories)
		}
	case record.BodyMeasurement:
		if r.WeightKg != nil && (*r.WeightKg <= 0 || *r.WeightKg > maxWeightKg) {
			return outOfRange("weight_kg", *r.WeightKg)
		}
		if r.BodyFatPercent != nil && (*r.BodyFatPercent < 0 || *r.BodyFatPercent > maxPercent) {
			return outOfRange("body_fat_percent", *r.BodyFatPercent)
		}
		if r.WaterPercent != nil && (*r.WaterPercent < 0 || *r.WaterPercent > maxPercent) {
			return outOfRange("water_percent", *r.WaterPercent)
		}
		if r.BMI != nil && (*r.BMI <= 0 || *r.BMI > maxBMI) {
			return outOfRange("bmi", *r.BMI)
		}
	case record.GlucoseReading:
		if r.Value <= 0 || r.Value > maxGlucoseMgDl {
			return outOfRange("glucose_value", r.Value)
		}
	}
	return nil
}

func ordering(start, end string) *record.Rejection {
	return &record.Rejection{
		Reason: record.ReasonOrderingViolation,
		Field:  "start_time",
		Detail: fmt.Sprintf("start %s is after end %s", start, end),
	}
}

func outOfRange(field string, v float64) *record.Rejection {
	return &record.Rejection{
		Reason: record.ReasonOutOfRange,
		Field:  field,
		Detail: fmt.Sprintf("value %g outside sane range", v),
	}
}

func missing(field string) *record.Rejection {
	return &record.Rejection{
		Reason: record.ReasonMissingField,
		Field:  field,
		Detail: "required field is empty",
	}
}
