package validate

import (
	"testing"
	"time"

	"github.com/kholm/healthpipe/internal/record"
)

var (
	t0 = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
)

func f(v float64) *float64 { return &v }

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		rec    record.Record
		reason record.RejectReason
		accept bool
	}{
		{
			name:   "quantity ok",
			rec:    record.QuantityRecord{Type: "x", StartTime: t0, EndTime: t1, Value: 1},
			accept: true,
		},
		{
			name:   "quantity ordering violation",
			rec:    record.QuantityRecord{Type: "x", StartTime: t1, EndTime: t0, Value: 1},
			reason: record.ReasonOrderingViolation,
		},
		{
			name:   "quantity zero-length range ok",
			rec:    record.QuantityRecord{Type: "x", StartTime: t0, EndTime: t0, Value: 1},
			accept: true,
		},
		{
			name:   "category ordering violation",
			rec:    record.CategoryRecord{Type: "x", StartTime: t1, EndTime: t0},
			reason: record.ReasonOrderingViolation,
		},
		{
			name:   "workout ok",
			rec:    record.WorkoutRecord{ActivityType: "Run", StartTime: t0, EndTime: t1, DurationSeconds: 3600},
			accept: true,
		},
		{
			name:   "workout negative duration",
			rec:    record.WorkoutRecord{ActivityType: "Run", StartTime: t0, EndTime: t1, DurationSeconds: -1},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "workout negative distance",
			rec:    record.WorkoutRecord{ActivityType: "Run", StartTime: t0, EndTime: t1, Distance: f(-5)},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "workout negative energy",
			rec:    record.WorkoutRecord{ActivityType: "Run", StartTime: t0, EndTime: t1, Energy: f(-100)},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "food ok",
			rec:    record.FoodLogEntry{LogDate: t0, FoodItem: "Oatmeal", Calories: f(150)},
			accept: true,
		},
		{
			name:   "food missing item",
			rec:    record.FoodLogEntry{LogDate: t0},
			reason: record.ReasonMissingField,
		},
		{
			name:   "food negative calories",
			rec:    record.FoodLogEntry{LogDate: t0, FoodItem: "Oatmeal", Calories: f(-10)},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "body ok",
			rec:    record.BodyMeasurement{RecordedAt: t0, WeightKg: f(70), BodyFatPercent: f(22.5), BMI: f(23)},
			accept: true,
		},
		{
			name:   "body all-nil metrics ok",
			rec:    record.BodyMeasurement{RecordedAt: t0},
			accept: true,
		},
		{
			name:   "body zero weight",
			rec:    record.BodyMeasurement{RecordedAt: t0, WeightKg: f(0)},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "body absurd weight",
			rec:    record.BodyMeasurement{RecordedAt: t0, WeightKg: f(701)},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "body fat over 100 percent",
			rec:    record.BodyMeasurement{RecordedAt: t0, BodyFatPercent: f(100.5)},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "body water percent boundary ok",
			rec:    record.BodyMeasurement{RecordedAt: t0, WaterPercent: f(100)},
			accept: true,
		},
		{
			name:   "glucose ok",
			rec:    record.GlucoseReading{ReadingTime: t0, Value: 96},
			accept: true,
		},
		{
			name:   "glucose zero",
			rec:    record.GlucoseReading{ReadingTime: t0, Value: 0},
			reason: record.ReasonOutOfRange,
		},
		{
			name:   "glucose absurd",
			rec:    record.GlucoseReading{ReadingTime: t0, Value: 1001},
			reason: record.ReasonOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := Check(tt.rec)
			if tt.accept {
				if rej != nil {
					t.Fatalf("Check() = %v, want accepted", rej)
				}
				return
			}
			if rej == nil {
				t.Fatal("Check() = nil, want rejection")
			}
			if rej.Reason != tt.reason {
				t.Errorf("reason = %v, want %v", rej.Reason, tt.reason)
			}
		})
	}
}
