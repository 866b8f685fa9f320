// Package record defines the canonical record kinds every source is mapped
// into before validation and persistence, plus the per-record result values
// the pipeline stages exchange.
//
// Each kind carries a natural key: the attribute tuple that identifies "this
// exact fact was already recorded" independent of any generated row id. The
// store declares a matching UNIQUE constraint per kind, and [Record.NaturalKey]
// renders the same tuple as a string for in-memory deduplication and tests.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the canonical record types.
type Kind int

const (
	KindQuantity Kind = iota
	KindCategory
	KindWorkout
	KindFood
	KindBody
	KindGlucose
)

// String returns the kind's table-ish name, used in logs and summaries.
func (k Kind) String() string {
	switch k {
	case KindQuantity:
		return "quantity"
	case KindCategory:
		return "category"
	case KindWorkout:
		return "workout"
	case KindFood:
		return "food_log"
	case KindBody:
		return "body_measurement"
	case KindGlucose:
		return "glucose"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Record is implemented by every canonical record kind.
type Record interface {
	// Kind returns the record's discriminator.
	Kind() Kind

	// NaturalKey renders the deduplication tuple as a stable string.
	NaturalKey() string

	// EffectiveTime is the instant used for inclusive date-range filtering:
	// the start time for ranged kinds, the measurement time otherwise.
	EffectiveTime() time.Time
}

// QuantityRecord is a numeric health sample (step count, heart rate, ...).
type QuantityRecord struct {
	Type       string
	StartTime  time.Time
	EndTime    time.Time
	Value      float64
	Unit       string
	SourceName string
}

func (r QuantityRecord) Kind() Kind { return KindQuantity }

func (r QuantityRecord) NaturalKey() string {
	return keyOf(r.Type, keyTime(r.StartTime), keyTime(r.EndTime), keyFloat(r.Value), r.SourceName)
}

func (r QuantityRecord) EffectiveTime() time.Time { return r.StartTime }

// CategoryRecord is a categorical health sample (sleep stage, ...).
type CategoryRecord struct {
	Type       string
	StartTime  time.Time
	EndTime    time.Time
	Value      string
	SourceName string
}

func (r CategoryRecord) Kind() Kind { return KindCategory }

func (r CategoryRecord) NaturalKey() string {
	return keyOf(r.Type, keyTime(r.StartTime), keyTime(r.EndTime), r.Value, r.SourceName)
}

func (r CategoryRecord) EffectiveTime() time.Time { return r.StartTime }

// WorkoutRecord is one activity session.
type WorkoutRecord struct {
	ActivityType    string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds float64
	Distance        *float64
	DistanceUnit    string
	Energy          *float64
	EnergyUnit      string
	SourceName      string
}

func (r WorkoutRecord) Kind() Kind { return KindWorkout }

func (r WorkoutRecord) NaturalKey() string {
	return keyOf(r.ActivityType, keyTime(r.StartTime), keyTime(r.EndTime), r.SourceName)
}

func (r WorkoutRecord) EffectiveTime() time.Time { return r.StartTime }

// FoodLogEntry is one logged food item for one meal on one day.
type FoodLogEntry struct {
	LogDate  time.Time // date component only; normalized to midnight UTC
	MealType string
	FoodItem string
	Calories *float64
	FatG     *float64
	ProteinG *float64
	CarbsG   *float64
	SugarG   *float64
	FiberG   *float64
	SodiumMg *float64
	Source   string
}

func (r FoodLogEntry) Kind() Kind { return KindFood }

func (r FoodLogEntry) NaturalKey() string {
	return keyOf(r.LogDate.Format("2006-01-02"), r.FoodItem, r.MealType)
}

func (r FoodLogEntry) EffectiveTime() time.Time { return r.LogDate }

// BodyMeasurement is one smart-scale reading.
type BodyMeasurement struct {
	RecordedAt     time.Time
	WeightKg       *float64
	BodyFatPercent *float64
	BMI            *float64
	MuscleMassKg   *float64
	MetabolicAge   *float64
	VisceralFat    *float64
	WaterPercent   *float64
	DeviceID       string
	Source         string
}

func (r BodyMeasurement) Kind() Kind { return KindBody }

func (r BodyMeasurement) NaturalKey() string {
	return keyOf(keyTime(r.RecordedAt), r.DeviceID)
}

func (r BodyMeasurement) EffectiveTime() time.Time { return r.RecordedAt }

// GlucoseReading is one blood-glucose meter reading.
type GlucoseReading struct {
	ReadingTime    time.Time
	Value          float64
	Unit           string
	ReadingContext string
	MealRelation   string // "before" or "after" when extractable, else empty
	FeelingTag     string
	Note           string
	Source         string
}

func (r GlucoseReading) Kind() Kind { return KindGlucose }

func (r GlucoseReading) NaturalKey() string {
	return keyOf(keyTime(r.ReadingTime), keyFloat(r.Value), r.Source)
}

func (r GlucoseReading) EffectiveTime() time.Time { return r.ReadingTime }

func keyOf(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

func keyTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func keyFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
