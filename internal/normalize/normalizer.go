package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kholm/healthpipe/internal/record"
	"github.com/kholm/healthpipe/internal/source"
)

// Default source labels applied when the export omits them.
const (
	defaultAppleSource  = "Apple Health"
	defaultFoodSource   = "LoseIt"
	defaultScaleSource  = "SmartScale"
	defaultScaleDevice  = "DefaultScale"
	defaultGlucoseLabel = "GlucoseMeter"
)

// LoseItMapping renames the food-log export headers. Chains cover the
// header spellings observed across export versions.
var LoseItMapping = Mapping{
	Source: source.LoseIt,
	Fields: []FieldMap{
		{Canonical: "log_date", From: []string{"date", "log_date"}, Required: true},
		{Canonical: "food_item", From: []string{"name", "food_item"}, Required: true},
		{Canonical: "meal", From: []string{"meal", "meal_type"}},
		{Canonical: "calories", From: []string{"calories", "calories_consumed"}},
		{Canonical: "fat_g", From: []string{"fat_g", "fat"}},
		{Canonical: "protein_g", From: []string{"protein_g", "protein"}},
		{Canonical: "carbs_g", From: []string{"carbohydrates_g", "carbs_g"}},
		{Canonical: "sugar_g", From: []string{"sugars_g", "sugar_g"}},
		{Canonical: "fiber_g", From: []string{"fiber_g", "fiber"}},
		{Canonical: "sodium_mg", From: []string{"sodium_mg", "sodium"}},
	},
}

// ScaleMapping renames the smart-scale export headers. Weight and muscle
// mass arrive in pounds under the _lb spellings and already converted under
// the _kg ones; the builder applies the conversion factor exactly once.
var ScaleMapping = Mapping{
	Source: source.Scale,
	Fields: []FieldMap{
		{Canonical: "date", From: []string{"date", "timestamp", "measurement_date"}, Required: true},
		{Canonical: "time", From: []string{"time"}},
		{Canonical: "weight_lb", From: []string{"weight_lb", "weight_lbs", "weight"}},
		{Canonical: "weight_kg", From: []string{"weight_kg"}},
		{Canonical: "body_fat_percent", From: []string{"body_fat", "body_fat_percent", "body_fat_percentage"}},
		{Canonical: "bmi", From: []string{"bmi", "bmi_value"}},
		{Canonical: "muscle_mass_lb", From: []string{"muscle_mass_lb", "muscle_lb", "muscle_mass"}},
		{Canonical: "muscle_mass_kg", From: []string{"muscle_mass_kg"}},
		{Canonical: "metabolic_age", From: []string{"metabolic_age"}},
		{Canonical: "visceral_fat", From: []string{"visceral_fat_rating", "visceral_fat"}},
		{Canonical: "water_percent", From: []string{"water", "water_percent", "water_percentage"}},
		{Canonical: "device_id", From: []string{"device_id", "device"}},
		{Canonical: "source", From: []string{"source"}},
	},
}

// GlucoseMapping renames the glucose-meter export headers.
var GlucoseMapping = Mapping{
	Source: source.Glucose,
	Fields: []FieldMap{
		{Canonical: "date", From: []string{"date"}, Required: true},
		{Canonical: "time", From: []string{"time"}},
		{Canonical: "glucose_value", From: []string{"blood_glucose_mg_dl", "glucose_value", "blood_glucose"}, Required: true},
		{Canonical: "unit", From: []string{"unit", "glucose_unit"}},
		{Canonical: "meal_tag", From: []string{"meal_tag", "reading_context"}},
		{Canonical: "feeling_tag", From: []string{"feeling_tag"}},
		{Canonical: "note", From: []string{"note", "notes"}},
		{Canonical: "source", From: []string{"source"}},
	},
}

// mealRelationRe extracts the before/after meal relation from the free-text
// meal tag, e.g. "2h after lunch" or "Before Breakfast".
var mealRelationRe = regexp.MustCompile(`(?i)\b(before|after)\s+(\w+)`)

// Normalizer maps tagged raw records onto canonical records. It is
// deterministic and stateless beyond its configuration.
type Normalizer struct {
	loc *time.Location
}

// New constructs a Normalizer whose zone-less timestamps are interpreted in
// loc, and validates all mapping tables. A nil loc means UTC.
func New(loc *time.Location) (*Normalizer, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, m := range []Mapping{LoseItMapping, ScaleMapping, GlucoseMapping} {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("column mapping: %w", err)
		}
	}
	return &Normalizer{loc: loc}, nil
}

// Normalize maps one raw record to a canonical record or a classified
// rejection. It never returns an error that would abort the stream.
func (n *Normalizer) Normalize(raw source.Raw) record.Result {
	if raw.Err != "" {
		return record.Rejected(record.ReasonParseFailure, "", raw.Err, raw.Attrs)
	}

	switch raw.Kind {
	case record.KindQuantity:
		return n.quantity(raw.Attrs)
	case record.KindCategory:
		return n.category(raw.Attrs)
	case record.KindWorkout:
		return n.workout(raw.Attrs)
	case record.KindFood:
		return n.food(raw.Attrs)
	case record.KindBody:
		return n.body(raw.Attrs)
	case record.KindGlucose:
		return n.glucose(raw.Attrs)
	default:
		return record.Rejected(record.ReasonParseFailure, "", fmt.Sprintf("unknown record kind %v", raw.Kind), raw.Attrs)
	}
}

func (n *Normalizer) quantity(attrs map[string]string) record.Result {
	typ := attrs["type"]
	if typ == "" {
		return record.Rejected(record.ReasonMissingField, "type", "record type is empty", attrs)
	}

	start, end, rej := n.parseRange(attrs)
	if rej != nil {
		return record.Result{Reject: rej}
	}

	value := ParseFloat(attrs["value"])
	if value == nil {
		return record.Rejected(record.ReasonMissingField, "value", "no numeric value", attrs)
	}

	return record.Accepted(record.QuantityRecord{
		Type:       typ,
		StartTime:  start,
		EndTime:    end,
		Value:      *value,
		Unit:       attrs["unit"],
		SourceName: orDefault(attrs["sourceName"], defaultAppleSource),
	})
}

func (n *Normalizer) category(attrs map[string]string) record.Result {
	typ := attrs["type"]
	if typ == "" {
		return record.Rejected(record.ReasonMissingField, "type", "record type is empty", attrs)
	}

	start, end, rej := n.parseRange(attrs)
	if rej != nil {
		return record.Result{Reject: rej}
	}

	return record.Accepted(record.CategoryRecord{
		Type:       typ,
		StartTime:  start,
		EndTime:    end,
		Value:      attrs["value"],
		SourceName: orDefault(attrs["sourceName"], defaultAppleSource),
	})
}

func (n *Normalizer) workout(attrs map[string]string) record.Result {
	activity := attrs["workoutActivityType"]
	if activity == "" {
		return record.Rejected(record.ReasonMissingField, "workoutActivityType", "activity name is empty", attrs)
	}

	start, end, rej := n.parseRange(attrs)
	if rej != nil {
		return record.Result{Reject: rej}
	}

	// Apple reports duration in minutes or seconds depending on durationUnit;
	// fall back to the timestamp delta when the attribute is unusable.
	duration := ParseFloat(attrs["duration"])
	seconds := 0.0
	switch {
	case duration != nil && attrs["durationUnit"] == "min":
		seconds = *duration * 60
	case duration != nil:
		seconds = *duration
	default:
		seconds = end.Sub(start).Seconds()
	}

	return record.Accepted(record.WorkoutRecord{
		ActivityType:    activity,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: seconds,
		Distance:        ParseFloat(attrs["totalDistance"]),
		DistanceUnit:    attrs["totalDistanceUnit"],
		Energy:          ParseFloat(attrs["totalEnergyBurned"]),
		EnergyUnit:      attrs["totalEnergyBurnedUnit"],
		SourceName:      orDefault(attrs["sourceName"], defaultAppleSource),
	})
}

func (n *Normalizer) food(attrs map[string]string) record.Result {
	m := LoseItMapping
	if rej := requireMapped(m, attrs); rej != nil {
		return record.Result{Reject: rej}
	}

	item, _ := m.Lookup(attrs, "food_item")
	rawDate, _ := m.Lookup(attrs, "log_date")
	logDate, ok := ParseDate(rawDate, n.loc)
	if !ok {
		return record.Rejected(record.ReasonInvalidTimestamp, "log_date", fmt.Sprintf("unparsable date %q", rawDate), attrs)
	}

	meal, _ := m.Lookup(attrs, "meal")

	return record.Accepted(record.FoodLogEntry{
		LogDate:  logDate,
		MealType: meal,
		FoodItem: item,
		Calories: n.mappedFloat(m, attrs, "calories"),
		FatG:     n.mappedFloat(m, attrs, "fat_g"),
		ProteinG: n.mappedFloat(m, attrs, "protein_g"),
		CarbsG:   n.mappedFloat(m, attrs, "carbs_g"),
		SugarG:   n.mappedFloat(m, attrs, "sugar_g"),
		FiberG:   n.mappedFloat(m, attrs, "fiber_g"),
		SodiumMg: n.mappedFloat(m, attrs, "sodium_mg"),
		Source:   defaultFoodSource,
	})
}

func (n *Normalizer) body(attrs map[string]string) record.Result {
	m := ScaleMapping
	if rej := requireMapped(m, attrs); rej != nil {
		return record.Result{Reject: rej}
	}

	rawDate, _ := m.Lookup(attrs, "date")
	clock, _ := m.Lookup(attrs, "time")
	recordedAt, ok := CombineDateTime(rawDate, clock, n.loc)
	if !ok {
		return record.Rejected(record.ReasonInvalidTimestamp, "date", fmt.Sprintf("unparsable timestamp %q %q", rawDate, clock), attrs)
	}

	// Prefer an already-metric column; otherwise convert from pounds.
	// The factor is applied exactly once, here.
	weight := n.mappedFloat(m, attrs, "weight_kg")
	if weight == nil {
		if lb := n.mappedFloat(m, attrs, "weight_lb"); lb != nil {
			kg := lbToKg(*lb)
			weight = &kg
		}
	}
	muscle := n.mappedFloat(m, attrs, "muscle_mass_kg")
	if muscle == nil {
		if lb := n.mappedFloat(m, attrs, "muscle_mass_lb"); lb != nil {
			kg := lbToKg(*lb)
			muscle = &kg
		}
	}

	device, _ := m.Lookup(attrs, "device_id")
	src, _ := m.Lookup(attrs, "source")

	return record.Accepted(record.BodyMeasurement{
		RecordedAt:     recordedAt,
		WeightKg:       weight,
		BodyFatPercent: n.mappedFloat(m, attrs, "body_fat_percent"),
		BMI:            n.mappedFloat(m, attrs, "bmi"),
		MuscleMassKg:   muscle,
		MetabolicAge:   n.mappedFloat(m, attrs, "metabolic_age"),
		VisceralFat:    n.mappedFloat(m, attrs, "visceral_fat"),
		WaterPercent:   n.mappedFloat(m, attrs, "water_percent"),
		DeviceID:       orDefault(device, defaultScaleDevice),
		Source:         orDefault(src, defaultScaleSource),
	})
}

func (n *Normalizer) glucose(attrs map[string]string) record.Result {
	m := GlucoseMapping
	if rej := requireMapped(m, attrs); rej != nil {
		return record.Result{Reject: rej}
	}

	rawDate, _ := m.Lookup(attrs, "date")
	clock, _ := m.Lookup(attrs, "time")
	readingTime, ok := CombineDateTime(rawDate, clock, n.loc)
	if !ok {
		return record.Rejected(record.ReasonInvalidTimestamp, "date", fmt.Sprintf("unparsable timestamp %q %q", rawDate, clock), attrs)
	}

	value := n.mappedFloat(m, attrs, "glucose_value")
	if value == nil {
		return record.Rejected(record.ReasonMissingField, "glucose_value", "no numeric glucose value", attrs)
	}

	mealTag, _ := m.Lookup(attrs, "meal_tag")
	relation := ""
	if match := mealRelationRe.FindStringSubmatch(mealTag); match != nil {
		relation = strings.ToLower(match[1])
	}

	unit, _ := m.Lookup(attrs, "unit")
	feeling, _ := m.Lookup(attrs, "feeling_tag")
	note, _ := m.Lookup(attrs, "note")
	src, _ := m.Lookup(attrs, "source")

	return record.Accepted(record.GlucoseReading{
		ReadingTime:    readingTime,
		Value:          *value,
		Unit:           orDefault(unit, "mg/dL"),
		ReadingContext: mealTag,
		MealRelation:   relation,
		FeelingTag:     feeling,
		Note:           note,
		Source:         orDefault(src, defaultGlucoseLabel),
	})
}

// parseRange parses the startDate/endDate pair shared by all Apple kinds.
func (n *Normalizer) parseRange(attrs map[string]string) (start, end time.Time, rej *record.Rejection) {
	start, okStart := ParseTime(attrs["startDate"], n.loc)
	end, okEnd := ParseTime(attrs["endDate"], n.loc)
	if !okStart || !okEnd {
		return time.Time{}, time.Time{}, &record.Rejection{
			Reason: record.ReasonInvalidTimestamp,
			Field:  "startDate/endDate",
			Detail: fmt.Sprintf("unparsable range %q .. %q", attrs["startDate"], attrs["endDate"]),
			Raw:    attrs,
		}
	}
	return start, end, nil
}

// requireMapped rejects when a required mapped field has no value. Absent
// date fields classify as InvalidTimestamp, everything else as MissingField.
func requireMapped(m Mapping, attrs map[string]string) *record.Rejection {
	for _, canonical := range m.Missing(attrs) {
		reason := record.ReasonMissingField
		switch canonical {
		case "date", "log_date":
			reason = record.ReasonInvalidTimestamp
		}
		return &record.Rejection{
			Reason: reason,
			Field:  canonical,
			Detail: canonical + " is empty",
			Raw:    attrs,
		}
	}
	return nil
}

func (n *Normalizer) mappedFloat(m Mapping, attrs map[string]string, canonical string) *float64 {
	v, ok := m.Lookup(attrs, canonical)
	if !ok {
		return nil
	}
	return ParseFloat(v)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
