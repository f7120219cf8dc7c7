package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FieldError names one offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when a feature vector is malformed or out of range.
// Fields are reported in canonical field order.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid patient data: " + strings.Join(parts, "; ")
}

// FieldNames returns the names of all offending fields.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// MaxAge caps age in years; it also keeps the value inside int range.
const MaxAge = 150

type bound int

const (
	boundRange       bound = iota // min <= v <= max
	boundPositive                 // v > 0
	boundNonNegative              // v >= 0
)

type fieldSpec struct {
	name    string
	alias   string // UCI column name
	integer bool
	bound   bound
	min     float64
	max     float64
	get     func(*PatientFeatureVector) float64
	set     func(*PatientFeatureVector, float64)
}

var fieldSpecs = []fieldSpec{
	{name: "age", alias: "age", integer: true, bound: boundRange, min: 1, max: MaxAge,
		get: func(p *PatientFeatureVector) float64 { return float64(p.Age) },
		set: func(p *PatientFeatureVector, v float64) { p.Age = int(v) }},
	{name: "sex", alias: "sex", integer: true, bound: boundRange, min: 0, max: 1,
		get: func(p *PatientFeatureVector) float64 { return float64(p.Sex) },
		set: func(p *PatientFeatureVector, v float64) { p.Sex = int(v) }},
	{name: "chestPainType", alias: "cp", integer: true, bound: boundRange, min: 0, max: 3,
		get: func(p *PatientFeatureVector) float64 { return float64(p.ChestPainType) },
		set: func(p *PatientFeatureVector, v float64) { p.ChestPainType = int(v) }},
	{name: "restingBloodPressure", alias: "trestbps", bound: boundPositive,
		get: func(p *PatientFeatureVector) float64 { return p.RestingBloodPressure },
		set: func(p *PatientFeatureVector, v float64) { p.RestingBloodPressure = v }},
	{name: "serumCholesterol", alias: "chol", bound: boundPositive,
		get: func(p *PatientFeatureVector) float64 { return p.SerumCholesterol },
		set: func(p *PatientFeatureVector, v float64) { p.SerumCholesterol = v }},
	{name: "fastingBloodSugarHigh", alias: "fbs", integer: true, bound: boundRange, min: 0, max: 1,
		get: func(p *PatientFeatureVector) float64 { return float64(p.FastingBloodSugarHigh) },
		set: func(p *PatientFeatureVector, v float64) { p.FastingBloodSugarHigh = int(v) }},
	{name: "restingEcg", alias: "restecg", integer: true, bound: boundRange, min: 0, max: 2,
		get: func(p *PatientFeatureVector) float64 { return float64(p.RestingECG) },
		set: func(p *PatientFeatureVector, v float64) { p.RestingECG = int(v) }},
	{name: "maxHeartRate", alias: "thalach", bound: boundPositive,
		get: func(p *PatientFeatureVector) float64 { return p.MaxHeartRate },
		set: func(p *PatientFeatureVector, v float64) { p.MaxHeartRate = v }},
	{name: "exerciseInducedAngina", alias: "exang", integer: true, bound: boundRange, min: 0, max: 1,
		get: func(p *PatientFeatureVector) float64 { return float64(p.ExerciseInducedAngina) },
		set: func(p *PatientFeatureVector, v float64) { p.ExerciseInducedAngina = int(v) }},
	{name: "stDepression", alias: "oldpeak", bound: boundNonNegative,
		get: func(p *PatientFeatureVector) float64 { return p.STDepression },
		set: func(p *PatientFeatureVector, v float64) { p.STDepression = v }},
	{name: "stSlope", alias: "slope", integer: true, bound: boundRange, min: 0, max: 2,
		get: func(p *PatientFeatureVector) float64 { return float64(p.STSlope) },
		set: func(p *PatientFeatureVector, v float64) { p.STSlope = int(v) }},
	{name: "majorVesselCount", alias: "ca", integer: true, bound: boundRange, min: 0, max: 3,
		get: func(p *PatientFeatureVector) float64 { return float64(p.MajorVesselCount) },
		set: func(p *PatientFeatureVector, v float64) { p.MajorVesselCount = int(v) }},
	{name: "thalassemiaType", alias: "thal", integer: true, bound: boundRange, min: 1, max: 3,
		get: func(p *PatientFeatureVector) float64 { return float64(p.ThalassemiaType) },
		set: func(p *PatientFeatureVector, v float64) { p.ThalassemiaType = int(v) }},
}

// FieldNames lists the 13 feature names in canonical order.
func FieldNames() []string {
	names := make([]string, len(fieldSpecs))
	for i, s := range fieldSpecs {
		names[i] = s.name
	}
	return names
}

func (s fieldSpec) check(v float64) string {
	if s.integer && math.Trunc(v) != v {
		return "must be an integer"
	}
	switch s.bound {
	case boundPositive:
		if v <= 0 {
			return "must be positive"
		}
	case boundNonNegative:
		if v < 0 {
			return "must not be negative"
		}
	case boundRange:
		if v < s.min || v > s.max {
			return fmt.Sprintf("must be between %g and %g", s.min, s.max)
		}
	}
	return ""
}

// Validate checks the range constraints of an already typed vector.
func (p PatientFeatureVector) Validate() error {
	var errs []FieldError
	for _, s := range fieldSpecs {
		if reason := s.check(s.get(&p)); reason != "" {
			errs = append(errs, FieldError{Field: s.name, Reason: reason})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ParsePatient builds a vector from decoded JSON-like input. Every field must
// be present exactly once, under its name or its UCI alias, and be numeric.
func ParsePatient(raw map[string]any) (PatientFeatureVector, error) {
	var (
		p    PatientFeatureVector
		errs []FieldError
	)

	for _, s := range fieldSpecs {
		val, hasName := raw[s.name]
		aliasVal, hasAlias := raw[s.alias]
		if s.alias == s.name {
			hasAlias = false
		}

		switch {
		case hasName && hasAlias:
			errs = append(errs, FieldError{Field: s.name, Reason: fmt.Sprintf("supplied both as %q and %q", s.name, s.alias)})
			continue
		case hasAlias:
			val = aliasVal
		case !hasName:
			errs = append(errs, FieldError{Field: s.name, Reason: "missing"})
			continue
		}

		f, ok := numeric(val)
		if !ok {
			errs = append(errs, FieldError{Field: s.name, Reason: "must be a number"})
			continue
		}
		if reason := s.check(f); reason != "" {
			errs = append(errs, FieldError{Field: s.name, Reason: reason})
			continue
		}
		s.set(&p, f)
	}

	if len(errs) > 0 {
		return PatientFeatureVector{}, &ValidationError{Fields: errs}
	}
	return p, nil
}

// ParsePatientJSON decodes a JSON object and validates it with ParsePatient.
func ParsePatientJSON(data []byte) (PatientFeatureVector, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return PatientFeatureVector{}, &ValidationError{Fields: []FieldError{{Field: "body", Reason: "must be a JSON object"}}}
	}
	return ParsePatient(raw)
}

func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Validate checks the invariants every PredictionResult must hold,
// regardless of whether it came from the model or the fallback.
func (r *PredictionResult) Validate() error {
	if !r.RiskCategory.Valid() {
		return fmt.Errorf("riskCategory %q is not one of Low, Moderate, High", r.RiskCategory)
	}
	if math.IsNaN(r.Probability) || r.Probability < 0 || r.Probability > 100 {
		return fmt.Errorf("probability %v outside [0, 100]", r.Probability)
	}
	if len(r.ShapExplanations) == 0 {
		return fmt.Errorf("shapExplanations is empty")
	}
	for i, c := range r.ShapExplanations {
		if strings.TrimSpace(c.Feature) == "" {
			return fmt.Errorf("shapExplanations[%d].feature is empty", i)
		}
		if math.IsNaN(c.Impact) || math.IsInf(c.Impact, 0) {
			return fmt.Errorf("shapExplanations[%d].impact is not finite", i)
		}
	}
	return nil
}
