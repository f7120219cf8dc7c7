// Package fallback produces the fixed assessment used when the inference
// service cannot deliver a valid one.
package fallback

import "github.com/Alias1177/Cardeon/models"

const (
	Category    = models.RiskModerate
	Probability = 45.0
	Summary     = "Prediction driven by high cholesterol and chest pain symptoms, slightly mitigated by good heart rate capacity."
)

var explanations = [...]models.FeatureContribution{
	{Feature: "Cholesterol", Impact: 8.2, Description: "Serum cholesterol above 200mg/dL strongly contributes to plaque formation."},
	{Feature: "Max Heart Rate", Impact: -4.5, Description: "High heart rate capacity (150+) is a protective indicator in this context."},
	{Feature: "Chest Pain", Impact: 6.1, Description: "Type 1 (Atypical Angina) increases the statistical likelihood of CAD."},
	{Feature: "Oldpeak", Impact: 3.4, Description: "ST depression indicates possible ischemia during stress."},
	{Feature: "Age", Impact: 2.1, Description: "Advancing age naturally increases cardiovascular risk baseline."},
	{Feature: "Major Vessels", Impact: 7.8, Description: "Number of major vessels (ca) visible by flourosopy is a high-weight feature."},
}

// Synthesize returns the canonical fallback result. It ignores the patient
// entirely and every call returns a fresh copy.
func Synthesize() *models.PredictionResult {
	return &models.PredictionResult{
		RiskCategory:     Category,
		Probability:      Probability,
		ShapExplanations: append([]models.FeatureContribution(nil), explanations[:]...),
		Summary:          Summary,
		Provenance:       models.ProvenanceFallback,
	}
}
