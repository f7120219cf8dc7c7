// Package prompt turns a patient feature vector into a structured-output
// inference request. Building is pure and cannot fail for a valid vector.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Alias1177/Cardeon/models"
)

const (
	SchemaName = "cardiovascular_risk_assessment"

	// ExplanationCount is how many contributions the model is asked for.
	ExplanationCount = 6
)

const instructions = `Act as a professional cardiovascular XGBoost model: a binary classifier for the presence of heart disease, trained on the UCI Heart Disease (Cleveland) dataset and explained with SHAP values.
Analyze the following clinical patient data (UCI Heart Disease Dataset format):`

const outputSpec = `Respond with a JSON object that has exactly these four top-level fields:
1. riskCategory: one of "Low", "Moderate" or "High"
2. probability: confidence percentage, a number from 0 to 100
3. shapExplanations: array of the %d most significant objects { "feature": string, "impact": number (contribution scale -10 to 10, positive raises risk), "description": string }
4. summary: a short clinical summary of why this prediction was made

Always respond with valid JSON only, no markdown fencing and no additional fields.`

// Build creates the inference request for one patient.
func Build(p models.PatientFeatureVector) models.InferenceRequest {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n")

	for _, line := range featureLines(p) {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(outputSpec, ExplanationCount))

	return models.InferenceRequest{
		SchemaName: SchemaName,
		Prompt:     sb.String(),
		Schema:     ResponseSchema(),
	}
}

func featureLines(p models.PatientFeatureVector) []string {
	return []string{
		fmt.Sprintf("Age (age): %d years", p.Age),
		fmt.Sprintf("Sex (sex): %d (1=M, 0=F)", p.Sex),
		fmt.Sprintf("Chest Pain Type (cp): %d (%s)", p.ChestPainType, legend(models.ChestPainLabels, 0)),
		fmt.Sprintf("Resting Blood Pressure (trestbps): %s mm Hg", num(p.RestingBloodPressure)),
		fmt.Sprintf("Serum Cholesterol (chol): %s mg/dl", num(p.SerumCholesterol)),
		fmt.Sprintf("Fasting Blood Sugar > 120 mg/dl (fbs): %d (1=true, 0=false)", p.FastingBloodSugarHigh),
		fmt.Sprintf("Resting ECG (restecg): %d (%s)", p.RestingECG, legend(models.RestingECGLabels, 0)),
		fmt.Sprintf("Max Heart Rate Achieved (thalach): %s bpm", num(p.MaxHeartRate)),
		fmt.Sprintf("Exercise Induced Angina (exang): %d (1=yes, 0=no)", p.ExerciseInducedAngina),
		fmt.Sprintf("ST Depression (oldpeak): %.1f", p.STDepression),
		fmt.Sprintf("ST Segment Slope (slope): %d (%s)", p.STSlope, legend(models.STSlopeLabels, 0)),
		fmt.Sprintf("Major Vessels Colored by Fluoroscopy (ca): %d (0-3)", p.MajorVesselCount),
		fmt.Sprintf("Thalassemia (thal): %d (%s)", p.ThalassemiaType, legend(models.ThalassemiaLabels, 1)),
	}
}

// legend renders "0: a, 1: b, ..." starting at the given code.
func legend(labels []string, first int) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%d: %s", first+i, l)
	}
	return strings.Join(parts, ", ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ResponseSchema is the output contract every backend must enforce.
func ResponseSchema() *models.Schema {
	categories := make([]string, len(models.RiskCategories))
	for i, c := range models.RiskCategories {
		categories[i] = string(c)
	}

	return &models.Schema{
		Type: models.SchemaObject,
		Properties: map[string]*models.Schema{
			"riskCategory": {
				Type: models.SchemaString,
				Enum: categories,
			},
			"probability": {
				Type:        models.SchemaNumber,
				Description: "Confidence percentage from 0 to 100",
			},
			"shapExplanations": {
				Type: models.SchemaArray,
				Items: &models.Schema{
					Type: models.SchemaObject,
					Properties: map[string]*models.Schema{
						"feature":     {Type: models.SchemaString},
						"impact":      {Type: models.SchemaNumber, Description: "Contribution on a -10 to 10 scale"},
						"description": {Type: models.SchemaString},
					},
					Required: []string{"feature", "impact", "description"},
				},
			},
			"summary": {Type: models.SchemaString},
		},
		Required: []string{"riskCategory", "probability", "shapExplanations", "summary"},
	}
}
