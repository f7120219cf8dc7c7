package main

import (
	"fmt"
	"strings"

	"github.com/Alias1177/Cardeon/internal/report"
	"github.com/Alias1177/Cardeon/models"
)

const exampleCommand = "/predict age=52 sex=1 cp=0 trestbps=125 chol=212 fbs=0 restecg=1 thalach=168 exang=0 oldpeak=1.0 slope=2 ca=2 thal=3"

func predictUsage() string {
	return "Send all 13 clinical parameters as key=value pairs, for example:\n\n" + exampleCommand + "\n\nSee /help for what each parameter means."
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("CARDEON estimates cardiovascular risk from 13 clinical parameters.\n\n")
	sb.WriteString("Parameters (full name or UCI short name):\n")
	sb.WriteString("age: age in years\n")
	sb.WriteString("sex (sex): 0 female, 1 male\n")
	sb.WriteString("chestPainType (cp): " + legend(models.ChestPainLabels, 0) + "\n")
	sb.WriteString("restingBloodPressure (trestbps): mm Hg\n")
	sb.WriteString("serumCholesterol (chol): mg/dl\n")
	sb.WriteString("fastingBloodSugarHigh (fbs): 1 if > 120 mg/dl\n")
	sb.WriteString("restingEcg (restecg): " + legend(models.RestingECGLabels, 0) + "\n")
	sb.WriteString("maxHeartRate (thalach): bpm\n")
	sb.WriteString("exerciseInducedAngina (exang): 0 no, 1 yes\n")
	sb.WriteString("stDepression (oldpeak): ST depression\n")
	sb.WriteString("stSlope (slope): " + legend(models.STSlopeLabels, 0) + "\n")
	sb.WriteString("majorVesselCount (ca): 0-3\n")
	sb.WriteString("thalassemiaType (thal): " + legend(models.ThalassemiaLabels, 1) + "\n\n")
	sb.WriteString("Commands:\n")
	sb.WriteString("/predict key=value ... run an assessment\n")
	sb.WriteString("/report resend the last report\n")
	sb.WriteString("/checkup YYYY-MM-DD notes  record a checkup\n")
	sb.WriteString("/checkups list your checkups\n\n")
	sb.WriteString("Predictions are not a substitute for professional medical diagnosis.")
	return sb.String()
}

func legend(labels []string, first int) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%d %s", i+first, l)
	}
	return strings.Join(parts, ", ")
}

func formatValidation(verr *models.ValidationError) string {
	var sb strings.Builder
	sb.WriteString("Some parameters need fixing:\n")
	for _, f := range verr.Fields {
		sb.WriteString("• " + f.Field + ": " + f.Reason + "\n")
	}
	return sb.String()
}

func formatResult(r *models.PredictionResult) string {
	var sb strings.Builder

	if r.RiskCategory == models.RiskLow {
		sb.WriteString("✅ No Heart Disease Detected\n")
	} else {
		sb.WriteString("⚠️ Heart Disease Risk Detected\n")
	}
	sb.WriteString(fmt.Sprintf("Risk category: %s\nConfidence: %.1f%%\n\n", r.RiskCategory, r.Probability))

	sb.WriteString("Key contributing factors:\n")
	for _, c := range r.ShapExplanations {
		sb.WriteString(fmt.Sprintf("• %s %s: %s\n", c.Feature, report.ImpactLabel(c.Impact), c.Description))
	}

	if r.Summary != "" {
		sb.WriteString("\n" + r.Summary + "\n")
	}
	if r.Provenance == models.ProvenanceFallback {
		sb.WriteString("\nThe inference service was unavailable, so this is the reference assessment rather than a patient-specific prediction.\n")
	}
	return sb.String()
}

func formatCheckups(checkups []models.Checkup) string {
	if len(checkups) == 0 {
		return "No checkups recorded yet. Add one with /checkup YYYY-MM-DD notes"
	}

	var sb strings.Builder
	sb.WriteString("Your checkups:\n")
	for _, c := range checkups {
		line := "• " + c.Date.Format(models.CheckupDateLayout)
		if c.Notes != "" {
			line += ": " + c.Notes
		}
		if c.DocumentName != "" {
			line += " [" + c.DocumentName + "]"
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
