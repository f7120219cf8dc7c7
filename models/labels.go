package models

// Value legends for the categorical features.
var (
	ChestPainLabels   = []string{"Typical Angina", "Atypical Angina", "Non-Anginal Pain", "Asymptomatic"}
	RestingECGLabels  = []string{"Normal", "ST-T Wave Abnormality", "Left Ventricular Hypertrophy"}
	STSlopeLabels     = []string{"Upsloping", "Flat", "Downsloping"}
	ThalassemiaLabels = []string{"Normal", "Fixed Defect", "Reversible Defect"} // codes 1-3
)

func label(labels []string, i int) string {
	if i < 0 || i >= len(labels) {
		return "Unknown"
	}
	return labels[i]
}

func yesNo(v int) string {
	if v == 1 {
		return "Yes"
	}
	return "No"
}

func (p PatientFeatureVector) SexLabel() string {
	if p.Sex == 1 {
		return "Male"
	}
	return "Female"
}

// SexCode is the one-letter code used in report filenames.
func (p PatientFeatureVector) SexCode() string {
	if p.Sex == 1 {
		return "M"
	}
	return "F"
}

func (p PatientFeatureVector) ChestPainLabel() string {
	return label(ChestPainLabels, p.ChestPainType)
}

func (p PatientFeatureVector) FastingBloodSugarLabel() string {
	if p.FastingBloodSugarHigh == 1 {
		return "> 120 mg/dl"
	}
	return "<= 120 mg/dl"
}

func (p PatientFeatureVector) RestingECGLabel() string {
	return label(RestingECGLabels, p.RestingECG)
}

func (p PatientFeatureVector) ExerciseAnginaLabel() string {
	return yesNo(p.ExerciseInducedAngina)
}

func (p PatientFeatureVector) STSlopeLabel() string {
	return label(STSlopeLabels, p.STSlope)
}

func (p PatientFeatureVector) ThalassemiaLabel() string {
	return label(ThalassemiaLabels, p.ThalassemiaType-1)
}
