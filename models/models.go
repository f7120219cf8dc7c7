package models

import (
	"time"
)

type Config struct {
	InferenceProvider string `env:"INFERENCE_PROVIDER" envDefault:"gemini"` // gemini or openai
	GeminiAPIKey      string `env:"GEMINI_API_KEY" envDefault:"-"`
	GeminiModel       string `env:"GEMINI_MODEL" envDefault:"gemini-3-flash-preview"`
	GeminiEndpoint    string `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY" envDefault:"-"`
	OpenAIModel       string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL" envDefault:""`
	RequestTimeout    int    `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	MaxRetries        int    `env:"INFERENCE_MAX_RETRIES" envDefault:"0"`
	RequestsPerSec    int    `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr          string `env:"HTTP_ADDR" envDefault:":8080"`
	ReportDir         string `env:"REPORT_DIR" envDefault:"."`
	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN" envDefault:"-"`
	EnableDB          bool   `env:"ENABLE_DB" envDefault:"false"`
	DBHost            string `env:"DB_HOST" envDefault:"localhost"`
	DBPort            string `env:"DB_PORT" envDefault:"5432"`
	DBUser            string `env:"DB_USER" envDefault:"postgres"`
	DBPassword        string `env:"DB_PASSWORD" envDefault:""`
	DBName            string `env:"DB_NAME" envDefault:"cardeon"`
	DBSSLMode         string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Timeout returns RequestTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// PatientFeatureVector is one clinical record in UCI Heart Disease layout.
// It is passed by value so a submitted vector cannot change under the pipeline.
type PatientFeatureVector struct {
	Age                   int     `json:"age"`
	Sex                   int     `json:"sex"`           // 0: female, 1: male
	ChestPainType         int     `json:"chestPainType"` // 0-3
	RestingBloodPressure  float64 `json:"restingBloodPressure"`
	SerumCholesterol      float64 `json:"serumCholesterol"`
	FastingBloodSugarHigh int     `json:"fastingBloodSugarHigh"` // > 120 mg/dl
	RestingECG            int     `json:"restingEcg"`            // 0-2
	MaxHeartRate          float64 `json:"maxHeartRate"`
	ExerciseInducedAngina int     `json:"exerciseInducedAngina"`
	STDepression          float64 `json:"stDepression"`     // oldpeak
	STSlope               int     `json:"stSlope"`          // 0-2
	MajorVesselCount      int     `json:"majorVesselCount"` // 0-3, fluoroscopy
	ThalassemiaType       int     `json:"thalassemiaType"`  // 1-3
}

// RiskCategory is the coarse outcome of an assessment.
type RiskCategory string

const (
	RiskLow      RiskCategory = "Low"
	RiskModerate RiskCategory = "Moderate"
	RiskHigh     RiskCategory = "High"
)

// RiskCategories lists the allowed categories in schema order.
var RiskCategories = []RiskCategory{RiskLow, RiskModerate, RiskHigh}

func (c RiskCategory) Valid() bool {
	for _, rc := range RiskCategories {
		if c == rc {
			return true
		}
	}
	return false
}

// Provenance tells which path produced a PredictionResult.
type Provenance string

const (
	ProvenanceModel    Provenance = "model"
	ProvenanceFallback Provenance = "fallback"
)

// FeatureContribution is a single feature's signed influence on the outcome.
type FeatureContribution struct {
	Feature     string  `json:"feature"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// PredictionResult stores the outcome of a prediction
type PredictionResult struct {
	RiskCategory     RiskCategory          `json:"riskCategory"`
	Probability      float64               `json:"probability"` // confidence, 0-100
	ShapExplanations []FeatureContribution `json:"shapExplanations"`
	Summary          string                `json:"summary"`
	Provenance       Provenance            `json:"provenance"`
}

// Clone returns a deep copy so callers never share the explanation slice.
func (r PredictionResult) Clone() PredictionResult {
	out := r
	out.ShapExplanations = append([]FeatureContribution(nil), r.ShapExplanations...)
	return out
}

// InferenceRequest is what a Generator sends to the external service.
type InferenceRequest struct {
	SchemaName string
	Prompt     string
	Schema     *Schema
}
