package inference

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Alias1177/Cardeon/models"
)

type fakeGenerator struct {
	text  string
	err   error
	panic bool
	calls int
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req models.InferenceRequest) (string, error) {
	f.calls++
	if f.panic {
		panic("backend exploded")
	}
	return f.text, f.err
}

const validResponse = `{
	"riskCategory": "Low",
	"probability": 82.3,
	"shapExplanations": [
		{"feature": "Cholesterol", "impact": -3.2, "description": "Within normal range."},
		{"feature": "Max Heart Rate", "impact": -5.1, "description": "Good capacity."}
	],
	"summary": "Low risk overall."
}`

func TestPredictSuccess(t *testing.T) {
	gen := &fakeGenerator{text: validResponse}
	result, err := NewClient(gen).Predict(context.Background(), models.InferenceRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if result.RiskCategory != models.RiskLow || result.Probability != 82.3 {
		t.Errorf("result = %+v, want Low / 82.3", result)
	}
	if len(result.ShapExplanations) != 2 || result.ShapExplanations[1].Feature != "Max Heart Rate" {
		t.Errorf("explanations = %+v", result.ShapExplanations)
	}
	if result.Summary != "Low risk overall." {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.Provenance != models.ProvenanceModel {
		t.Errorf("provenance = %q, want model", result.Provenance)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1", gen.calls)
	}
}

func TestPredictCodeFence(t *testing.T) {
	gen := &fakeGenerator{text: "Here you go:\n```json\n" + validResponse + "\n```"}
	if _, err := NewClient(gen).Predict(context.Background(), models.InferenceRequest{}); err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
}

func TestPredictContractViolations(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantReason string
	}{
		{
			name:       "missing shapExplanations",
			text:       `{"riskCategory":"Low","probability":82.3,"summary":"s"}`,
			wantReason: `missing field "shapExplanations"`,
		},
		{
			name:       "non-numeric impact",
			text:       `{"riskCategory":"Low","probability":82.3,"summary":"s","shapExplanations":[{"feature":"Age","impact":"high","description":"d"}]}`,
			wantReason: "shapExplanations[0]",
		},
		{
			name:       "missing entry key",
			text:       `{"riskCategory":"Low","probability":82.3,"summary":"s","shapExplanations":[{"feature":"Age","impact":1}]}`,
			wantReason: "shapExplanations[0]",
		},
		{
			name:       "unknown category",
			text:       `{"riskCategory":"Severe","probability":82.3,"summary":"s","shapExplanations":[{"feature":"Age","impact":1,"description":"d"}]}`,
			wantReason: "out of range",
		},
		{
			name:       "probability above 100",
			text:       `{"riskCategory":"High","probability":120,"summary":"s","shapExplanations":[{"feature":"Age","impact":1,"description":"d"}]}`,
			wantReason: "out of range",
		},
		{
			name:       "probability as string",
			text:       `{"riskCategory":"High","probability":"80","summary":"s","shapExplanations":[{"feature":"Age","impact":1,"description":"d"}]}`,
			wantReason: "probability must be a number",
		},
		{
			name:       "null summary",
			text:       `{"riskCategory":"High","probability":80,"summary":null,"shapExplanations":[{"feature":"Age","impact":1,"description":"d"}]}`,
			wantReason: `missing field "summary"`,
		},
		{
			name:       "empty explanations",
			text:       `{"riskCategory":"High","probability":80,"summary":"s","shapExplanations":[]}`,
			wantReason: "out of range",
		},
		{
			name:       "not json",
			text:       `the patient looks fine`,
			wantReason: "not a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewClient(&fakeGenerator{text: tt.text}).Predict(context.Background(), models.InferenceRequest{})
			if result != nil {
				t.Errorf("Predict() returned partial result %+v", result)
			}
			var cv *ContractViolation
			if !errors.As(err, &cv) {
				t.Fatalf("Predict() error = %v, want *ContractViolation", err)
			}
			if !strings.Contains(cv.Error(), tt.wantReason) {
				t.Errorf("error = %q, want containing %q", cv.Error(), tt.wantReason)
			}
		})
	}
}

func TestPredictTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := NewClient(&fakeGenerator{err: cause}).Predict(context.Background(), models.InferenceRequest{})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Predict() error = %v, want *TransportError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("TransportError does not unwrap to the cause")
	}
}

func TestPredictRecoversPanic(t *testing.T) {
	_, err := NewClient(&fakeGenerator{panic: true}).Predict(context.Background(), models.InferenceRequest{})

	var te *TransportError
	if !errors.As(err, &te) || !strings.Contains(err.Error(), "backend exploded") {
		t.Fatalf("Predict() error = %v, want *TransportError from panic", err)
	}
}

func TestNewGenerator(t *testing.T) {
	transport := NewTransport(&models.Config{RequestTimeout: 5, RequestsPerSec: 1})

	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "gemini", wantName: "gemini/gemini-3-flash-preview"},
		{provider: "openai", wantName: "openai/gpt-4o-mini"},
		{provider: "claude", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			gen, err := NewGenerator(&models.Config{InferenceProvider: tt.provider}, transport)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownProvider) {
					t.Errorf("NewGenerator() error = %v, want ErrUnknownProvider", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGenerator() error = %v", err)
			}
			if gen.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", gen.Name(), tt.wantName)
			}
		})
	}
}
