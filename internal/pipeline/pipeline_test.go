package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alias1177/Cardeon/internal/inference"
	"github.com/Alias1177/Cardeon/models"
)

type fakeGenerator struct {
	text    string
	err     error
	calls   atomic.Int32
	release chan struct{}
	ctxErr  error
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req models.InferenceRequest) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.ctxErr = ctx.Err()
	return f.text, f.err
}

const successResponse = `{
	"riskCategory": "Low",
	"probability": 82.3,
	"shapExplanations": [{"feature": "Max Heart Rate", "impact": -6.0, "description": "Strong capacity."}],
	"summary": "Low risk."
}`

func patient() models.PatientFeatureVector {
	return models.PatientFeatureVector{
		Age: 52, Sex: 1, ChestPainType: 0, RestingBloodPressure: 125, SerumCholesterol: 212,
		FastingBloodSugarHigh: 0, RestingECG: 1, MaxHeartRate: 168, ExerciseInducedAngina: 0,
		STDepression: 1.0, STSlope: 2, MajorVesselCount: 2, ThalassemiaType: 3,
	}
}

func newPipeline(gen *fakeGenerator) *Pipeline {
	return New(inference.NewClient(gen), time.Second)
}

func TestPredictSuccess(t *testing.T) {
	gen := &fakeGenerator{text: successResponse}
	result, err := newPipeline(gen).Predict(context.Background(), patient())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if result.RiskCategory != models.RiskLow || result.Probability != 82.3 {
		t.Errorf("result = %s / %v, want Low / 82.3", result.RiskCategory, result.Probability)
	}
	if result.Provenance != models.ProvenanceModel {
		t.Errorf("provenance = %q", result.Provenance)
	}
	if err := result.Validate(); err != nil {
		t.Errorf("result invalid: %v", err)
	}
}

func TestPredictFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "transport error", gen: &fakeGenerator{err: errors.New("timeout")}},
		{name: "contract violation", gen: &fakeGenerator{text: `{"riskCategory":"Low"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newPipeline(tt.gen).Predict(context.Background(), patient())
			if err != nil {
				t.Fatalf("Predict() error = %v, want nil", err)
			}
			if result.RiskCategory != models.RiskModerate || result.Probability != 45 {
				t.Errorf("result = %s / %v, want Moderate / 45", result.RiskCategory, result.Probability)
			}
			if len(result.ShapExplanations) != 6 {
				t.Fatalf("len(explanations) = %d, want 6", len(result.ShapExplanations))
			}
			first := result.ShapExplanations[0]
			if first.Feature != "Cholesterol" || first.Impact != 8.2 {
				t.Errorf("first explanation = %+v", first)
			}
			if result.Provenance != models.ProvenanceFallback {
				t.Errorf("provenance = %q", result.Provenance)
			}
		})
	}
}

func TestFallbackIndependentOfInput(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("down")}
	p := newPipeline(gen)

	other := patient()
	other.Age, other.Sex, other.SerumCholesterol = 29, 0, 150

	a, _ := p.Predict(context.Background(), patient())
	b, _ := p.Predict(context.Background(), other)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("fallback differs across inputs:\n%+v\n%+v", a, b)
	}
}

func TestPredictValidationSkipsInference(t *testing.T) {
	gen := &fakeGenerator{text: successResponse}
	p := newPipeline(gen)

	bad := patient()
	bad.ChestPainType = 7
	_, err := p.Predict(context.Background(), bad)

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Predict() error = %v, want *ValidationError", err)
	}
	if names := verr.FieldNames(); len(names) != 1 || names[0] != "chestPainType" {
		t.Errorf("fields = %v", names)
	}

	if _, err := p.PredictRaw(context.Background(), map[string]any{"age": 50}); !errors.As(err, &verr) {
		t.Errorf("PredictRaw() error = %v, want *ValidationError", err)
	}
	if _, err := p.PredictJSON(context.Background(), []byte(`[1,2]`)); !errors.As(err, &verr) {
		t.Errorf("PredictJSON() error = %v, want *ValidationError", err)
	}
	huge := []byte(`{"age":1e19,"sex":1,"cp":0,"trestbps":125,"chol":212,"fbs":0,"restecg":1,
		"thalach":168,"exang":0,"oldpeak":1.0,"slope":2,"ca":2,"thal":3}`)
	if _, err := p.PredictJSON(context.Background(), huge); !errors.As(err, &verr) {
		t.Errorf("PredictJSON(age 1e19) error = %v, want *ValidationError", err)
	}

	if got := gen.calls.Load(); got != 0 {
		t.Errorf("inference calls = %d, want 0", got)
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %s, want idle", p.State())
	}
}

func TestPredictJSON(t *testing.T) {
	gen := &fakeGenerator{text: successResponse}
	body := []byte(`{"age":52,"sex":1,"cp":0,"trestbps":125,"chol":212,"fbs":0,"restecg":1,
		"thalach":168,"exang":0,"oldpeak":1.0,"slope":2,"ca":2,"thal":3}`)

	result, err := newPipeline(gen).PredictJSON(context.Background(), body)
	if err != nil {
		t.Fatalf("PredictJSON() error = %v", err)
	}
	if result.Probability != 82.3 || gen.calls.Load() != 1 {
		t.Errorf("result = %+v, calls = %d", result, gen.calls.Load())
	}
}

func TestPredictBusy(t *testing.T) {
	gen := &fakeGenerator{text: successResponse, release: make(chan struct{})}
	p := newPipeline(gen)

	done := make(chan error, 1)
	go func() {
		_, err := p.Predict(context.Background(), patient())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for p.State() != StateRequesting {
		if time.Now().After(deadline) {
			t.Fatal("pipeline never reached requesting")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := p.Predict(context.Background(), patient()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Predict() error = %v, want ErrBusy", err)
	}

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("first Predict() error = %v", err)
	}
	if p.State() != StateIdle {
		t.Errorf("State() = %s, want idle", p.State())
	}
	if got := gen.calls.Load(); got != 1 {
		t.Errorf("inference calls = %d, want 1", got)
	}
}

func TestPredictIgnoresCallerCancellation(t *testing.T) {
	gen := &fakeGenerator{text: successResponse}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newPipeline(gen).Predict(ctx, patient())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if gen.ctxErr != nil {
		t.Errorf("request context error = %v, want nil", gen.ctxErr)
	}
	if result.Provenance != models.ProvenanceModel {
		t.Errorf("provenance = %q", result.Provenance)
	}
}
