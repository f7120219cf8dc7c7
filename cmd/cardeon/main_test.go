package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/Cardeon/internal/inference"
	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/internal/report"
	"github.com/Alias1177/Cardeon/models"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req models.InferenceRequest) (string, error) {
	f.calls++
	return f.text, f.err
}

const patientJSON = `{"age":45,"sex":0,"cp":2,"trestbps":130,"chol":234,"fbs":0,"restecg":0,
	"thalach":175,"exang":0,"oldpeak":0.6,"slope":1,"ca":0,"thal":1}`

func run(t *testing.T, gen *fakeGenerator, stdin string, args ...string) (string, error) {
	t.Helper()
	factory := func() (*pipeline.Pipeline, error) {
		return pipeline.New(inference.NewClient(gen), time.Second), nil
	}
	exporter := &report.Exporter{
		Now:   func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func() string { return "cli" },
	}

	cmd := rootCmd(factory, exporter)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("offline")}
	dir := t.TempDir()

	out, err := run(t, gen, patientJSON, "predict", "--report-dir", dir)
	if err != nil {
		t.Fatalf("predict error = %v", err)
	}

	var result models.PredictionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Provenance != models.ProvenanceFallback || result.Probability != 45 {
		t.Errorf("result = %+v", result)
	}

	if _, err := os.Stat(filepath.Join(dir, "Cardeon_Clinical_Report_45_F.html")); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestPredictCommandRejectsInvalidInput(t *testing.T) {
	gen := &fakeGenerator{}
	input := filepath.Join(t.TempDir(), "patient.json")
	if err := os.WriteFile(input, []byte(`{"age":-3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, gen, "", "predict", "--input", input)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if gen.calls != 0 {
		t.Errorf("inference calls = %d, want 0", gen.calls)
	}
}

func TestPromptCommand(t *testing.T) {
	out, err := run(t, &fakeGenerator{}, patientJSON, "prompt")
	if err != nil {
		t.Fatalf("prompt error = %v", err)
	}
	if !strings.Contains(out, "Age (age): 45 years") || !strings.Contains(out, "Serum Cholesterol (chol): 234 mg/dl") {
		t.Errorf("prompt output = %s", out)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, &fakeGenerator{}, "", "schema")
	if err != nil {
		t.Fatalf("schema error = %v", err)
	}
	var schema models.Schema
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema output is not JSON: %v", err)
	}
	if schema.Type != models.SchemaObject || len(schema.Required) != 4 {
		t.Errorf("schema = %+v", schema)
	}
}
