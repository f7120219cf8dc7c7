// Package report renders an assessment as a self-contained HTML document.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Alias1177/Cardeon/models"
)

const (
	ContentType = "text/html; charset=utf-8"

	bannerLow  = "No Heart Disease Detected"
	bannerRisk = "Heart Disease Risk Detected"

	colorIncrease = "#ef4444"
	colorDecrease = "#10b981"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// ExportError is returned when a document cannot be produced.
type ExportError struct {
	Reason string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export report: %s: %v", e.Reason, e.Err)
	}
	return "export report: " + e.Reason
}

func (e *ExportError) Unwrap() error { return e.Err }

// Document is a rendered report ready to be saved or sent.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Body        []byte
}

// Exporter renders reports. Now and NewID are replaceable for deterministic output.
type Exporter struct {
	Now   func() time.Time
	NewID func() string
}

// NewExporter creates an exporter using the wall clock and random report IDs.
func NewExporter() *Exporter {
	return &Exporter{
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

type parameter struct {
	Label string
	Value string
}

type contribution struct {
	Feature     string
	Description string
	BarStyle    template.CSS
	ValueStyle  template.CSS
	Label       string
}

type view struct {
	ReportID      string
	Date          string
	Time          string
	Low           bool
	Banner        string
	Confidence    string
	Parameters    []parameter
	Contributions []contribution
	Summary       string
	Provenance    string
}

// Export renders the report for a patient and its assessment.
func (e *Exporter) Export(p models.PatientFeatureVector, r *models.PredictionResult) (Document, error) {
	if r == nil {
		return Document{}, &ExportError{Reason: "no prediction result"}
	}

	now := e.Now()
	id := e.NewID()

	v := view{
		ReportID:   id,
		Date:       now.Format("2006-01-02"),
		Time:       now.Format("15:04:05"),
		Low:        r.RiskCategory == models.RiskLow,
		Banner:     bannerRisk,
		Confidence: fmt.Sprintf("%.1f", r.Probability),
		Parameters: parameters(p),
		Summary:    r.Summary,
		Provenance: string(r.Provenance),
	}
	if v.Low {
		v.Banner = bannerLow
	}
	for _, c := range r.ShapExplanations {
		v.Contributions = append(v.Contributions, toContribution(c))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return Document{}, &ExportError{Reason: "render template", Err: err}
	}

	return Document{
		ID:          id,
		Filename:    Filename(p),
		ContentType: ContentType,
		Body:        buf.Bytes(),
	}, nil
}

// Filename is Cardeon_Clinical_Report_<age>_<M|F>.html.
func Filename(p models.PatientFeatureVector) string {
	return fmt.Sprintf("Cardeon_Clinical_Report_%d_%s.html", p.Age, p.SexCode())
}

// Save writes the document into dir and returns the file path.
func Save(dir string, doc Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ExportError{Reason: "create report directory", Err: err}
	}
	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return "", &ExportError{Reason: "write report", Err: err}
	}
	return path, nil
}

func parameters(p models.PatientFeatureVector) []parameter {
	return []parameter{
		{"Age", fmt.Sprintf("%d years", p.Age)},
		{"Sex", p.SexLabel()},
		{"Chest Pain", p.ChestPainLabel()},
		{"Resting BP", number(p.RestingBloodPressure) + " mm Hg"},
		{"Cholesterol", number(p.SerumCholesterol) + " mg/dl"},
		{"Fasting Sugar", p.FastingBloodSugarLabel()},
		{"Resting ECG", p.RestingECGLabel()},
		{"Max HR", number(p.MaxHeartRate) + " bpm"},
		{"Ex. Angina", p.ExerciseAnginaLabel()},
		{"ST Depression", fmt.Sprintf("%.1f", p.STDepression)},
		{"ST Slope", p.STSlopeLabel()},
		{"Major Vessels", strconv.Itoa(p.MajorVesselCount)},
		{"Thalassemia", p.ThalassemiaLabel()},
	}
}

func toContribution(c models.FeatureContribution) contribution {
	color := colorDecrease
	if c.Impact > 0 {
		color = colorIncrease
	}
	width := math.Min(math.Abs(c.Impact)*5, 100)

	return contribution{
		Feature:     c.Feature,
		Description: c.Description,
		BarStyle:    template.CSS(fmt.Sprintf("width: %s%%; background: %s;", number(width), color)),
		ValueStyle:  template.CSS("color: " + color),
		Label:       ImpactLabel(c.Impact),
	}
}

// ImpactLabel formats an impact as a signed whole percentage, rounding
// halves up: 8.2 -> "+8%", -4.5 -> "-4%".
func ImpactLabel(impact float64) string {
	rounded := math.Floor(impact + 0.5)
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	sign := ""
	if impact > 0 {
		sign = "+"
	}
	return sign + strconv.FormatFloat(rounded, 'f', 0, 64) + "%"
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
