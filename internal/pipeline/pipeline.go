// Package pipeline runs one assessment end to end: validate, build the
// request, call the inference service and fall back when it fails.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Cardeon/internal/fallback"
	"github.com/Alias1177/Cardeon/internal/prompt"
	"github.com/Alias1177/Cardeon/models"
)

// ErrBusy is returned when a prediction is already in flight on this pipeline.
var ErrBusy = errors.New("prediction already in progress")

// State is the lifecycle position of a pipeline.
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StateRequesting
	StateSynthesizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateRequesting:
		return "requesting"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Inferencer performs one exchange with the inference service.
type Inferencer interface {
	Predict(ctx context.Context, req models.InferenceRequest) (*models.PredictionResult, error)
}

// Pipeline serves at most one prediction at a time. Separate instances share nothing.
type Pipeline struct {
	client  Inferencer
	timeout time.Duration
	state   atomic.Int32
	logger  zerolog.Logger
}

// New creates a pipeline. A zero timeout leaves the deadline to the transport.
func New(client Inferencer, timeout time.Duration) *Pipeline {
	return &Pipeline{
		client:  client,
		timeout: timeout,
		logger:  log.With().Str("component", "pipeline").Logger(),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.logger.Debug().Str("state", s.String()).Msg("Pipeline state changed")
}

// Predict validates the vector and returns an assessment. The only errors
// are *models.ValidationError and ErrBusy: inference failures are replaced
// by the fallback result.
func (p *Pipeline) Predict(ctx context.Context, patient models.PatientFeatureVector) (*models.PredictionResult, error) {
	return p.run(ctx, func() (models.PatientFeatureVector, error) {
		return patient, patient.Validate()
	})
}

// PredictRaw is Predict for loosely typed input such as decoded JSON.
func (p *Pipeline) PredictRaw(ctx context.Context, raw map[string]any) (*models.PredictionResult, error) {
	return p.run(ctx, func() (models.PatientFeatureVector, error) {
		return models.ParsePatient(raw)
	})
}

// PredictJSON is Predict for a JSON object body.
func (p *Pipeline) PredictJSON(ctx context.Context, data []byte) (*models.PredictionResult, error) {
	return p.run(ctx, func() (models.PatientFeatureVector, error) {
		return models.ParsePatientJSON(data)
	})
}

func (p *Pipeline) run(ctx context.Context, parse func() (models.PatientFeatureVector, error)) (*models.PredictionResult, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateBuilding)) {
		return nil, ErrBusy
	}
	defer p.setState(StateIdle)

	patient, err := parse()
	if err != nil {
		p.logger.Debug().Err(err).Msg("Rejected patient data")
		return nil, err
	}

	req := prompt.Build(patient)
	p.setState(StateRequesting)

	// The caller cannot abort a request once sent; only the timeout applies.
	reqCtx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(reqCtx, p.timeout)
		defer cancel()
	}

	result, err := p.client.Predict(reqCtx, req)
	if err != nil {
		p.setState(StateSynthesizing)
		p.logger.Warn().Err(err).Msg("Inference failed, using fallback assessment")
		result = fallback.Synthesize()
	}

	p.setState(StateDone)
	p.logger.Info().
		Str("risk_category", string(result.RiskCategory)).
		Float64("probability", result.Probability).
		Str("provenance", string(result.Provenance)).
		Msg("Prediction complete")
	return result, nil
}
