package models

import "context"

// Generator sends one structured-output request to an inference service and
// returns the raw text the service produced.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req InferenceRequest) (string, error)
}
