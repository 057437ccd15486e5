package inference

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Engine interprets raw backend output into labeled probabilities. A single
// value per row is read as the Benign probability with Malignant as its
// complement; seven values per row map positionally onto the lesion labels.
//
// The backend call is the most expensive step in the request path, so the
// engine bounds how many invocations run at once.
type Engine struct {
	backend   Backend
	outputKey string
	sem       *semaphore.Weighted
}

// NewEngine wraps backend, reading its outputKey slot. maxConcurrent bounds
// simultaneous backend invocations; zero or negative means unbounded.
func NewEngine(backend Backend, outputKey string, maxConcurrent int64) *Engine {
	var sem *semaphore.Weighted
	if maxConcurrent > 0 {
		sem = semaphore.NewWeighted(maxConcurrent)
	}
	return &Engine{backend: backend, outputKey: outputKey, sem: sem}
}

// Infer runs one backend invocation over the batch and labels every row of
// the result. The input is already batched by the caller; no further batching
// or retrying happens here.
func (e *Engine) Infer(ctx context.Context, input Tensor) ([]Prediction, error) {
	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("inference admission: %w", err)
		}
		defer e.sem.Release(1)
	}

	outputs, err := e.backend.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	out, ok := outputs[e.outputKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingOutput, e.outputKey)
	}
	if len(out.Shape) != 2 {
		return nil, fmt.Errorf("%w: rank %d", ErrUnexpectedShape, len(out.Shape))
	}

	rows := int(out.Shape[0])
	classes := int(out.Shape[1])
	if len(out.Data) != rows*classes {
		return nil, fmt.Errorf("%w: %d values for shape [%d %d]", ErrUnexpectedShape, len(out.Data), rows, classes)
	}

	switch {
	case classes == 1:
		return labelBinary(out.Data), nil
	case classes == len(multiLabels):
		return labelMulti(out.Data, rows), nil
	default:
		return nil, fmt.Errorf("%w: got %d classes, want 1 or %d", ErrLabelMismatch, classes, len(multiLabels))
	}
}

func labelBinary(values []float32) []Prediction {
	preds := make([]Prediction, len(values))
	for i, v := range values {
		benign := float64(v)
		preds[i] = Prediction{
			binaryLabels[0]: 1 - benign,
			binaryLabels[1]: benign,
		}
	}
	return preds
}

func labelMulti(values []float32, rows int) []Prediction {
	n := len(multiLabels)
	preds := make([]Prediction, rows)
	for i := 0; i < rows; i++ {
		p := make(Prediction, n)
		for j, label := range multiLabels {
			p[label] = float64(values[i*n+j])
		}
		preds[i] = p
	}
	return preds
}
