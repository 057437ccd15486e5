// Package pipeline sequences one prediction request: token validation, image
// preprocessing, inference, response assembly. Each request is independent
// and the first failure aborts the rest of the sequence.
package pipeline

import (
	"context"
	"time"

	"github.com/dermalytics/skindiag/internal/credential"
	"github.com/dermalytics/skindiag/internal/inference"
)

// DateLayout is the human-readable capture timestamp format in responses.
const DateLayout = "2006-01-02 15:04:05"

type TokenValidator interface {
	Validate(ctx context.Context, token string) (*credential.AccessCredential, error)
}

type ImagePreprocessor interface {
	Batch(images [][]byte, width, height int) (inference.Tensor, error)
}

type Predictor interface {
	Infer(ctx context.Context, input inference.Tensor) ([]inference.Prediction, error)
}

// Response is the successful prediction payload.
type Response struct {
	Diagnosis []inference.Prediction `json:"diagnosis"`
	TimeTaken float64                `json:"time_taken"`
	Date      string                 `json:"date"`
}

// Pipeline wires the request stages together. All collaborators are
// constructed once at startup and read-only afterwards.
type Pipeline struct {
	gate      TokenValidator
	pre       ImagePreprocessor
	engine    Predictor
	imageSize int
	now       func() time.Time
}

func New(gate TokenValidator, pre ImagePreprocessor, engine Predictor, imageSize int) *Pipeline {
	return &Pipeline{
		gate:      gate,
		pre:       pre,
		engine:    engine,
		imageSize: imageSize,
		now:       time.Now,
	}
}

// Run executes one prediction request. The token is checked before any
// compute-heavy work; preprocessing and inference never run for a rejected
// credential. The reported time covers the pipeline itself, not request
// transfer.
func (p *Pipeline) Run(ctx context.Context, token string, imageData []byte) (*Response, error) {
	start := p.now()

	if _, err := p.gate.Validate(ctx, token); err != nil {
		return nil, err
	}

	tensor, err := p.pre.Batch([][]byte{imageData}, p.imageSize, p.imageSize)
	if err != nil {
		return nil, err
	}

	preds, err := p.engine.Infer(ctx, tensor)
	if err != nil {
		return nil, err
	}

	return assemble(preds, p.now().Sub(start), p.now()), nil
}

// assemble packages the predictions with elapsed time and capture timestamp.
// Pure formatting, no failure modes.
func assemble(preds []inference.Prediction, elapsed time.Duration, at time.Time) *Response {
	return &Response{
		Diagnosis: preds,
		TimeTaken: elapsed.Seconds(),
		Date:      at.Format(DateLayout),
	}
}
