// Package preprocess turns uploaded image bytes into the tensor the trained
// model expects: nearest-neighbor resized, normalized to [-1, 1], stacked
// NHWC. The interpolation method and the normalization are part of the model
// contract and must match what the model saw at training time.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/dermalytics/skindiag/internal/inference"
)

const channels = 3

var (
	ErrEmptyInput     = errors.New("no images to preprocess")
	ErrInvalidElement = errors.New("image element is not a byte buffer")
	ErrDecode         = errors.New("failed to decode image")
)

// Preprocessor holds the process-wide preprocessing configuration. It is
// read-only after construction and safe for concurrent use.
type Preprocessor struct {
	// FallbackScaling switches normalization to plain /255 scaling. The
	// model was trained with EfficientNetV2 input scaling, so this exists
	// only for explicit experimentation and degrades prediction quality.
	FallbackScaling bool
}

func New(fallbackScaling bool) *Preprocessor {
	return &Preprocessor{FallbackScaling: fallbackScaling}
}

// Batch preprocesses every image and stacks the results along a new leading
// batch axis in input order. It either succeeds for the whole batch or fails
// without partial results.
func (p *Preprocessor) Batch(images [][]byte, width, height int) (inference.Tensor, error) {
	if len(images) == 0 {
		return inference.Tensor{}, ErrEmptyInput
	}

	perImage := height * width * channels
	data := make([]float32, 0, len(images)*perImage)

	for i, raw := range images {
		if raw == nil {
			return inference.Tensor{}, fmt.Errorf("%w: element %d", ErrInvalidElement, i)
		}
		pixels, err := p.one(raw, width, height)
		if err != nil {
			return inference.Tensor{}, fmt.Errorf("image %d: %w", i, err)
		}
		data = append(data, pixels...)
	}

	return inference.Tensor{
		Data:  data,
		Shape: []int64{int64(len(images)), int64(height), int64(width), int64(channels)},
	}, nil
}

func (p *Preprocessor) one(raw []byte, width, height int) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// Nearest-neighbor, not bilinear or Lanczos: the model was trained on
	// nearest-neighbor resized inputs and the choice is numerically visible.
	resized := resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)

	bounds := resized.Bounds()
	data := make([]float32, 0, height*width*channels)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data = append(data,
				p.normalize(float32(r>>8)),
				p.normalize(float32(g>>8)),
				p.normalize(float32(b>>8)),
			)
		}
	}
	return data, nil
}

// normalize maps an 8-bit channel value into the model's input distribution.
// The default is the EfficientNetV2 input scaling to [-1, 1].
func (p *Preprocessor) normalize(v float32) float32 {
	if p.FallbackScaling {
		return v / 255.0
	}
	return v/127.5 - 1.0
}
