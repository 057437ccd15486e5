package inference

import (
	"context"
	"errors"
)

// Tensor is a dense float32 array with an explicit shape. The pipeline only
// ever produces rank-4 input ([batch, height, width, channels]) and consumes
// rank-2 output ([batch, classes]).
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Prediction maps a class label to its probability for one input image.
type Prediction map[string]float64

// Backend runs the trained model once over a batch and returns its named
// output tensors. Implementations must be safe for concurrent use.
type Backend interface {
	Run(ctx context.Context, input Tensor) (map[string]Tensor, error)
}

var (
	ErrMissingOutput   = errors.New("model output slot missing")
	ErrUnexpectedShape = errors.New("unexpected model output shape")
	ErrLabelMismatch   = errors.New("model output size does not match class labels")
	ErrBackend         = errors.New("inference backend failure")
)

var binaryLabels = [2]string{"Malignant", "Benign"}

// multiLabels is positional: index i of the model output vector is the
// probability for multiLabels[i]. The ordering is part of the model contract.
var multiLabels = [7]string{
	"Actinic keratoses",
	"Basal cell carcinoma",
	"Benign keratosis-like lesions",
	"Dermatofibroma",
	"Melanocytic nevi",
	"Melanoma",
	"Vascular lesions",
}
