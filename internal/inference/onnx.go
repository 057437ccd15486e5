package inference

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXBackend serves the exported model through onnxruntime. Sessions are
// created once at startup and are read-only afterwards; tensors are allocated
// per call so concurrent requests never share buffers.
type ONNXBackend struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

// NewONNXBackend initializes the onnxruntime environment and loads the model
// at modelPath. Call Close when done to release the session and environment.
func NewONNXBackend(modelPath, inputName, outputName string) (*ONNXBackend, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXBackend{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
	}, nil
}

func (b *ONNXBackend) Run(ctx context.Context, input Tensor) (map[string]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	// A nil output slot lets onnxruntime allocate the result tensor, so the
	// output batch size follows the input instead of a fixed shape.
	outputs := []ort.Value{nil}
	if err := b.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("model output %q is not a float32 tensor", b.outputName)
	}

	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	shape := make([]int64, len(out.GetShape()))
	copy(shape, out.GetShape())

	return map[string]Tensor{b.outputName: {Data: data, Shape: shape}}, nil
}

func (b *ONNXBackend) Close() {
	if b.session != nil {
		b.session.Destroy()
	}
	ort.DestroyEnvironment()
}
