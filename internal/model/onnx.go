package model

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/opencontainers/go-digest"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/hosplant/hosplant/internal/preprocess"
)

// onnxRunner owns an onnxruntime session and its pre-allocated tensors.
type onnxRunner struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// OpenONNX loads the artifact at opts.ModelPath into a Model. A model whose
// spatial input size is dynamic still loads, predictions on it fail with
// preprocess.ErrDynamicInputShape.
func OpenONNX(opts *Options, meta Metadata) (*Model, error) {
	dgst, err := digestFile(opts.ModelPath)
	if err != nil {
		return nil, err
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to read model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		ort.DestroyEnvironment()
		return nil, errors.New("model has no inputs or outputs")
	}

	input, output := inputs[0], outputs[0]
	for _, info := range inputs {
		if meta.InputName != "" && info.Name == meta.InputName {
			input = info
		}
	}
	for _, info := range outputs {
		if meta.OutputName != "" && info.Name == meta.OutputName {
			output = info
		}
	}

	size, err := inputSize(input.Dimensions, meta.Layout)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	classes := classCount(output.Dimensions)
	if classes <= 0 {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("model output %q has no fixed class dimension: %v", output.Name, output.Dimensions)
	}

	m := &Model{
		Path:    opts.ModelPath,
		Digest:  dgst,
		Input:   size,
		Classes: classes,
		release: func() error { return ort.DestroyEnvironment() },
	}
	if size.Validate() != nil {
		return m, nil
	}

	runner, err := newONNXRunner(opts.ModelPath, input.Name, output.Name, batchOf(input.Dimensions), batchOf(output.Dimensions))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	m.runner = runner
	return m, nil
}

func newONNXRunner(modelPath, inputName, outputName string, inputDims, outputDims []int64) (*onnxRunner, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to set session threads: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputDims...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputDims...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxRunner{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (r *onnxRunner) Run(input []float32) ([]float32, error) {
	dst := r.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := r.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (r *onnxRunner) Close() error {
	if r.inputTensor != nil {
		r.inputTensor.Destroy()
	}
	if r.outputTensor != nil {
		r.outputTensor.Destroy()
	}
	if r.session != nil {
		return r.session.Destroy()
	}
	return nil
}

// inputSize reads the spatial size of a 4-D image input. Dynamic dimensions
// are kept as reported (-1) so the caller can reject them at prediction time.
func inputSize(dims ort.Shape, layout preprocess.Layout) (preprocess.InputSize, error) {
	if len(dims) != 4 {
		return preprocess.InputSize{}, fmt.Errorf("expected a 4-D image input, got shape %v", dims)
	}
	if layout == "" {
		layout = preprocess.LayoutNHWC
		if dims[3] != 3 && dims[1] == 3 {
			layout = preprocess.LayoutNCHW
		}
	}
	switch layout {
	case preprocess.LayoutNHWC:
		return preprocess.InputSize{Height: int(dims[1]), Width: int(dims[2]), Layout: layout}, nil
	case preprocess.LayoutNCHW:
		return preprocess.InputSize{Height: int(dims[2]), Width: int(dims[3]), Layout: layout}, nil
	default:
		return preprocess.InputSize{}, fmt.Errorf("unknown layout %q", layout)
	}
}

func classCount(dims ort.Shape) int {
	if len(dims) == 0 {
		return 0
	}
	return int(dims[len(dims)-1])
}

// batchOf replaces a dynamic leading batch dimension with 1.
func batchOf(dims ort.Shape) []int64 {
	out := make([]int64, len(dims))
	copy(out, dims)
	if len(out) > 0 && out[0] <= 0 {
		out[0] = 1
	}
	return out
}

func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("model artifact unavailable: %w", err)
	}
	defer f.Close()
	dgst, err := digest.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to read model artifact: %w", err)
	}
	return dgst, nil
}
