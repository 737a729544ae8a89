package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/hosplant/hosplant/internal/preprocess"
)

// ErrNoSession is returned when the model was loaded without an inference
// session.
var ErrNoSession = errors.New("model has no inference session")

// Runner executes one forward pass over a flattened batch-of-one input and
// returns the per-class scores.
type Runner interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// Model is the loaded classifier handle. It is read-only after loading.
type Model struct {
	Path          string
	Digest        digest.Digest
	Input         preprocess.InputSize
	Classes       int
	Normalization preprocess.Normalization

	// mu guards the runner's pre-allocated tensors.
	mu      sync.Mutex
	runner  Runner
	release func() error
}

// NewModel builds a handle around an already opened runner.
func NewModel(runner Runner, input preprocess.InputSize, classes int) *Model {
	return &Model{
		Input:         input,
		Classes:       classes,
		Normalization: preprocess.NormalizationAuto,
		runner:        runner,
	}
}

func (m *Model) Info() Info {
	return Info{
		Path:          m.Path,
		Digest:        m.Digest.String(),
		InputWidth:    m.Input.Width,
		InputHeight:   m.Input.Height,
		Layout:        m.Input.Layout,
		Classes:       m.Classes,
		Normalization: m.Normalization,
	}
}

// Ready reports whether the model has an inference session.
func (m *Model) Ready() bool {
	return m.runner != nil
}

// Classify runs one inference pass and returns the index of the highest
// scoring class along with that score.
func (m *Model) Classify(t *preprocess.Tensor) (int, float32, error) {
	if err := m.Input.Validate(); err != nil {
		return -1, 0, err
	}
	if m.runner == nil {
		return -1, 0, ErrNoSession
	}

	m.mu.Lock()
	scores, err := m.runner.Run(t.Data)
	m.mu.Unlock()
	if err != nil {
		return -1, 0, err
	}
	if len(scores) == 0 {
		return -1, 0, fmt.Errorf("model returned no scores")
	}

	idx, val := Argmax(scores)
	return idx, val, nil
}

// Argmax returns the first index holding the maximum value.
func Argmax(scores []float32) (int, float32) {
	maxIdx := 0
	maxVal := scores[0]
	for i, val := range scores {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}

func (m *Model) Close() error {
	var errs []error
	if m.runner != nil {
		errs = append(errs, m.runner.Close())
	}
	if m.release != nil {
		errs = append(errs, m.release())
	}
	return errors.Join(errs...)
}
