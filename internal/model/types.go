package model

import (
	"github.com/hosplant/hosplant/internal/labels"
	"github.com/hosplant/hosplant/internal/preprocess"
)

// Metadata is the optional sidecar describing how a model artifact expects
// its input. Both YAML and JSON are accepted.
type Metadata struct {
	InputName     string                   `json:"input_name,omitempty"`
	OutputName    string                   `json:"output_name,omitempty"`
	Layout        preprocess.Layout        `json:"layout,omitempty"`
	Normalization preprocess.Normalization `json:"normalization,omitempty"`
}

type Prediction struct {
	Plant      string  `json:"plant"`
	Condition  string  `json:"condition"`
	Confidence float32 `json:"confidence"`
	ClassIndex int     `json:"class_index"`
}

func (p Prediction) Healthy() bool {
	return labels.IsHealthy(p.Condition)
}

func (p Prediction) DisplayCondition() string {
	return labels.CleanCondition(p.Condition)
}

func (p Prediction) DisplayConfidence() string {
	return labels.FormatConfidence(p.Confidence)
}

type Info struct {
	Path          string                   `json:"path"`
	Digest        string                   `json:"digest"`
	InputWidth    int                      `json:"input_width"`
	InputHeight   int                      `json:"input_height"`
	Layout        preprocess.Layout        `json:"layout"`
	Classes       int                      `json:"classes"`
	Normalization preprocess.Normalization `json:"normalization"`
}
