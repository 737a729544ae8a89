package model

import (
	"context"
	"image"

	"github.com/go-logr/logr"

	"github.com/hosplant/hosplant/internal/labels"
	"github.com/hosplant/hosplant/internal/preprocess"
)

// Server runs the detection pipeline over a loaded model.
type Server struct {
	Model *Model
}

func NewServer(m *Model) *Server {
	return &Server{Model: m}
}

// Predict preprocesses img, classifies it and resolves the class label.
func (s *Server) Predict(ctx context.Context, img image.Image) (*Prediction, error) {
	log := logr.FromContextOrDiscard(ctx)

	input, err := preprocess.Image(img, s.Model.Input, s.Model.Normalization)
	if err != nil {
		return nil, err
	}

	idx, confidence, err := s.Model.Classify(input)
	if err != nil {
		return nil, err
	}

	res := labels.Resolve(idx, confidence)
	log.V(1).Info("prediction", "index", idx, "raw_confidence", confidence, "plant", res.Plant, "condition", res.Condition)

	return &Prediction{
		Plant:      res.Plant,
		Condition:  res.Condition,
		Confidence: res.Confidence,
		ClassIndex: idx,
	}, nil
}
