package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"

	"github.com/hosplant/hosplant/internal/preprocess"
)

const (
	DefaultModelPath    = "models/plant_disease_model.onnx"
	DefaultMetadataPath = "models/plant_disease_model.yaml"
)

type Options struct {
	ModelPath         string
	MetadataPath      string
	SharedLibraryPath string
	// Normalization overrides the metadata policy when set.
	Normalization string
}

func DefaultOptions() *Options {
	return &Options{
		ModelPath:         DefaultModelPath,
		MetadataPath:      DefaultMetadataPath,
		SharedLibraryPath: os.Getenv("ONNXRUNTIME_LIB"),
	}
}

// OpenFunc opens a model artifact.
type OpenFunc func(opts *Options, meta Metadata) (*Model, error)

// Loader holds the process-wide model handle. The artifact is opened on the
// first Load; later calls return the same handle, or the same error.
type Loader struct {
	opts *Options
	open OpenFunc

	once  sync.Once
	model *Model
	err   error
}

func NewLoader(opts *Options) *Loader {
	return NewLoaderWith(opts, OpenONNX)
}

func NewLoaderWith(opts *Options, open OpenFunc) *Loader {
	return &Loader{opts: opts, open: open}
}

func (l *Loader) Load(ctx context.Context) (*Model, error) {
	l.once.Do(func() {
		l.model, l.err = l.load(ctx)
	})
	return l.model, l.err
}

func (l *Loader) load(ctx context.Context) (*Model, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("model", l.opts.ModelPath)

	meta, err := LoadMetadata(l.opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	norm, err := resolveNormalization(l.opts.Normalization, meta.Normalization)
	if err != nil {
		return nil, err
	}

	m, err := l.open(l.opts, meta)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", l.opts.ModelPath, err)
	}
	m.Normalization = norm

	log.Info("model loaded",
		"digest", m.Digest.String(),
		"width", m.Input.Width,
		"height", m.Input.Height,
		"layout", m.Input.Layout,
		"classes", m.Classes,
		"normalization", m.Normalization)
	if err := m.Input.Validate(); err != nil {
		log.Info("model input size is dynamic, predictions will be rejected")
	}
	return m, nil
}

// Close releases the handle if one was loaded.
func (l *Loader) Close() error {
	if l.model == nil {
		return nil
	}
	return l.model.Close()
}

// LoadMetadata reads the sidecar at path. A missing file yields empty
// metadata.
func LoadMetadata(path string) (Metadata, error) {
	meta := Metadata{}
	if path == "" {
		return meta, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return meta, nil
		}
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if _, err := preprocess.ParseNormalization(string(meta.Normalization)); err != nil {
		return meta, fmt.Errorf("invalid metadata: %w", err)
	}
	switch meta.Layout {
	case "", preprocess.LayoutNHWC, preprocess.LayoutNCHW:
	default:
		return meta, fmt.Errorf("invalid metadata: unknown layout %q", meta.Layout)
	}
	return meta, nil
}

func resolveNormalization(override string, fromMeta preprocess.Normalization) (preprocess.Normalization, error) {
	if override != "" {
		return preprocess.ParseNormalization(override)
	}
	return preprocess.ParseNormalization(string(fromMeta))
}
