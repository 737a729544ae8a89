// Package preprocess turns decoded images into model input tensors.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

const (
	channels      = 3
	maxPixelValue = 255.0
)

var ErrDynamicInputShape = errors.New("model declares a dynamic input size, which is not supported")

// Normalization decides how raw 0..255 samples are scaled before inference.
type Normalization string

const (
	// NormalizationAuto divides by 255 only when a sample exceeds 1.0.
	NormalizationAuto  Normalization = "auto"
	NormalizationScale Normalization = "scale"
	NormalizationNone  Normalization = "none"
)

func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(s); n {
	case NormalizationAuto, NormalizationScale, NormalizationNone:
		return n, nil
	case "":
		return NormalizationAuto, nil
	default:
		return "", fmt.Errorf("unknown normalization %q, expected one of auto, scale, none", s)
	}
}

// Layout is the memory order of the input tensor.
type Layout string

const (
	LayoutNHWC Layout = "NHWC"
	LayoutNCHW Layout = "NCHW"
)

// InputSize is the fixed spatial size a model accepts. Zero or negative
// dimensions mean the model left them dynamic.
type InputSize struct {
	Width  int
	Height int
	Layout Layout
}

func (s InputSize) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return ErrDynamicInputShape
	}
	return nil
}

// Tensor is a batch of one image laid out as Shape describes.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// Image resizes img to size, drops alpha, adds the batch dimension and
// normalizes the samples.
func Image(img image.Image, size InputSize, norm Normalization) (*Tensor, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	resized := resize.Resize(uint(size.Width), uint(size.Height), Opaque(img), resize.Lanczos3)
	rgb := imaging.Clone(resized)

	t := toTensor(rgb, size)
	Normalize(t.Data, norm)
	return t, nil
}

// Opaque returns an NRGBA copy of img with every alpha sample set to fully
// opaque. Color samples are kept as they are, not composited on a background.
func Opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func toTensor(img *image.NRGBA, size InputSize) *Tensor {
	width, height := size.Width, size.Height
	data := make([]float32, channels*width*height)
	plane := width * height

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			pixelIndex := y*width + x
			for c := 0; c < channels; c++ {
				if size.Layout == LayoutNCHW {
					data[c*plane+pixelIndex] = float32(px[c])
				} else {
					data[pixelIndex*channels+c] = float32(px[c])
				}
			}
		}
	}

	shape := [4]int{1, height, width, channels}
	if size.Layout == LayoutNCHW {
		shape = [4]int{1, channels, height, width}
	}
	return &Tensor{Shape: shape, Data: data}
}

// Normalize scales data in place according to norm.
func Normalize(data []float32, norm Normalization) {
	switch norm {
	case NormalizationNone:
		return
	case NormalizationScale:
	default:
		if maxValue(data) <= 1.0 {
			return
		}
	}
	for i := range data {
		data[i] /= maxPixelValue
	}
}

func maxValue(data []float32) float32 {
	var m float32
	for i, v := range data {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}
