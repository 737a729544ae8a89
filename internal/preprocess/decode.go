package preprocess

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

var ErrUnsupportedFormat = errors.New("unsupported image format, expected JPEG or PNG")

// Decode accepts JPEG or PNG content only, whatever the file is named. The
// EXIF orientation is applied and alpha is dropped.
func Decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (format != "jpeg" && format != "png") {
		return nil, format, ErrUnsupportedFormat
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, format, err
	}
	return Opaque(img), format, nil
}
