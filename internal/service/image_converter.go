// Package service holds the business logic between the HTTP handlers
// and the repositories.
package service

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageConverter normalizes fetched channel logos to PNG. The blank
// imports register decoders for the formats catalogs serve logos in.
type ImageConverter struct{}

func NewImageConverter() *ImageConverter {
	return &ImageConverter{}
}

// ConvertToPNG decodes data in any registered format and re-encodes it
// as PNG, returning the PNG bytes and pixel dimensions. PNG input is
// re-encoded too, which doubles as validation.
func (c *ImageConverter) ConvertToPNG(data []byte) ([]byte, int, int, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decoding image (format=%s): %w", format, err)
	}

	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, 0, fmt.Errorf("encoding to PNG: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
