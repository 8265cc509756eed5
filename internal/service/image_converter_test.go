package service

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestImage(t *testing.T, format string, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	switch format {
	case "png":
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		require.NoError(t, png.Encode(&buf, img))
	case "jpeg":
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	case "gif":
		img := image.NewPaletted(image.Rect(0, 0, width, height), color.Palette{color.White, color.Black})
		require.NoError(t, gif.Encode(&buf, img, nil))
	default:
		t.Fatalf("unknown format %s", format)
	}
	return buf.Bytes()
}

func TestConvertToPNG(t *testing.T) {
	converter := NewImageConverter()

	tests := []struct {
		format        string
		width, height int
	}{
		{"png", 100, 50},
		{"jpeg", 200, 100},
		{"gif", 64, 32},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			input := encodeTestImage(t, tt.format, tt.width, tt.height)

			data, w, h, err := converter.ConvertToPNG(input)
			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)

			// Output must itself decode as PNG.
			_, err = png.Decode(bytes.NewReader(data))
			assert.NoError(t, err)
		})
	}
}

func TestConvertToPNGInvalidInput(t *testing.T) {
	converter := NewImageConverter()

	_, _, _, err := converter.ConvertToPNG([]byte("not an image"))
	assert.ErrorContains(t, err, "decoding image")

	_, _, _, err = converter.ConvertToPNG(nil)
	assert.Error(t, err)
}
