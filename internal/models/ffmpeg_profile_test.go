package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFFmpegProfile_Validate(t *testing.T) {
	crf := 23
	p := FFmpegProfile{Name: "living-room", CRF: &crf}
	assert.NoError(t, p.Validate())

	p = FFmpegProfile{}
	assert.ErrorIs(t, p.Validate(), ErrNameRequired)

	bad := 90
	p = FFmpegProfile{Name: "living-room", CRF: &bad}
	assert.Error(t, p.Validate())
}

func TestResolution_String(t *testing.T) {
	r := Resolution{Name: "1080p", Width: 1920, Height: 1080}
	assert.Equal(t, "1920x1080", r.String())
}

func TestResolution_Validate(t *testing.T) {
	r := Resolution{Name: "bad", Width: 0, Height: 1080}
	assert.Error(t, r.Validate())

	r = Resolution{Name: "720p", Width: 1280, Height: 720}
	assert.NoError(t, r.Validate())
}

func TestWatermark_CornerValue(t *testing.T) {
	tests := []struct {
		name     string
		corner   string
		expected WatermarkCorner
	}{
		{"canonical", "top_left", CornerTopLeft},
		{"uppercase legacy", "BOTTOM_LEFT", CornerBottomLeft},
		{"unknown falls back", "center", CornerBottomRight},
		{"empty falls back", "", CornerBottomRight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Watermark{Corner: tt.corner}
			assert.Equal(t, tt.expected, w.CornerValue())
		})
	}
}

func TestWatermark_Validate(t *testing.T) {
	w := Watermark{Name: "bug", Path: "/data/bug.png", Opacity: 0.8}
	assert.NoError(t, w.Validate())

	w = Watermark{Name: "bug"}
	assert.Error(t, w.Validate())

	w = Watermark{Name: "bug", Path: "/data/bug.png", Opacity: 1.5}
	assert.Error(t, w.Validate())
}
