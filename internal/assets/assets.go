// Package assets provides embedded static assets for streamtv.
package assets

import (
	_ "embed"
)

// DefaultChannelIcon is the placeholder PNG served for channels without a
// usable logo.
//
//go:embed default_icon.png
var DefaultChannelIcon []byte
