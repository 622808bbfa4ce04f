package imagegen

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

// Dimensions decodes the width and height of a PNG or JPEG image. Unknown
// formats yield zeros.
func Dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// SniffMIME returns the image content type of data, or fallback when the
// bytes are not a recognized image.
func SniffMIME(data []byte, fallback string) string {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return fallback
}
