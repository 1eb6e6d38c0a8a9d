package ui

import (
	"bytes"
	stdimage "image"
	"image/png"

	"github.com/blacktop/go-termimg"
	"github.com/nfnt/resize"
)

// fit shrinks img to the display area keeping its aspect ratio. Images that
// already fit are returned unchanged.
func fit(img stdimage.Image, width, height int) stdimage.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	return resize.Thumbnail(uint(width), uint(height), img, resize.Lanczos3)
}

func renderTerminal(img stdimage.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "unable to display image: " + err.Error()
	}
	ti, err := termimg.NewTermImg(&buf)
	if err != nil {
		return "unable to display image: " + err.Error()
	}
	out, err := ti.Render()
	if err != nil {
		return "unable to display image: " + err.Error()
	}
	return out
}
