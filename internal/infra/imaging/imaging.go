package imaging

import (
	"image"
	"io"
)

// TextOptions positions one text overlay. The anchor is the center of the
// rendered string; Angle rotates around it.
type TextOptions struct {
	Scale int
	Angle float64
	X, Y  int
	Alpha uint8
}

// Processor is the minimal image-processing capability this core needs.
// The default implementation lives in std.go; tests substitute a fake.
type Processor interface {
	Decode(r io.Reader) (image.Image, string, error)
	Resize(img image.Image, maxWidth, maxHeight int) image.Image
	DrawText(img image.Image, text string, opts TextOptions) image.Image
	Encode(w io.Writer, img image.Image, format string, quality int) error
}

// FitWithin returns the target dimensions for scaling (w, h) to fit inside
// (maxW, maxH) preserving aspect ratio. Images already inside the box keep
// their size.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}
