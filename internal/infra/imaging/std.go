package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
)

// StdProcessor implements Processor on the stdlib image packages plus
// golang.org/x/image for resampling, TIFF and glyph rendering.
type StdProcessor struct{}

func NewStdProcessor() *StdProcessor {
	return &StdProcessor{}
}

func (p *StdProcessor) Decode(r io.Reader) (image.Image, string, error) {
	return image.Decode(r)
}

func (p *StdProcessor) Resize(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	outW, outH := FitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if outW == bounds.Dx() && outH == bounds.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

func (p *StdProcessor) DrawText(img image.Image, text string, opts TextOptions) image.Image {
	if text == "" {
		return img
	}
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = 96
	}

	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)

	stamp := renderText(text, scale)
	rotateBlit(dst, stamp, opts.X, opts.Y, opts.Angle, alpha)
	return dst
}

func (p *StdProcessor) Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported encode format %q", format)
	}
}

// renderText draws the string with the basic 7x13 face and scales the
// resulting bitmap up by nearest neighbour.
func renderText(text string, scale int) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()
	if width < 1 {
		width = 1
	}

	base := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := font.Drawer{
		Dst:  base,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)

	if scale == 1 {
		return base
	}
	scaled := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), base, base.Bounds(), xdraw.Src, nil)
	return scaled
}

// rotateBlit blends src onto dst centered at (cx, cy), rotated by angle.
// Inverse mapping over the rotated bounding box avoids sampling holes.
func rotateBlit(dst *image.RGBA, src *image.RGBA, cx, cy int, angle float64, alpha uint8) {
	sw := src.Bounds().Dx()
	sh := src.Bounds().Dy()
	sin, cos := math.Sincos(angle)

	halfW := int(math.Abs(float64(sw)*cos)+math.Abs(float64(sh)*sin))/2 + 1
	halfH := int(math.Abs(float64(sw)*sin)+math.Abs(float64(sh)*cos))/2 + 1

	for dy := -halfH; dy <= halfH; dy++ {
		for dx := -halfW; dx <= halfW; dx++ {
			// inverse rotation back into the unrotated stamp
			sx := int(cos*float64(dx)+sin*float64(dy)) + sw/2
			sy := int(-sin*float64(dx)+cos*float64(dy)) + sh/2
			if sx < 0 || sx >= sw || sy < 0 || sy >= sh {
				continue
			}
			_, _, _, a := src.At(sx, sy).RGBA()
			if a == 0 {
				continue
			}
			tx, ty := cx+dx, cy+dy
			if !(image.Point{X: tx, Y: ty}).In(dst.Bounds()) {
				continue
			}
			blend(dst, tx, ty, alpha)
		}
	}
}

func blend(dst *image.RGBA, x, y int, alpha uint8) {
	r, g, b, _ := dst.At(x, y).RGBA()
	a := uint32(alpha)
	mix := func(c uint32) uint8 {
		// blend towards white by alpha/255
		v := (c>>8)*(255-a)/255 + 255*a/255
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}
	dst.SetRGBA(x, y, color.RGBA{R: mix(r), G: mix(g), B: mix(b), A: 255})
}
