package vehicle

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Channels is the number of interleaved bytes per pixel in a Frame.
const Channels = 3

// Default storage and inference resolution.
const (
	DefaultWidth  = 60
	DefaultHeight = 40
	DefaultFPS    = 20
)

// Frame is an RGB camera image with tightly packed, row-major pixels.
//
// Frames are treated as immutable once built: Resize returns a new Frame.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame wraps pix as a width x height RGB frame.
func NewFrame(width, height int, pix []byte) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if want := width * height * Channels; len(pix) != want {
		return nil, fmt.Errorf("frame %dx%d needs %d bytes, got %d", width, height, want, len(pix))
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts any image into an RGB frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := &Frame{Width: b.Dx(), Height: b.Dy(), Pix: make([]byte, b.Dx()*b.Dy()*Channels)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c.R, c.G, c.B
			i += Channels
		}
	}
	return f
}

// RGBA returns the frame as an opaque image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for src, dst := 0, 0; src < len(f.Pix); src, dst = src+Channels, dst+4 {
		img.Pix[dst] = f.Pix[src]
		img.Pix[dst+1] = f.Pix[src+1]
		img.Pix[dst+2] = f.Pix[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}

// Resize scales the frame to width x height with bilinear interpolation.
// A frame already at the target size is returned unchanged.
func (f *Frame) Resize(width, height int) *Frame {
	if f.Width == width && f.Height == height {
		return f
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), f.RGBA(), image.Rect(0, 0, f.Width, f.Height), draw.Src, nil)
	return FromImage(dst)
}

// Luma returns per-pixel luminance scaled to [0, 1].
func (f *Frame) Luma() []float64 {
	out := make([]float64, f.Width*f.Height)
	for i := range out {
		p := f.Pix[i*Channels:]
		out[i] = (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255.0
	}
	return out
}
