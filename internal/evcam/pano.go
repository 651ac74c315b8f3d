package evcam

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
)

// Panorama is a dense brightness grid in equirectangular layout.
// Pix is row-major with row 0 at the top of the panorama.
type Panorama struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPanorama allocates a zeroed panorama of the given dimensions.
func NewPanorama(width, height int) *Panorama {
	return &Panorama{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// At returns the value at integer grid position (row, col).
// Bounds are not checked; callers index within [0,Height) x [0,Width).
func (p *Panorama) At(row, col int) float64 {
	return p.Pix[row*p.Width+col]
}

// Set stores a value at integer grid position (row, col).
func (p *Panorama) Set(row, col int, v float64) {
	p.Pix[row*p.Width+col] = v
}

// SameShape reports whether two grids have identical dimensions.
func (p *Panorama) SameShape(o *Panorama) bool {
	return o != nil && p.Width == o.Width && p.Height == o.Height
}

// Sample returns the bilinear interpolation of the grid at continuous
// coordinates (px, py), where px indexes columns and py indexes rows.
//
// Boundary policy: clamp-to-edge. Coordinates outside
// [0, Width-1] x [0, Height-1] are clamped onto the grid before
// interpolation, so out-of-range samples are deterministic and equal to the
// nearest edge value. The same policy is used for intensity and gradient
// grids; the chain rule in the contrast Jacobian relies on that.
func (p *Panorama) Sample(px, py float64) float64 {
	px = clampFloat(px, 0, float64(p.Width-1))
	py = clampFloat(py, 0, float64(p.Height-1))

	x0 := int(math.Floor(px))
	y0 := int(math.Floor(py))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > p.Width-1 {
		x1 = p.Width - 1
	}
	if y1 > p.Height-1 {
		y1 = p.Height - 1
	}

	fx := px - float64(x0)
	fy := py - float64(y0)

	top := (1-fx)*p.At(y0, x0) + fx*p.At(y0, x1)
	bottom := (1-fx)*p.At(y1, x0) + fx*p.At(y1, x1)
	return (1-fy)*top + fy*bottom
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GradientMap holds the precomputed partial derivatives of a panorama with
// respect to the column (X) and row (Y) coordinates. Both grids must be
// geometrically aligned with the intensity panorama they derive from.
type GradientMap struct {
	X *Panorama // dI/dpx
	Y *Panorama // dI/dpy
}

// Aligned reports whether both gradient fields match the panorama's shape.
func (g *GradientMap) Aligned(p *Panorama) bool {
	return g != nil && g.X != nil && g.Y != nil && p.SameShape(g.X) && p.SameShape(g.Y)
}

// ComputeGradients builds the gradient fields of a panorama using central
// differences in the interior and one-sided differences on the edges.
func ComputeGradients(p *Panorama) *GradientMap {
	gx := NewPanorama(p.Width, p.Height)
	gy := NewPanorama(p.Width, p.Height)

	for row := 0; row < p.Height; row++ {
		for col := 0; col < p.Width; col++ {
			switch {
			case p.Width == 1:
				gx.Set(row, col, 0)
			case col == 0:
				gx.Set(row, col, p.At(row, 1)-p.At(row, 0))
			case col == p.Width-1:
				gx.Set(row, col, p.At(row, col)-p.At(row, col-1))
			default:
				gx.Set(row, col, (p.At(row, col+1)-p.At(row, col-1))/2)
			}

			switch {
			case p.Height == 1:
				gy.Set(row, col, 0)
			case row == 0:
				gy.Set(row, col, p.At(1, col)-p.At(0, col))
			case row == p.Height-1:
				gy.Set(row, col, p.At(row, col)-p.At(row-1, col))
			default:
				gy.Set(row, col, (p.At(row+1, col)-p.At(row-1, col))/2)
			}
		}
	}

	return &GradientMap{X: gx, Y: gy}
}

// LoadPanoramaPNG reads a PNG image and converts it to a brightness panorama
// with values in [0, 1] (luminance for colour inputs).
func LoadPanoramaPNG(path string) (*Panorama, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open panorama: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode panorama %s: %w", path, err)
	}

	return panoramaFromImage(img), nil
}

func panoramaFromImage(img image.Image) *Panorama {
	bounds := img.Bounds()
	p := NewPanorama(bounds.Dx(), bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 601 luma, 16-bit channels scaled to [0, 1]
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
			p.Set(y-bounds.Min.Y, x-bounds.Min.X, lum)
		}
	}
	return p
}
