package evcam

import (
	"math"

	"github.com/golang/geo/r3"
)

// Projector maps 3D direction vectors onto an equirectangular panorama.
//
// Coordinate convention (fixed, must match the panorama layout):
// X = right, Y = down, Z = forward (optical axis). Azimuth is measured by
// atan2(X, Z) and spans one panorama width per full turn; elevation is
// asin(Y/|p|) and spans one panorama height from pole to pole. Row 0 is the
// top of the panorama, so positive Y (down) maps to larger py.
type Projector struct {
	Width  int
	Height int
}

// ProjJacobian is the 2x3 Jacobian of the projection, row-major:
// dpx/dX, dpx/dY, dpx/dZ, dpy/dX, dpy/dY, dpy/dZ.
type ProjJacobian [6]float64

// Project maps a direction vector to continuous panorama coordinates.
// px is wrapped into [0, Width); py lies in [0, Height] and is clamped by
// the sampler, not here. The input does not need to be normalised.
func (p Projector) Project(d r3.Vector) (px, py float64) {
	azimuth := math.Atan2(d.X, d.Z)
	elevation := math.Asin(d.Y / d.Norm())

	px = (azimuth/(2*math.Pi) + 0.5) * float64(p.Width)
	py = (elevation/math.Pi + 0.5) * float64(p.Height)

	// atan2 returns pi at the seam; wrap so px stays in [0, Width).
	if px >= float64(p.Width) {
		px -= float64(p.Width)
	}
	return px, py
}

// ProjectWithJacobian maps a direction vector to panorama coordinates and
// also returns the analytic 2x3 Jacobian of (px, py) with respect to the
// input vector, evaluated at d.
//
// The azimuth row degenerates as the direction approaches the polar axis
// (X and Z both near zero): the true azimuth derivative is unbounded there.
// This is an inherent instability of the projection and is not special-cased.
func (p Projector) ProjectWithJacobian(d r3.Vector) (px, py float64, jac ProjJacobian) {
	px, py = p.Project(d)

	rho2 := d.X*d.X + d.Z*d.Z // squared distance from the polar axis
	rho := math.Sqrt(rho2)
	r2 := rho2 + d.Y*d.Y

	kx := float64(p.Width) / (2 * math.Pi)
	ky := float64(p.Height) / math.Pi

	// d(azimuth)/d(X,Y,Z) = (Z/rho^2, 0, -X/rho^2)
	jac[0] = kx * d.Z / rho2
	jac[1] = 0
	jac[2] = kx * -d.X / rho2

	// d(elevation)/d(X,Y,Z) = (-X*Y, rho^2, -Z*Y) / (r^2 * rho)
	jac[3] = ky * -d.X * d.Y / (r2 * rho)
	jac[4] = ky * rho / r2
	jac[5] = ky * -d.Z * d.Y / (r2 * rho)

	return px, py, jac
}
