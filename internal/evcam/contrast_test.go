package evcam

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

// contrastFixture builds a smooth synthetic scene: a panorama linear in both
// coordinates (so the precomputed gradient fields describe the bilinear
// surface exactly), a small pinhole sensor, and an event map holding varied
// recorded rotations.
type contrastFixture struct {
	pano  *Panorama
	grads *GradientMap
	calib *Calibration
	em    *EventMap
}

func newContrastFixture() *contrastFixture {
	pano := rampPanorama(128, 64, 0.013, 0.021)
	calib := NewPinholeCalibration(8, 8, 20, 20, 3.5, 3.5)
	em := NewEventMap(calib.Pixels())

	// Previous rotations differ per pixel.
	for i := 0; i < calib.Pixels(); i++ {
		angle := 0.02 + 0.001*float64(i%7)
		em.rotations[i] = ExpMap(r3.Vector{X: angle, Y: -angle / 2, Z: angle / 3})
	}

	return &contrastFixture{
		pano:  pano,
		grads: ComputeGradients(pano),
		calib: calib,
		em:    em,
	}
}

func TestEvaluateContrast_SameRotationIsExactlyZero(t *testing.T) {
	fx := newContrastFixture()
	em := NewEventMap(fx.calib.Pixels()) // all identity

	// Zero rotation state: current branch also uses the identity, so the
	// two samples coincide and the contrast is exactly zero.
	pixels := []int{0, 17, 33, 63}
	contrast, jac, err := EvaluateContrast(pixels, em, r3.Vector{}, fx.pano, fx.calib, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jac != nil {
		t.Error("jacobian returned without being requested")
	}
	for k, c := range contrast {
		if c != 0 {
			t.Errorf("event %d: contrast %v, want exactly 0", k, c)
		}
	}
}

func TestEvaluateContrast_ExactGridScenario(t *testing.T) {
	// 2x2 panorama [[0,1],[2,3]], row 0 = top. The centre pixel's bearing
	// [0,0,1] projects under the identity exactly onto grid point (1,1);
	// the recorded rotation turns it onto the top pole, grid point (1,0).
	pano := NewPanorama(2, 2)
	pano.Set(0, 0, 0)
	pano.Set(0, 1, 1)
	pano.Set(1, 0, 2)
	pano.Set(1, 1, 3)

	calib := NewPinholeCalibration(1, 1, 1, 1, 0, 0) // single pixel, bearing [0,0,1]
	em := NewEventMap(1)
	// Rotate +Z onto -Y (straight up): elevation -pi/2, so py = 0.
	if err := em.Record(0, 1, ExpMap(r3.Vector{X: math.Pi / 2})); err != nil {
		t.Fatalf("record: %v", err)
	}

	contrast, _, err := EvaluateContrast([]int{0}, em, r3.Vector{}, pano, calib, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// map(1,1) - map(1,0) in (px, py) terms: 3 - 1 = 2.
	if math.Abs(contrast[0]-2) > 1e-12 {
		t.Errorf("contrast = %v, want 2", contrast[0])
	}

	// The zero rotation vector has no defined Jacobian; requesting one is
	// the documented degenerate case and must fail loudly.
	if _, _, err := EvaluateContrast([]int{0}, em, r3.Vector{}, pano, calib, ComputeGradients(pano), true); err == nil {
		t.Fatal("expected error when requesting jacobian at zero rotation")
	}
}

func TestEvaluateContrast_OrderPreserved(t *testing.T) {
	fx := newContrastFixture()
	rotvec := r3.Vector{X: 0.1, Y: -0.05, Z: 0.08}

	pixels := []int{3, 41, 12, 60, 27}
	forward, _, err := EvaluateContrast(pixels, fx.em, rotvec, fx.pano, fx.calib, nil, false)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	reversed := make([]int, len(pixels))
	for i, p := range pixels {
		reversed[len(pixels)-1-i] = p
	}
	backward, _, err := EvaluateContrast(reversed, fx.em, rotvec, fx.pano, fx.calib, nil, false)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}

	for i := range pixels {
		if forward[i] != backward[len(pixels)-1-i] {
			t.Errorf("row %d does not track its input event across reordering", i)
		}
	}
}

func TestEvaluateContrast_BatchInvariance(t *testing.T) {
	fx := newContrastFixture()
	rotvec := r3.Vector{X: 0.15, Y: -0.1, Z: 0.2}

	pixels := []int{0, 9, 20, 35, 48, 63}
	batchContrast, batchJac, err := EvaluateContrast(pixels, fx.em, rotvec, fx.pano, fx.calib, fx.grads, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	for k, pixel := range pixels {
		single, singleJac, err := EvaluateContrast([]int{pixel}, fx.em, rotvec, fx.pano, fx.calib, fx.grads, true)
		if err != nil {
			t.Fatalf("single %d: %v", k, err)
		}
		if single[0] != batchContrast[k] {
			t.Errorf("event %d: single contrast %v != batch contrast %v", k, single[0], batchContrast[k])
		}
		for j := 0; j < 3; j++ {
			if singleJac.At(0, j) != batchJac.At(k, j) {
				t.Errorf("event %d: jacobian column %d differs between single and batch", k, j)
			}
		}
	}
}

func TestEvaluateContrast_JacobianMatchesNumerical(t *testing.T) {
	const h = 1e-6
	fx := newContrastFixture()
	rotvec := r3.Vector{X: 0.2, Y: -0.12, Z: 0.15}

	pixels := make([]int, fx.calib.Pixels())
	for i := range pixels {
		pixels[i] = i
	}

	_, jac, err := EvaluateContrast(pixels, fx.em, rotvec, fx.pano, fx.calib, fx.grads, true)
	if err != nil {
		t.Fatalf("analytic: %v", err)
	}

	perturb := func(v r3.Vector, axis int, delta float64) r3.Vector {
		switch axis {
		case 0:
			v.X += delta
		case 1:
			v.Y += delta
		default:
			v.Z += delta
		}
		return v
	}

	var diffNorm, refNorm float64
	for axis := 0; axis < 3; axis++ {
		plus, _, err := EvaluateContrast(pixels, fx.em, perturb(rotvec, axis, h), fx.pano, fx.calib, nil, false)
		if err != nil {
			t.Fatalf("plus perturbation: %v", err)
		}
		minus, _, err := EvaluateContrast(pixels, fx.em, perturb(rotvec, axis, -h), fx.pano, fx.calib, nil, false)
		if err != nil {
			t.Fatalf("minus perturbation: %v", err)
		}
		for k := range pixels {
			numerical := (plus[k] - minus[k]) / (2 * h)
			d := jac.At(k, axis) - numerical
			diffNorm += d * d
			refNorm += numerical * numerical
		}
	}

	if refNorm == 0 {
		t.Fatal("numerical jacobian vanished; fixture is degenerate")
	}
	if rel := math.Sqrt(diffNorm / refNorm); rel > 1e-3 {
		t.Errorf("relative Frobenius mismatch %v exceeds 1e-3", rel)
	}
}

func TestEvaluateContrast_Preconditions(t *testing.T) {
	fx := newContrastFixture()
	rotvec := r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}

	// Jacobian without a gradient map.
	if _, _, err := EvaluateContrast([]int{0}, fx.em, rotvec, fx.pano, fx.calib, nil, true); err == nil {
		t.Error("expected error: jacobian requested without gradient map")
	}

	// Misaligned gradient map.
	bad := ComputeGradients(NewPanorama(fx.pano.Width+1, fx.pano.Height))
	if _, _, err := EvaluateContrast([]int{0}, fx.em, rotvec, fx.pano, fx.calib, bad, true); err == nil {
		t.Error("expected error: misaligned gradient map")
	}

	// Out-of-range pixel index.
	if _, _, err := EvaluateContrast([]int{fx.calib.Pixels()}, fx.em, rotvec, fx.pano, fx.calib, nil, false); err == nil {
		t.Error("expected error: pixel index past end of undistortion table")
	}
	if _, _, err := EvaluateContrast([]int{-1}, fx.em, rotvec, fx.pano, fx.calib, nil, false); err == nil {
		t.Error("expected error: negative pixel index")
	}

	// Gradient map supplied but no jacobian requested: allowed, gradients unused.
	if _, jac, err := EvaluateContrast([]int{0}, fx.em, rotvec, fx.pano, fx.calib, fx.grads, false); err != nil || jac != nil {
		t.Errorf("contrast-only call with gradients present: jac=%v err=%v", jac, err)
	}
}
