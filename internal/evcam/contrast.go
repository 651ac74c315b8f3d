package evcam

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// EvaluateContrast computes, for a batch of events identified by pixel
// index, the contrast residual between the panorama intensity seen under the
// predicted rotation and the intensity seen under the rotation recorded for
// each pixel's previous event. When wantJacobian is true it also returns the
// N x 3 Jacobian of the contrast with respect to the rotation vector.
//
// contrast[k] = I(project(R_pred * b_k)) - I(project(R_prev_k * b_k))
//
// where b_k = [u, v, 1] is the undistorted bearing of pixel k, R_pred is the
// exponential map of rotvec, and R_prev_k comes from the event map. Output
// order matches input order.
//
// The previous branch depends only on recorded rotations, so it is constant
// with respect to the state; the Jacobian chains the sampled gradient
// fields, the projection Jacobian and the exponential-map derivative at the
// current branch only.
//
// Preconditions, surfaced as errors: pixel indices must be valid for both
// the calibration table and the event map; wantJacobian requires a gradient
// map aligned with the panorama and a non-zero rotation vector.
func EvaluateContrast(pixels []int, eventMap *EventMap, rotvec r3.Vector, pano *Panorama, calib *Calibration, grads *GradientMap, wantJacobian bool) ([]float64, *mat.Dense, error) {
	if wantJacobian {
		if grads == nil {
			return nil, nil, fmt.Errorf("jacobian requested without a gradient map")
		}
		if !grads.Aligned(pano) {
			return nil, nil, fmt.Errorf("gradient map shape does not match %dx%d panorama", pano.Width, pano.Height)
		}
		if rotvec.Norm2() < MinDerivativeNormSq {
			return nil, nil, fmt.Errorf("jacobian requested for zero-norm rotation vector")
		}
	}

	proj := Projector{Width: pano.Width, Height: pano.Height}
	rot := ExpMap(rotvec)

	// The exponential-map derivative factors into a shared matrix and a
	// per-point skew term; compute the shared part once for the batch.
	var negRot, derivFactor Mat3
	if wantJacobian {
		m, err := expMapDerivFactor(rot, rotvec)
		if err != nil {
			return nil, nil, err
		}
		negRot = rot.Scale(-1)
		derivFactor = m
	}

	contrast := make([]float64, len(pixels))
	var jac *mat.Dense
	if wantJacobian {
		jac = mat.NewDense(len(pixels), 3, nil)
	}

	for k, pixel := range pixels {
		bearing, err := calib.Bearing(pixel)
		if err != nil {
			return nil, nil, fmt.Errorf("event %d: %w", k, err)
		}
		prevRot, err := eventMap.Rotation(pixel)
		if err != nil {
			return nil, nil, fmt.Errorf("event %d: %w", k, err)
		}

		current := rot.Apply(bearing)
		previous := prevRot.Apply(bearing)

		var px, py float64
		var projJac ProjJacobian
		if wantJacobian {
			px, py, projJac = proj.ProjectWithJacobian(current)
		} else {
			px, py = proj.Project(current)
		}
		prevPx, prevPy := proj.Project(previous)

		contrast[k] = pano.Sample(px, py) - pano.Sample(prevPx, prevPy)

		if !wantJacobian {
			continue
		}

		// dContrast/d(3D point): gradient fields sampled at the current
		// coordinate, chained through the projection Jacobian.
		gx := grads.X.Sample(px, py)
		gy := grads.Y.Sample(px, py)
		dX := gx*projJac[0] + gy*projJac[3]
		dY := gx*projJac[1] + gy*projJac[4]
		dZ := gx*projJac[2] + gy*projJac[5]

		// Chain through d(R*b)/dv = -R * Skew(b) * M(v).
		dRb := negRot.Mul(Skew(bearing)).Mul(derivFactor)

		for j := 0; j < 3; j++ {
			jac.Set(k, j, dX*dRb[0*3+j]+dY*dRb[1*3+j]+dZ*dRb[2*3+j])
		}
	}

	return contrast, jac, nil
}
