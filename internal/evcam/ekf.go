package evcam

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// EKFConfig holds tuning parameters for the rotation filter.
type EKFConfig struct {
	ProcessNoise     float64   // Random-walk intensity for the rotation state (rad²/s)
	MeasurementNoise float64   // Per-event contrast measurement variance
	ContrastSetpoint float64   // Expected |contrast| of a single event (sensor threshold)
	InitialCov       float64   // Initial per-axis state variance (rad²)
	InitialRotation  r3.Vector // Initial rotation-vector state
}

// DefaultEKFConfig returns default filter tuning. The initial rotation is a
// small non-zero vector: the measurement Jacobian is undefined at exactly
// zero rotation, so the filter must not start on the singularity.
func DefaultEKFConfig() EKFConfig {
	return EKFConfig{
		ProcessNoise:     1e-4,
		MeasurementNoise: 1e-2,
		ContrastSetpoint: 0.1,
		InitialCov:       1e-2,
		InitialRotation:  r3.Vector{X: 1e-4, Y: 1e-4, Z: 1e-4},
	}
}

// RotationEKF estimates camera rotation from an event stream against a
// brightness panorama. The time update models the rotation as a random walk;
// the measurement update consumes per-event contrast residuals and their
// analytic Jacobians from EvaluateContrast.
type RotationEKF struct {
	State  r3.Vector     // Rotation vector (axis-angle)
	Cov    *mat.SymDense // 3x3 state covariance
	Config EKFConfig

	lastUnixNanos int64
}

// NewRotationEKF creates a filter with the given tuning.
func NewRotationEKF(cfg EKFConfig) *RotationEKF {
	cov := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, cfg.InitialCov)
	}
	return &RotationEKF{
		State:  cfg.InitialRotation,
		Cov:    cov,
		Config: cfg,
	}
}

// Rotation returns the current state as a rotation matrix.
func (f *RotationEKF) Rotation() Mat3 {
	return ExpMap(f.State)
}

// Predict applies the random-walk time update over dt seconds: the state is
// unchanged, the covariance inflates by Q = ProcessNoise * dt * I.
func (f *RotationEKF) Predict(dtSec float64) {
	if dtSec <= 0 {
		return
	}
	q := f.Config.ProcessNoise * dtSec
	for i := 0; i < 3; i++ {
		f.Cov.SetSym(i, i, f.Cov.At(i, i)+q)
	}
}

// PredictTo advances the filter to an event timestamp. The first call only
// records the timestamp.
func (f *RotationEKF) PredictTo(unixNanos int64) {
	if f.lastUnixNanos > 0 && unixNanos > f.lastUnixNanos {
		f.Predict(float64(unixNanos-f.lastUnixNanos) / 1e9)
	}
	f.lastUnixNanos = unixNanos
}

// Correct applies the measurement update for one event batch. The contrast
// residual and Jacobian are linearised once at the predicted state, then the
// events are folded in as sequential scalar updates: for each event the
// innovation is polarity*ContrastSetpoint minus the predicted contrast.
//
// Any precondition failure in the measurement core (degenerate state,
// missing gradients, bad pixel index) aborts the whole update and leaves the
// state and covariance untouched; the caller skips this correction cycle.
func (f *RotationEKF) Correct(events []Event, eventMap *EventMap, pano *Panorama, calib *Calibration, grads *GradientMap) error {
	if len(events) == 0 {
		return nil
	}

	contrast, jac, err := EvaluateContrast(PixelIndices(events), eventMap, f.State, pano, calib, grads, true)
	if err != nil {
		return fmt.Errorf("measurement evaluation: %w", err)
	}

	state := f.State
	cov := mat.NewSymDense(3, nil)
	cov.CopySym(f.Cov)

	for i, ev := range events {
		h := [3]float64{jac.At(i, 0), jac.At(i, 1), jac.At(i, 2)}

		// Innovation: the event promises a contrast of +-setpoint.
		innovation := float64(ev.Polarity)*f.Config.ContrastSetpoint - contrast[i]

		// Ph = P * h^T, S = h * Ph + R
		var ph [3]float64
		var s float64
		for r := 0; r < 3; r++ {
			ph[r] = cov.At(r, 0)*h[0] + cov.At(r, 1)*h[1] + cov.At(r, 2)*h[2]
			s += h[r] * ph[r]
		}
		s += f.Config.MeasurementNoise
		if s <= 0 {
			return fmt.Errorf("event %d: non-positive innovation variance %g", i, s)
		}

		// Kalman gain K = Ph / S; state += K * innovation
		k := [3]float64{ph[0] / s, ph[1] / s, ph[2] / s}
		state.X += k[0] * innovation
		state.Y += k[1] * innovation
		state.Z += k[2] * innovation

		// P' = (I - K*h) * P = P - K * Ph^T (P symmetric)
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				cov.SetSym(r, c, cov.At(r, c)-k[r]*ph[c])
			}
		}
	}

	f.State = state
	f.Cov = cov
	return nil
}
