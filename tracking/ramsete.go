package tracking

import (
	"math"

	"github.com/pkg/errors"
)

// Ramsete is the time-varying nonlinear feedback law for tracking a
// reference trajectory with a unicycle/differential-drive model. Given
// the current pose and a reference state it outputs a corrected chassis
// velocity that converges the tracking error exponentially to zero for
// feasible references and small initial error.
//
// It is a feedback law, not an optimizer: no iteration, no internal
// state, no failure mode beyond propagating non-finite inputs.
type Ramsete struct {
	b    float64
	zeta float64
}

// NewRamsete validates the design constants and returns the law.
func NewRamsete(cfg RamseteConfig) (*Ramsete, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "ramsete")
	}
	return &Ramsete{b: cfg.B, zeta: cfg.Zeta}, nil
}

// Calculate returns the corrected chassis velocity for the current
// pose and reference state.
//
// The pose error is expressed in the robot frame as (ex, ey, etheta).
// With vRef and wRef the reference linear/angular velocities, the gain
// k = 2*zeta*sqrt(wRef^2 + b*vRef^2) scales the proportional terms:
//
//	v = vRef*cos(etheta) + k*ex
//	w = wRef + k*etheta + b*vRef*sinc(etheta)*ey
//
// On a stationary reference with zero error both outputs are exactly
// zero, so the law does not chatter at rest.
func (r *Ramsete) Calculate(current Pose, ref State) RobotVelocity {
	ex, ey, etheta := current.ErrorIn(ref.Pose)

	vRef := ref.VelocityMPS
	wRef := ref.AngularVelocity()

	k := 2 * r.zeta * math.Sqrt(wRef*wRef+r.b*vRef*vRef)

	return RobotVelocity{
		Linear:  vRef*math.Cos(etheta) + k*ex,
		Angular: wRef + k*etheta + r.b*vRef*sinc(etheta)*ey,
	}
}

// sinc is sin(x)/x with the removable singularity filled in.
func sinc(x float64) float64 {
	if math.Abs(x) < 1e-9 {
		return 1
	}
	return math.Sin(x) / x
}
