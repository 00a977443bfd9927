package tracking

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// MotionLimits bound the speed profile of generated trajectories.
type MotionLimits struct {
	MaxVelocityMPS float64 `json:"max_velocity_mps"`
	MaxAccelMPS2   float64 `json:"max_accel_mps2"`
	TimeStepS      float64 `json:"time_step_s"`
}

// Validate checks the limits describe a feasible profile.
func (l MotionLimits) Validate() error {
	if l.MaxVelocityMPS <= 0 {
		return errors.Errorf("invalid max_velocity_mps: %f", l.MaxVelocityMPS)
	}
	if l.MaxAccelMPS2 <= 0 {
		return errors.Errorf("invalid max_accel_mps2: %f", l.MaxAccelMPS2)
	}
	if l.TimeStepS <= 0 {
		return errors.Errorf("invalid time_step_s: %f", l.TimeStepS)
	}
	return nil
}

// trapezoidProfile is a rest-to-rest speed profile over a fixed path
// length: accelerate at the limit, cruise, decelerate. Collapses to a
// triangle when the length is too short to reach cruise speed.
type trapezoidProfile struct {
	accel   float64
	peakV   float64
	accelT  float64
	cruiseT float64
}

func newTrapezoidProfile(lengthM float64, lim MotionLimits) trapezoidProfile {
	peak := math.Min(lim.MaxVelocityMPS, math.Sqrt(lim.MaxAccelMPS2*lengthM))
	accelT := peak / lim.MaxAccelMPS2
	cruise := (lengthM - peak*accelT) / peak
	if cruise < 0 {
		cruise = 0
	}
	return trapezoidProfile{
		accel:   lim.MaxAccelMPS2,
		peakV:   peak,
		accelT:  accelT,
		cruiseT: cruise,
	}
}

func (p trapezoidProfile) totalTime() float64 {
	return 2*p.accelT + p.cruiseT
}

// at returns distance traveled and speed at time t along the profile.
func (p trapezoidProfile) at(t float64) (dist, vel float64) {
	switch {
	case t <= 0:
		return 0, 0
	case t < p.accelT:
		return 0.5 * p.accel * t * t, p.accel * t
	case t < p.accelT+p.cruiseT:
		dAccel := 0.5 * p.accel * p.accelT * p.accelT
		return dAccel + p.peakV*(t-p.accelT), p.peakV
	case t < p.totalTime():
		remaining := p.totalTime() - t
		dAll := p.accelT*p.peakV + p.cruiseT*p.peakV
		return dAll - 0.5*p.accel*remaining*remaining, p.accel * remaining
	default:
		return p.accelT*p.peakV + p.cruiseT*p.peakV, 0
	}
}

// poseAlong advances start by arc length s along a constant-curvature
// path. Zero curvature is a straight line.
func poseAlong(start Pose, s, curvature float64) Pose {
	if curvature == 0 {
		sin, cos := math.Sincos(start.Heading)
		return Pose{
			X:       start.X + s*cos,
			Y:       start.Y + s*sin,
			Heading: start.Heading,
		}
	}
	end := start.Heading + curvature*s
	return Pose{
		X:       start.X + (math.Sin(end)-math.Sin(start.Heading))/curvature,
		Y:       start.Y - (math.Cos(end)-math.Cos(start.Heading))/curvature,
		Heading: WrapAngle(end),
	}
}

// StraightTrajectory builds a rest-to-rest straight-line trajectory of
// the given length starting at start.
func StraightTrajectory(start Pose, lengthM float64, lim MotionLimits) (*Trajectory, error) {
	return generateTrajectory(start, lengthM, 0, lim)
}

// ArcTrajectory builds a rest-to-rest constant-curvature trajectory of
// the given arc length starting at start. Positive curvature turns
// left.
func ArcTrajectory(start Pose, lengthM, curvature float64, lim MotionLimits) (*Trajectory, error) {
	return generateTrajectory(start, lengthM, curvature, lim)
}

func generateTrajectory(start Pose, lengthM, curvature float64, lim MotionLimits) (*Trajectory, error) {
	if err := lim.Validate(); err != nil {
		return nil, err
	}
	if lengthM <= 0 {
		return nil, errors.Errorf("invalid path length: %f", lengthM)
	}
	if !start.IsFinite() || !isFinite(curvature) {
		return nil, errors.New("start pose and curvature must be finite")
	}

	profile := newTrapezoidProfile(lengthM, lim)
	total := profile.totalTime()
	n := int(math.Ceil(total/lim.TimeStepS)) + 1
	if n < 2 {
		n = 2
	}
	ts := floats.Span(make([]float64, n), 0, total)

	states := make([]State, n)
	for i, t := range ts {
		dist, vel := profile.at(t)
		states[i] = State{
			TimeS:            t,
			Pose:             poseAlong(start, dist, curvature),
			VelocityMPS:      vel,
			CurvatureRadPerM: curvature,
		}
	}
	return NewTrajectory(states)
}
