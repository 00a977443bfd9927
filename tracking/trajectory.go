package tracking

import (
	"sort"

	"github.com/pkg/errors"
)

// State is a single time-stamped sample of a reference trajectory.
type State struct {
	TimeS            float64 `json:"t_s"`
	Pose             Pose    `json:"pose"`
	VelocityMPS      float64 `json:"velocity_mps"`
	CurvatureRadPerM float64 `json:"curvature_rad_per_m"`
}

// AngularVelocity returns the reference angular velocity implied by
// the sample's linear velocity and curvature.
func (s State) AngularVelocity() float64 {
	return s.VelocityMPS * s.CurvatureRadPerM
}

// Trajectory is an immutable, time-indexed sequence of states covering
// [0, Duration()]. It is owned by a single follower for the lifetime of
// one run and is safe for concurrent reads.
type Trajectory struct {
	states []State
}

// NewTrajectory validates the sample sequence and wraps it. The
// sequence must be non-empty, start at t=0, have monotonic
// non-decreasing timestamps and contain only finite values.
func NewTrajectory(states []State) (*Trajectory, error) {
	if len(states) == 0 {
		return nil, errors.New("trajectory has no states")
	}
	if states[0].TimeS != 0 {
		return nil, errors.Errorf("trajectory must start at t=0, got t=%f", states[0].TimeS)
	}
	for i, s := range states {
		if !s.Pose.IsFinite() || !isFinite(s.TimeS) || !isFinite(s.VelocityMPS) || !isFinite(s.CurvatureRadPerM) {
			return nil, errors.Errorf("trajectory state %d is not finite", i)
		}
		if i > 0 && s.TimeS < states[i-1].TimeS {
			return nil, errors.Errorf("trajectory timestamps must be non-decreasing: state %d at t=%f after t=%f",
				i, s.TimeS, states[i-1].TimeS)
		}
	}
	cp := make([]State, len(states))
	copy(cp, states)
	return &Trajectory{states: cp}, nil
}

// States returns a copy of the underlying samples.
func (tr *Trajectory) States() []State {
	cp := make([]State, len(tr.states))
	copy(cp, tr.states)
	return cp
}

// Duration returns the timestamp of the final sample in seconds.
func (tr *Trajectory) Duration() float64 {
	return tr.states[len(tr.states)-1].TimeS
}

// InitialState returns the sample at t=0.
func (tr *Trajectory) InitialState() State {
	return tr.states[0]
}

// Sample returns the interpolated reference state at elapsed time t.
// Times outside [0, Duration()] clamp to the first/last sample, so a
// late tick degrades gracefully instead of extrapolating.
//
// Between samples, velocity and curvature interpolate linearly; the
// pose interpolates linearly in x/y with shortest-arc heading
// interpolation. This assumes the source produced dense, monotonically
// spaced samples.
func (tr *Trajectory) Sample(t float64) State {
	states := tr.states
	if t <= states[0].TimeS {
		return states[0]
	}
	if t >= tr.Duration() {
		return states[len(states)-1]
	}

	// First sample strictly after t; never 0 and never out of range
	// given the clamps above.
	hi := sort.Search(len(states), func(i int) bool { return states[i].TimeS > t })
	next := states[hi]
	prev := states[hi-1]

	span := next.TimeS - prev.TimeS
	if span <= 0 {
		// Repeated timestamp; either endpoint is the exact sample.
		return next
	}
	s := (t - prev.TimeS) / span

	return State{
		TimeS: t,
		Pose: Pose{
			X:       lerp(prev.Pose.X, next.Pose.X, s),
			Y:       lerp(prev.Pose.Y, next.Pose.Y, s),
			Heading: lerpAngle(prev.Pose.Heading, next.Pose.Heading, s),
		},
		VelocityMPS:      lerp(prev.VelocityMPS, next.VelocityMPS, s),
		CurvatureRadPerM: lerp(prev.CurvatureRadPerM, next.CurvatureRadPerM, s),
	}
}
