package tracking

import "math"

// Pose is a planar robot pose. X and Y are meters, Heading is radians
// with counter-clockwise positive.
type Pose struct {
	X       float64 `json:"x_m"`
	Y       float64 `json:"y_m"`
	Heading float64 `json:"heading_rad"`
}

// WheelSpeeds holds signed linear speeds of the two drive sides in m/s.
type WheelSpeeds struct {
	Left  float64
	Right float64
}

// RobotVelocity is a chassis velocity in the robot's own frame:
// forward linear speed (m/s) and angular speed (rad/s, CCW positive).
type RobotVelocity struct {
	Linear  float64
	Angular float64
}

// WrapAngle normalizes an angle to (-pi, pi].
func WrapAngle(rad float64) float64 {
	wrapped := math.Mod(rad, 2*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	} else if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// ErrorIn expresses the offset from p to target in p's own frame:
// longitudinal, lateral and heading error.
func (p Pose) ErrorIn(target Pose) (ex, ey, etheta float64) {
	dx := target.X - p.X
	dy := target.Y - p.Y
	sin, cos := math.Sincos(p.Heading)
	ex = cos*dx + sin*dy
	ey = -sin*dx + cos*dy
	etheta = WrapAngle(target.Heading - p.Heading)
	return ex, ey, etheta
}

// IsFinite reports whether every field is a finite number.
func (p Pose) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Heading)
}

// IsFinite reports whether both wheel speeds are finite numbers.
func (w WheelSpeeds) IsFinite() bool {
	return isFinite(w.Left) && isFinite(w.Right)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
