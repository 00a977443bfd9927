package tracking

// Kinematics converts between chassis velocities and per-side wheel
// speeds for a differential drive with the given track width.
//
// Sign convention: positive angular velocity is counter-clockwise, so
// the right side runs faster than the left during a positive turn.
type Kinematics struct {
	trackWidthM float64
}

// NewKinematics returns a kinematics model for the given track width in
// meters. The track width must be validated positive by the caller; see
// DriveConfig.Validate.
func NewKinematics(trackWidthM float64) Kinematics {
	return Kinematics{trackWidthM: trackWidthM}
}

// ToWheelSpeeds converts a chassis velocity into left/right wheel
// linear speeds.
func (k Kinematics) ToWheelSpeeds(v RobotVelocity) WheelSpeeds {
	half := v.Angular * k.trackWidthM / 2
	return WheelSpeeds{
		Left:  v.Linear - half,
		Right: v.Linear + half,
	}
}

// ToRobotVelocity converts left/right wheel speeds back into a chassis
// velocity. Inverse of ToWheelSpeeds.
func (k Kinematics) ToRobotVelocity(w WheelSpeeds) RobotVelocity {
	return RobotVelocity{
		Linear:  (w.Left + w.Right) / 2,
		Angular: (w.Right - w.Left) / k.trackWidthM,
	}
}
