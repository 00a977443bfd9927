package tracking

import "github.com/pkg/errors"

// OutputMode selects how the follower drives the actuator.
type OutputMode string

const (
	// OutputVoltage computes feedforward plus software per-wheel PID and
	// commands raw voltages.
	OutputVoltage OutputMode = "voltage"
	// OutputVelocity forwards target wheel speeds plus feedforward
	// voltages to an actuator running its own closed-loop velocity
	// control, tagged with a gain profile.
	OutputVelocity OutputMode = "velocity"
)

// DriveConfig holds the drivetrain geometry.
type DriveConfig struct {
	TrackWidthM float64 `json:"track_width_m"`
}

// Validate checks the geometry is usable.
func (c DriveConfig) Validate() error {
	if c.TrackWidthM <= 0 {
		return errors.Errorf("invalid track_width_m: %f", c.TrackWidthM)
	}
	return nil
}

// FeedforwardConfig holds the linear motor-model gains: static
// friction (volts), velocity (volts per m/s) and acceleration (volts
// per m/s^2).
type FeedforwardConfig struct {
	KsVolts float64 `json:"ks_volts"`
	KvVolts float64 `json:"kv_volts_per_mps"`
	KaVolts float64 `json:"ka_volts_per_mps2"`
}

// Validate checks the model gains are sane.
func (c FeedforwardConfig) Validate() error {
	if c.KsVolts < 0 || c.KvVolts < 0 || c.KaVolts < 0 {
		return errors.Errorf("feedforward gains must be non-negative: ks=%f kv=%f ka=%f",
			c.KsVolts, c.KvVolts, c.KaVolts)
	}
	return nil
}

// PIDConfig holds per-wheel feedback gains for software velocity
// correction. The output is a voltage added on top of feedforward.
type PIDConfig struct {
	Kp             float64 `json:"kp"`
	Ki             float64 `json:"ki"`
	Kd             float64 `json:"kd"`
	IntegralLimit  float64 `json:"integral_limit"`
	MaxOutputVolts float64 `json:"max_output_volts"`
}

// Validate checks the feedback gains are sane.
func (c PIDConfig) Validate() error {
	if c.Kp < 0 || c.Ki < 0 || c.Kd < 0 {
		return errors.Errorf("pid gains must be non-negative: kp=%f ki=%f kd=%f", c.Kp, c.Ki, c.Kd)
	}
	if c.IntegralLimit < 0 {
		return errors.Errorf("invalid integral_limit: %f", c.IntegralLimit)
	}
	if c.MaxOutputVolts < 0 {
		return errors.Errorf("invalid max_output_volts: %f", c.MaxOutputVolts)
	}
	return nil
}

// RamseteConfig holds the tracking-law design constants. B is the gain
// scale (rad^2/m^2), Zeta the damping ratio. There are no universal
// defaults; both are tuning parameters and must be set explicitly.
type RamseteConfig struct {
	B    float64 `json:"b"`
	Zeta float64 `json:"zeta"`
}

// Validate rejects constants outside the stable region of the law.
func (c RamseteConfig) Validate() error {
	if c.B <= 0 {
		return errors.Errorf("ramsete b must be > 0, got %f", c.B)
	}
	if c.Zeta <= 0 || c.Zeta >= 1 {
		return errors.Errorf("ramsete zeta must be in (0, 1), got %f", c.Zeta)
	}
	return nil
}

// FollowerConfig aggregates everything the follower needs beyond its
// injected collaborators.
type FollowerConfig struct {
	Drive       DriveConfig       `json:"drive"`
	Feedforward FeedforwardConfig `json:"feedforward"`
	Ramsete     RamseteConfig     `json:"ramsete"`
	Mode        OutputMode        `json:"mode"`
	// GainProfile selects the actuator-side gain set in velocity mode.
	GainProfile int `json:"gain_profile"`
	// LeftPID and RightPID are required in voltage mode and ignored in
	// velocity mode.
	LeftPID  *PIDConfig `json:"left_pid,omitempty"`
	RightPID *PIDConfig `json:"right_pid,omitempty"`
}

// Validate checks the whole follower configuration. Any error here is
// fatal at construction; the loop refuses to start rather than produce
// undefined motion.
func (c FollowerConfig) Validate() error {
	if err := c.Drive.Validate(); err != nil {
		return err
	}
	if err := c.Feedforward.Validate(); err != nil {
		return err
	}
	if err := c.Ramsete.Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case OutputVoltage:
		if c.LeftPID == nil || c.RightPID == nil {
			return errors.New("voltage mode requires left_pid and right_pid")
		}
		if err := c.LeftPID.Validate(); err != nil {
			return errors.Wrap(err, "left_pid")
		}
		if err := c.RightPID.Validate(); err != nil {
			return errors.Wrap(err, "right_pid")
		}
	case OutputVelocity:
		if c.GainProfile < 0 {
			return errors.Errorf("invalid gain_profile: %d", c.GainProfile)
		}
	default:
		return errors.Errorf("unknown output mode %q", c.Mode)
	}
	return nil
}
