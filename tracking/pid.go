package tracking

// WheelPID implements a discrete PID controller converting wheel-speed
// error into an additive voltage correction. Each drive side gets its
// own instance; state is reset at loop start and never shared across
// runs.
type WheelPID struct {
	cfg PIDConfig

	integral    float64
	prevError   float64
	initialized bool
}

// NewWheelPID creates a wheel correction controller with the given
// gains.
func NewWheelPID(cfg PIDConfig) *WheelPID {
	return &WheelPID{cfg: cfg}
}

// Reset clears the integrator and derivative history.
func (pid *WheelPID) Reset() {
	pid.integral = 0
	pid.prevError = 0
	pid.initialized = false
}

// Calculate returns the correction voltage for the measured vs. target
// wheel speed. dt is the time since the previous call in seconds; a
// zero dt suppresses the integral and derivative terms rather than
// dividing by zero.
func (pid *WheelPID) Calculate(measuredMPS, targetMPS, dt float64) float64 {
	err := targetMPS - measuredMPS

	p := pid.cfg.Kp * err

	var d float64
	if dt > 0 {
		pid.integral += err * dt
		if pid.cfg.IntegralLimit > 0 {
			pid.integral = ClampFloat(pid.integral, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)
		}
		if pid.initialized {
			d = pid.cfg.Kd * (err - pid.prevError) / dt
		}
	}
	i := pid.cfg.Ki * pid.integral

	pid.prevError = err
	pid.initialized = true

	out := p + i + d
	if pid.cfg.MaxOutputVolts > 0 {
		out = ClampFloat(out, -pid.cfg.MaxOutputVolts, pid.cfg.MaxOutputVolts)
	}
	return out
}

// Diagnostics exposes the controller's internal terms for logging.
type Diagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

// Diagnostics returns the current internal state.
func (pid *WheelPID) Diagnostics() Diagnostics {
	return Diagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
	}
}
