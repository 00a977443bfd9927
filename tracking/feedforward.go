package tracking

// Feedforward is a linear motor-dynamics approximation mapping a wheel
// velocity and acceleration to an open-loop voltage estimate.
type Feedforward struct {
	cfg FeedforwardConfig
}

// NewFeedforward returns a feedforward model with the given gains.
func NewFeedforward(cfg FeedforwardConfig) Feedforward {
	return Feedforward{cfg: cfg}
}

// Calculate returns ks*sign(v) + kv*v + ka*a in volts. Pure function;
// the caller computes acceleration and guarantees finite inputs.
func (f Feedforward) Calculate(velocityMPS, accelMPS2 float64) float64 {
	static := 0.0
	if velocityMPS > 0 {
		static = f.cfg.KsVolts
	} else if velocityMPS < 0 {
		static = -f.cfg.KsVolts
	}
	return static + f.cfg.KvVolts*velocityMPS + f.cfg.KaVolts*accelMPS2
}
