package tracking

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// PoseProvider supplies the live robot pose, polled once per tick.
type PoseProvider interface {
	RobotPose() Pose
}

// VoltageActuator is a drivetrain commanded with raw per-side voltages.
// It also supplies measured wheel speeds for software PID correction.
type VoltageActuator interface {
	WheelSpeeds() WheelSpeeds
	SetVoltages(ctx context.Context, leftVolts, rightVolts float64) error
}

// VelocityActuator is a drivetrain running its own closed-loop velocity
// control. It receives target speeds plus feedforward voltages, tagged
// with a gain-profile selector.
type VelocityActuator interface {
	SetVelocities(ctx context.Context, leftMPS, leftFFVolts, rightMPS, rightFFVolts float64, gainProfile int) error
}

// Telemetry receives follower state for outward publishing. It is a
// shim; implementations must not block the tick.
type Telemetry interface {
	SetFollowing(ctx context.Context, following bool)
	PublishPoses(ctx context.Context, actual, reference Pose)
	Fault(ctx context.Context, reason string)
}

type noopTelemetry struct{}

func (noopTelemetry) SetFollowing(context.Context, bool) {}

func (noopTelemetry) PublishPoses(context.Context, Pose, Pose) {}

func (noopTelemetry) Fault(context.Context, string) {}

// Deps are the follower's injected collaborators. Pose is always
// required; exactly one of Voltage/Velocity is used depending on the
// configured output mode. Telemetry and Clock are optional.
type Deps struct {
	Pose      PoseProvider
	Voltage   VoltageActuator
	Velocity  VelocityActuator
	Telemetry Telemetry
	Clock     clock.Clock
}

var errNonFiniteFeedback = errors.New("non-finite wheel speed feedback")

// driveOutput is the per-mode output path: it turns target wheel
// speeds plus feedforward voltages into an actuator command.
type driveOutput interface {
	reset()
	apply(ctx context.Context, target WheelSpeeds, leftFFVolts, rightFFVolts, dt float64) error
}

// voltageOutput adds software per-wheel PID correction on top of
// feedforward and commands raw voltages.
type voltageOutput struct {
	actuator VoltageActuator
	left     *WheelPID
	right    *WheelPID
}

func (o *voltageOutput) reset() {
	o.left.Reset()
	o.right.Reset()
}

func (o *voltageOutput) apply(ctx context.Context, target WheelSpeeds, leftFFVolts, rightFFVolts, dt float64) error {
	measured := o.actuator.WheelSpeeds()
	if !measured.IsFinite() {
		return errNonFiniteFeedback
	}
	leftVolts := leftFFVolts + o.left.Calculate(measured.Left, target.Left, dt)
	rightVolts := rightFFVolts + o.right.Calculate(measured.Right, target.Right, dt)
	return o.actuator.SetVoltages(ctx, leftVolts, rightVolts)
}

// velocityOutput forwards speed targets and feedforward voltages to an
// externally closed-loop actuator; no software PID is involved.
type velocityOutput struct {
	actuator    VelocityActuator
	gainProfile int
}

func (o *velocityOutput) reset() {}

func (o *velocityOutput) apply(ctx context.Context, target WheelSpeeds, leftFFVolts, rightFFVolts, _ float64) error {
	return o.actuator.SetVelocities(ctx, target.Left, leftFFVolts, target.Right, rightFFVolts, o.gainProfile)
}

type followerState int

const (
	stateIdle followerState = iota
	stateRunning
	stateFinished
)

// TickSnapshot captures what the follower computed on its most recent
// tick, for logging and diagnostics.
type TickSnapshot struct {
	ElapsedS     float64
	DtS          float64
	Actual       Pose
	Reference    State
	Target       WheelSpeeds
	LeftFFVolts  float64
	RightFFVolts float64
	// Skipped is set when the tick issued no actuator command because
	// sensor input was not finite.
	Skipped bool
}

// Follower owns one trajectory-following run over a differential
// drivetrain. It sequences sampling, the tracking law, kinematics and
// the output path once per externally scheduled tick.
//
// Lifecycle is Idle -> Running (Start) -> Finished (Stop); a finished
// follower cannot be restarted, a fresh run needs a new instance. All
// methods are intended for a single goroutine; the surrounding
// scheduler guarantees exclusive drivetrain access and non-overlapping
// ticks.
type Follower struct {
	logger    golog.Logger
	clk       clock.Clock
	traj      *Trajectory
	kin       Kinematics
	ff        Feedforward
	law       *Ramsete
	pose      PoseProvider
	telemetry Telemetry
	output    driveOutput

	state      followerState
	startedAt  time.Time
	prevTimeS  float64
	prevSpeeds WheelSpeeds
	lastTick   TickSnapshot
}

// NewFollower validates the configuration and wires the follower. The
// output path is selected here, once, from cfg.Mode. A nil trajectory,
// missing collaborator or invalid gain set is fatal: the loop refuses
// to construct rather than produce undefined motion.
func NewFollower(cfg FollowerConfig, traj *Trajectory, deps Deps, logger golog.Logger) (*Follower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if traj == nil {
		return nil, errors.New("trajectory is required")
	}
	if deps.Pose == nil {
		return nil, errors.New("pose provider is required")
	}

	var output driveOutput
	switch cfg.Mode {
	case OutputVoltage:
		if deps.Voltage == nil {
			return nil, errors.New("voltage mode requires a voltage actuator")
		}
		output = &voltageOutput{
			actuator: deps.Voltage,
			left:     NewWheelPID(*cfg.LeftPID),
			right:    NewWheelPID(*cfg.RightPID),
		}
	case OutputVelocity:
		if deps.Velocity == nil {
			return nil, errors.New("velocity mode requires a velocity actuator")
		}
		output = &velocityOutput{actuator: deps.Velocity, gainProfile: cfg.GainProfile}
	}

	law, err := NewRamsete(cfg.Ramsete)
	if err != nil {
		return nil, err
	}
	telemetry := deps.Telemetry
	if telemetry == nil {
		telemetry = noopTelemetry{}
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Follower{
		logger:    logger,
		clk:       clk,
		traj:      traj,
		kin:       NewKinematics(cfg.Drive.TrackWidthM),
		ff:        NewFeedforward(cfg.Feedforward),
		law:       law,
		pose:      deps.Pose,
		telemetry: telemetry,
		output:    output,
	}, nil
}

// Start begins the run: resets the elapsed clock and PID state, seeds
// the previous wheel-speed targets from the trajectory's initial state
// and raises the "following" telemetry signal.
func (f *Follower) Start(ctx context.Context) error {
	switch f.state {
	case stateRunning:
		return errors.New("follower already running")
	case stateFinished:
		return errors.New("follower is finished and cannot be reused")
	}

	initial := f.traj.InitialState()
	f.prevTimeS = 0
	f.prevSpeeds = f.kin.ToWheelSpeeds(RobotVelocity{
		Linear:  initial.VelocityMPS,
		Angular: initial.AngularVelocity(),
	})
	f.output.reset()
	f.startedAt = f.clk.Now()
	f.state = stateRunning

	f.telemetry.SetFollowing(ctx, true)
	f.telemetry.PublishPoses(ctx, f.pose.RobotPose(), initial.Pose)
	f.logger.Infof("path following started: duration=%.2fs", f.traj.Duration())
	return nil
}

// Tick runs one control period: sample the reference at the current
// elapsed time, compute the tracking correction, convert to wheel
// targets and drive the configured output path. Non-finite sensor
// input skips the actuator command for this tick and raises a
// telemetry fault instead of commanding motion from garbage.
func (f *Follower) Tick(ctx context.Context) error {
	if f.state != stateRunning {
		return errors.New("follower is not running")
	}

	elapsed := f.clk.Since(f.startedAt).Seconds()
	dt := elapsed - f.prevTimeS

	ref := f.traj.Sample(elapsed)
	actual := f.pose.RobotPose()
	if !actual.IsFinite() {
		f.skipTick(ctx, elapsed, dt, actual, ref, "non-finite pose from provider")
		return nil
	}

	target := f.kin.ToWheelSpeeds(f.law.Calculate(actual, ref))

	// dt is zero on a tick coinciding with Start; the previous targets
	// were seeded from the initial sample, so suppressing the
	// acceleration term is exact there.
	var leftAccel, rightAccel float64
	if dt > 0 {
		leftAccel = (target.Left - f.prevSpeeds.Left) / dt
		rightAccel = (target.Right - f.prevSpeeds.Right) / dt
	}
	leftFF := f.ff.Calculate(target.Left, leftAccel)
	rightFF := f.ff.Calculate(target.Right, rightAccel)

	if err := f.output.apply(ctx, target, leftFF, rightFF, dt); err != nil {
		if errors.Is(err, errNonFiniteFeedback) {
			f.skipTick(ctx, elapsed, dt, actual, ref, "non-finite wheel speeds from provider")
			return nil
		}
		return errors.Wrap(err, "drive output")
	}

	f.prevTimeS = elapsed
	f.prevSpeeds = target
	f.lastTick = TickSnapshot{
		ElapsedS:     elapsed,
		DtS:          dt,
		Actual:       actual,
		Reference:    ref,
		Target:       target,
		LeftFFVolts:  leftFF,
		RightFFVolts: rightFF,
	}
	f.telemetry.PublishPoses(ctx, actual, ref.Pose)
	return nil
}

// skipTick records a tick that issued no motor command. The elapsed
// clock still advances so a single bad sample cannot inflate the next
// tick's acceleration term.
func (f *Follower) skipTick(ctx context.Context, elapsed, dt float64, actual Pose, ref State, reason string) {
	f.prevTimeS = elapsed
	f.lastTick = TickSnapshot{
		ElapsedS:  elapsed,
		DtS:       dt,
		Actual:    actual,
		Reference: ref,
		Target:    f.prevSpeeds,
		Skipped:   true,
	}
	f.telemetry.Fault(ctx, reason)
	f.logger.Warnf("skipping motor command at t=%.3fs: %s", elapsed, reason)
}

// Stop ends the run, whether it completed or was interrupted by the
// scheduler. It is idempotent. The last commanded output is left
// standing: a non-stationary end state is a valid path outcome and
// zeroing it is the caller's decision.
func (f *Follower) Stop(ctx context.Context, interrupted bool) {
	if f.state == stateFinished {
		return
	}
	wasRunning := f.state == stateRunning
	f.state = stateFinished
	if wasRunning {
		f.telemetry.SetFollowing(ctx, false)
		f.logger.Infof("path following stopped: interrupted=%v elapsed=%.3fs", interrupted, f.clk.Since(f.startedAt).Seconds())
	}
}

// IsFinished reports whether the elapsed time has covered the whole
// trajectory, or the run has been stopped. Once true it stays true.
func (f *Follower) IsFinished() bool {
	switch f.state {
	case stateRunning:
		return f.clk.Since(f.startedAt).Seconds() >= f.traj.Duration()
	case stateFinished:
		return true
	}
	return false
}

// LastTick returns a snapshot of the most recent tick's computation.
func (f *Follower) LastTick() TickSnapshot {
	return f.lastTick
}
