package tracking

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"
)

type velocityCmd struct {
	leftMPS, leftFF, rightMPS, rightFF float64
	gainProfile                        int
}

// fakeDrive stands in for every collaborator: pose and wheel-speed
// providers, both actuator flavors and telemetry.
type fakeDrive struct {
	pose   Pose
	speeds WheelSpeeds

	voltages   [][2]float64
	velocities []velocityCmd
	following  []bool
	faults     []string
	posePushes int
}

func (d *fakeDrive) RobotPose() Pose { return d.pose }

func (d *fakeDrive) WheelSpeeds() WheelSpeeds { return d.speeds }

func (d *fakeDrive) SetVoltages(_ context.Context, left, right float64) error {
	d.voltages = append(d.voltages, [2]float64{left, right})
	return nil
}

func (d *fakeDrive) SetVelocities(_ context.Context, leftMPS, leftFF, rightMPS, rightFF float64, gainProfile int) error {
	d.velocities = append(d.velocities, velocityCmd{leftMPS, leftFF, rightMPS, rightFF, gainProfile})
	return nil
}

func (d *fakeDrive) SetFollowing(_ context.Context, following bool) {
	d.following = append(d.following, following)
}

func (d *fakeDrive) PublishPoses(_ context.Context, _, _ Pose) { d.posePushes++ }

func (d *fakeDrive) Fault(_ context.Context, reason string) { d.faults = append(d.faults, reason) }

func constantVelocityTrajectory(durationS, velocityMPS float64) *Trajectory {
	tr, err := NewTrajectory([]State{
		{TimeS: 0, Pose: Pose{}, VelocityMPS: velocityMPS},
		{TimeS: durationS, Pose: Pose{X: durationS * velocityMPS}, VelocityMPS: velocityMPS},
	})
	if err != nil {
		panic(err)
	}
	return tr
}

func voltageConfig() FollowerConfig {
	return FollowerConfig{
		Drive:       DriveConfig{TrackWidthM: 0.6},
		Feedforward: FeedforwardConfig{KsVolts: 0.5, KvVolts: 2.0, KaVolts: 0.3},
		Ramsete:     RamseteConfig{B: 2.0, Zeta: 0.7},
		Mode:        OutputVoltage,
		LeftPID:     &PIDConfig{},
		RightPID:    &PIDConfig{},
	}
}

func newTestFollower(t *testing.T, cfg FollowerConfig, traj *Trajectory) (*Follower, *fakeDrive, *clock.Mock) {
	t.Helper()
	drive := &fakeDrive{}
	mock := clock.NewMock()
	f, err := NewFollower(cfg, traj, Deps{
		Pose:      drive,
		Voltage:   drive,
		Velocity:  drive,
		Telemetry: drive,
		Clock:     mock,
	}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return f, drive, mock
}

func TestNewFollowerValidation(t *testing.T) {
	traj := constantVelocityTrajectory(2.0, 1.0)
	drive := &fakeDrive{}
	logger := golog.NewTestLogger(t)

	for _, tc := range []struct {
		name string
		cfg  func() FollowerConfig
		deps Deps
		traj *Trajectory
	}{
		{"zero track width", func() FollowerConfig {
			c := voltageConfig()
			c.Drive.TrackWidthM = 0
			return c
		}, Deps{Pose: drive, Voltage: drive}, traj},
		{"negative track width", func() FollowerConfig {
			c := voltageConfig()
			c.Drive.TrackWidthM = -0.6
			return c
		}, Deps{Pose: drive, Voltage: drive}, traj},
		{"nil trajectory", voltageConfig, Deps{Pose: drive, Voltage: drive}, nil},
		{"missing pose provider", voltageConfig, Deps{Voltage: drive}, traj},
		{"missing voltage actuator", voltageConfig, Deps{Pose: drive}, traj},
		{"missing pid gains", func() FollowerConfig {
			c := voltageConfig()
			c.LeftPID = nil
			return c
		}, Deps{Pose: drive, Voltage: drive}, traj},
		{"bad zeta", func() FollowerConfig {
			c := voltageConfig()
			c.Ramsete.Zeta = 1.5
			return c
		}, Deps{Pose: drive, Voltage: drive}, traj},
		{"unknown mode", func() FollowerConfig {
			c := voltageConfig()
			c.Mode = "torque"
			return c
		}, Deps{Pose: drive, Voltage: drive}, traj},
		{"missing velocity actuator", func() FollowerConfig {
			c := voltageConfig()
			c.Mode = OutputVelocity
			return c
		}, Deps{Pose: drive}, traj},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFollower(tc.cfg(), tc.traj, tc.deps, logger)
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestFollowerStraightLineScenario(t *testing.T) {
	// Constant 1 m/s straight reference for 2 s, robot exactly on the
	// path the whole way: every tick targets (1.0, 1.0) wheel speeds
	// and commands ks + kv volts per side, acceleration term zero.
	ctx := context.Background()
	traj := constantVelocityTrajectory(2.0, 1.0)
	f, drive, mock := newTestFollower(t, voltageConfig(), traj)

	drive.speeds = WheelSpeeds{Left: 1.0, Right: 1.0}
	test.That(t, f.Start(ctx), test.ShouldBeNil)
	test.That(t, drive.following, test.ShouldResemble, []bool{true})

	const dt = 20 * time.Millisecond
	for i := 0; i < 100; i++ {
		mock.Add(dt)
		elapsed := float64(i+1) * dt.Seconds()
		drive.pose = traj.Sample(elapsed).Pose

		test.That(t, f.Tick(ctx), test.ShouldBeNil)

		snap := f.LastTick()
		test.That(t, snap.Skipped, test.ShouldBeFalse)
		test.That(t, snap.Target.Left, test.ShouldAlmostEqual, 1.0, 1e-9)
		test.That(t, snap.Target.Right, test.ShouldAlmostEqual, 1.0, 1e-9)

		cmd := drive.voltages[len(drive.voltages)-1]
		test.That(t, cmd[0], test.ShouldAlmostEqual, 0.5+2.0, 1e-9)
		test.That(t, cmd[1], test.ShouldAlmostEqual, 0.5+2.0, 1e-9)
	}

	test.That(t, f.IsFinished(), test.ShouldBeTrue)

	// Non-stationary end state: the final command stands, nothing
	// zeroed the output.
	last := drive.voltages[len(drive.voltages)-1]
	test.That(t, last[0], test.ShouldNotAlmostEqual, 0)

	f.Stop(ctx, false)
	test.That(t, f.IsFinished(), test.ShouldBeTrue)
	test.That(t, drive.following, test.ShouldResemble, []bool{true, false})

	// Stop is idempotent.
	f.Stop(ctx, false)
	test.That(t, drive.following, test.ShouldResemble, []bool{true, false})
}

func TestFollowerZeroDtTick(t *testing.T) {
	// A tick issued at the same instant as Start must not divide by
	// zero; the acceleration term is suppressed and output is finite.
	ctx := context.Background()
	f, drive, _ := newTestFollower(t, voltageConfig(), constantVelocityTrajectory(2.0, 1.0))

	drive.speeds = WheelSpeeds{Left: 1.0, Right: 1.0}
	test.That(t, f.Start(ctx), test.ShouldBeNil)
	test.That(t, f.Tick(ctx), test.ShouldBeNil)

	test.That(t, len(drive.voltages), test.ShouldEqual, 1)
	cmd := drive.voltages[0]
	test.That(t, math.IsNaN(cmd[0]) || math.IsInf(cmd[0], 0), test.ShouldBeFalse)
	test.That(t, math.IsNaN(cmd[1]) || math.IsInf(cmd[1], 0), test.ShouldBeFalse)
	test.That(t, cmd[0], test.ShouldAlmostEqual, 0.5+2.0, 1e-9)
}

func TestFollowerVelocityMode(t *testing.T) {
	ctx := context.Background()
	cfg := voltageConfig()
	cfg.Mode = OutputVelocity
	cfg.GainProfile = 2
	cfg.LeftPID, cfg.RightPID = nil, nil

	traj := constantVelocityTrajectory(2.0, 1.0)
	f, drive, mock := newTestFollower(t, cfg, traj)

	test.That(t, f.Start(ctx), test.ShouldBeNil)
	mock.Add(20 * time.Millisecond)
	drive.pose = traj.Sample(0.02).Pose
	test.That(t, f.Tick(ctx), test.ShouldBeNil)

	// Velocity mode forwards speed targets plus feedforward, tagged
	// with the gain profile; no raw voltages are commanded.
	test.That(t, len(drive.voltages), test.ShouldEqual, 0)
	test.That(t, len(drive.velocities), test.ShouldEqual, 1)
	cmd := drive.velocities[0]
	test.That(t, cmd.gainProfile, test.ShouldEqual, 2)
	test.That(t, cmd.leftMPS, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, cmd.rightMPS, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, cmd.leftFF, test.ShouldAlmostEqual, 0.5+2.0, 1e-9)
}

func TestFollowerPIDCorrection(t *testing.T) {
	ctx := context.Background()
	cfg := voltageConfig()
	cfg.LeftPID = &PIDConfig{Kp: 1.0}
	cfg.RightPID = &PIDConfig{Kp: 1.0}

	traj := constantVelocityTrajectory(2.0, 1.0)
	f, drive, mock := newTestFollower(t, cfg, traj)

	// Wheels measured slower than target: the proportional correction
	// adds on top of feedforward.
	drive.speeds = WheelSpeeds{Left: 0.5, Right: 0.5}
	test.That(t, f.Start(ctx), test.ShouldBeNil)
	mock.Add(20 * time.Millisecond)
	drive.pose = traj.Sample(0.02).Pose
	test.That(t, f.Tick(ctx), test.ShouldBeNil)

	cmd := drive.voltages[0]
	test.That(t, cmd[0], test.ShouldAlmostEqual, 0.5+2.0+0.5, 1e-9)
	test.That(t, cmd[1], test.ShouldAlmostEqual, 0.5+2.0+0.5, 1e-9)
}

func TestFollowerNonFinitePose(t *testing.T) {
	ctx := context.Background()
	traj := constantVelocityTrajectory(2.0, 1.0)
	f, drive, mock := newTestFollower(t, voltageConfig(), traj)

	drive.speeds = WheelSpeeds{Left: 1.0, Right: 1.0}
	test.That(t, f.Start(ctx), test.ShouldBeNil)

	mock.Add(20 * time.Millisecond)
	drive.pose = Pose{X: math.NaN()}
	test.That(t, f.Tick(ctx), test.ShouldBeNil)

	// The tick commanded nothing and flagged the condition.
	test.That(t, len(drive.voltages), test.ShouldEqual, 0)
	test.That(t, len(drive.faults), test.ShouldEqual, 1)
	test.That(t, f.LastTick().Skipped, test.ShouldBeTrue)

	// The next tick with good input recovers within the run.
	mock.Add(20 * time.Millisecond)
	drive.pose = traj.Sample(0.04).Pose
	test.That(t, f.Tick(ctx), test.ShouldBeNil)
	test.That(t, len(drive.voltages), test.ShouldEqual, 1)
	test.That(t, f.LastTick().Skipped, test.ShouldBeFalse)
}

func TestFollowerNonFiniteWheelSpeeds(t *testing.T) {
	ctx := context.Background()
	traj := constantVelocityTrajectory(2.0, 1.0)
	f, drive, mock := newTestFollower(t, voltageConfig(), traj)

	drive.speeds = WheelSpeeds{Left: math.NaN(), Right: 1.0}
	test.That(t, f.Start(ctx), test.ShouldBeNil)
	mock.Add(20 * time.Millisecond)
	drive.pose = traj.Sample(0.02).Pose
	test.That(t, f.Tick(ctx), test.ShouldBeNil)

	test.That(t, len(drive.voltages), test.ShouldEqual, 0)
	test.That(t, len(drive.faults), test.ShouldEqual, 1)
	test.That(t, f.LastTick().Skipped, test.ShouldBeTrue)
}

func TestFollowerLifecycle(t *testing.T) {
	ctx := context.Background()
	f, _, mock := newTestFollower(t, voltageConfig(), constantVelocityTrajectory(2.0, 1.0))

	// Not started yet.
	test.That(t, f.IsFinished(), test.ShouldBeFalse)
	test.That(t, f.Tick(ctx), test.ShouldNotBeNil)

	test.That(t, f.Start(ctx), test.ShouldBeNil)
	test.That(t, f.Start(ctx), test.ShouldNotBeNil)
	test.That(t, f.IsFinished(), test.ShouldBeFalse)

	// Interrupted mid-run: terminal cleanup still happens and the
	// instance cannot be restarted.
	mock.Add(500 * time.Millisecond)
	f.Stop(ctx, true)
	test.That(t, f.IsFinished(), test.ShouldBeTrue)
	test.That(t, f.Start(ctx), test.ShouldNotBeNil)
	test.That(t, f.Tick(ctx), test.ShouldNotBeNil)
}

func TestFollowerFinishedStaysFinished(t *testing.T) {
	ctx := context.Background()
	traj := constantVelocityTrajectory(1.0, 1.0)
	f, drive, mock := newTestFollower(t, voltageConfig(), traj)

	drive.speeds = WheelSpeeds{Left: 1.0, Right: 1.0}
	test.That(t, f.Start(ctx), test.ShouldBeNil)

	mock.Add(1200 * time.Millisecond)
	drive.pose = traj.Sample(1.2).Pose
	test.That(t, f.Tick(ctx), test.ShouldBeNil)

	test.That(t, f.IsFinished(), test.ShouldBeTrue)
	mock.Add(time.Second)
	test.That(t, f.IsFinished(), test.ShouldBeTrue)
	f.Stop(ctx, false)
	test.That(t, f.IsFinished(), test.ShouldBeTrue)
}
