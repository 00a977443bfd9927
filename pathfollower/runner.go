package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"ddrive-tracking-core/tracking"
	"ddrive-tracking-core/utils"
)

// RunnerConfig locates the bus and the run description.
type RunnerConfig struct {
	Interface   string
	MapPath     string
	ProfilePath string
}

// Runner wires the CAN drivetrain to a follower and drives one
// path-following run at the profile's tick period.
type Runner struct {
	cfg      RunnerConfig
	logger   golog.Logger
	profile  Profile
	writer   utils.FrameWriter
	reader   utils.FrameReader
	drive    *canDrivetrain
	follower *tracking.Follower
}

// NewRunner loads the bus map, profile and trajectory, dials the bus
// and constructs the follower. Every configuration problem surfaces
// here, before anything moves.
func NewRunner(ctx context.Context, cfg RunnerConfig, logger golog.Logger) (*Runner, error) {
	bus, err := utils.LoadBusMap(cfg.MapPath)
	if err != nil {
		return nil, errors.Wrap(err, "load bus map")
	}

	profile, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}

	traj, err := BuildTrajectory(profile)
	if err != nil {
		return nil, errors.Wrap(err, "build trajectory")
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	drive := newCANDrivetrain(bus, writer, profile.Frames,
		time.Duration(profile.Timing.StaleMS)*time.Millisecond, logger)

	follower, err := tracking.NewFollower(profile.Follower, traj, tracking.Deps{
		Pose:      drive,
		Voltage:   drive,
		Velocity:  drive,
		Telemetry: drive,
	}, logger)
	if err != nil {
		reader.Close()
		writer.Close()
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		logger:   logger,
		profile:  profile,
		writer:   writer,
		reader:   reader,
		drive:    drive,
		follower: follower,
	}, nil
}

// Close releases the bus sockets.
func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

// Run executes the path-following run to completion or cancellation.
// Cancellation at any tick boundary still performs terminal cleanup so
// the actuator is never left mid-mode.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Infof("starting run: profile=%s mode=%s tick=%dms iface=%s",
		r.profile.Meta.Name, r.profile.Follower.Mode, r.profile.Timing.TickMS, r.cfg.Interface)

	go r.receiveLoop(ctx)

	if err := r.follower.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(r.profile.Timing.TickMS) * time.Millisecond)
	defer ticker.Stop()

	var ticks uint64
	for {
		select {
		case <-ctx.Done():
			r.logger.Warnf("run canceled; stopping follower")
			r.follower.Stop(ctx, true)
			return ctx.Err()

		case <-ticker.C:
			if err := r.follower.Tick(ctx); err != nil {
				r.follower.Stop(ctx, true)
				return err
			}
			ticks++

			if ticks%50 == 0 {
				snap := r.follower.LastTick()
				r.logger.Debugf("tick t=%.3f dt=%.3f target=(%.2f, %.2f) ff=(%.2f, %.2f) skipped=%v",
					snap.ElapsedS, snap.DtS, snap.Target.Left, snap.Target.Right,
					snap.LeftFFVolts, snap.RightFFVolts, snap.Skipped)
			}

			if r.follower.IsFinished() {
				r.follower.Stop(ctx, false)
				r.logger.Infof("run complete: ticks=%d", ticks)
				return nil
			}
		}
	}
}

// receiveLoop feeds received frames to the drivetrain adapter until
// the context ends.
func (r *Runner) receiveLoop(ctx context.Context) {
	r.logger.Debugf("rx loop started")
	defer r.logger.Debugf("rx loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warnf("rx error: %v", err)
			continue
		}
		r.drive.handleFrame(frame)
	}
}
