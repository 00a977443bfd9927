package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.einride.tech/can"

	"ddrive-tracking-core/tracking"
	"ddrive-tracking-core/utils"
)

// canDrivetrain adapts the drivetrain CAN bus to the follower's
// collaborator interfaces: pose and wheel-speed feedback decoded from
// received frames, actuator commands and telemetry encoded onto
// transmit frames.
//
// Feedback older than the staleness bound is reported as NaN so the
// follower skips the tick instead of commanding motion from stale
// input.
type canDrivetrain struct {
	logger golog.Logger
	clk    clock.Clock
	bus    *utils.BusMap
	writer utils.FrameWriter
	frames FrameNames
	stale  time.Duration

	mu       sync.Mutex
	pose     tracking.Pose
	poseAt   time.Time
	speeds   tracking.WheelSpeeds
	speedsAt time.Time
}

func newCANDrivetrain(bus *utils.BusMap, writer utils.FrameWriter, frames FrameNames, stale time.Duration, logger golog.Logger) *canDrivetrain {
	return &canDrivetrain{
		logger: logger,
		clk:    clock.New(),
		bus:    bus,
		writer: writer,
		frames: frames,
		stale:  stale,
	}
}

var poseUnavailable = tracking.Pose{X: math.NaN(), Y: math.NaN(), Heading: math.NaN()}

// RobotPose returns the latest decoded pose, or a NaN pose when none
// has arrived recently enough.
func (d *canDrivetrain) RobotPose() tracking.Pose {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.poseAt.IsZero() || d.clk.Since(d.poseAt) > d.stale {
		return poseUnavailable
	}
	return d.pose
}

// WheelSpeeds returns the latest decoded wheel speeds, or NaN speeds
// when none have arrived recently enough.
func (d *canDrivetrain) WheelSpeeds() tracking.WheelSpeeds {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.speedsAt.IsZero() || d.clk.Since(d.speedsAt) > d.stale {
		return tracking.WheelSpeeds{Left: math.NaN(), Right: math.NaN()}
	}
	return d.speeds
}

// handleFrame decodes one received frame and caches any feedback it
// carries. Called from the runner's receive loop.
func (d *canDrivetrain) handleFrame(frame can.Frame) {
	fd, err := d.bus.FrameByID(uint32(frame.ID))
	if err != nil {
		return // not a frame we know
	}

	values, err := d.bus.DecodeFrame(uint32(frame.ID), frame.Data[:frame.Length])
	if err != nil {
		d.logger.Warnf("decode frame %s: %v", fd.Name, err)
		return
	}

	switch fd.Name {
	case d.frames.PoseEstimate:
		d.mu.Lock()
		d.pose = tracking.Pose{
			X:       values["x_m"],
			Y:       values["y_m"],
			Heading: values["heading_rad"],
		}
		d.poseAt = d.clk.Now()
		d.mu.Unlock()
	case d.frames.WheelSpeeds:
		d.mu.Lock()
		d.speeds = tracking.WheelSpeeds{
			Left:  values["left_speed_mps"],
			Right: values["right_speed_mps"],
		}
		d.speedsAt = d.clk.Now()
		d.mu.Unlock()
	}
}

// SetVoltages transmits a raw voltage command frame.
func (d *canDrivetrain) SetVoltages(ctx context.Context, leftVolts, rightVolts float64) error {
	frame, err := d.bus.EncodeCANFrame(d.frames.VoltageCmd, map[string]float64{
		"left_volts":  leftVolts,
		"right_volts": rightVolts,
	})
	if err != nil {
		return errors.Wrap(err, "encode voltage command")
	}
	return errors.Wrap(d.writer.WriteFrame(ctx, frame), "transmit voltage command")
}

// SetVelocities transmits a velocity+feedforward command frame for an
// actuator running its own closed-loop control.
func (d *canDrivetrain) SetVelocities(ctx context.Context, leftMPS, leftFFVolts, rightMPS, rightFFVolts float64, gainProfile int) error {
	frame, err := d.bus.EncodeCANFrame(d.frames.VelocityCmd, map[string]float64{
		"left_speed_mps":  leftMPS,
		"left_ff_volts":   leftFFVolts,
		"right_speed_mps": rightMPS,
		"right_ff_volts":  rightFFVolts,
		"gain_profile":    float64(gainProfile),
	})
	if err != nil {
		return errors.Wrap(err, "encode velocity command")
	}
	return errors.Wrap(d.writer.WriteFrame(ctx, frame), "transmit velocity command")
}

// SetFollowing publishes the "is following" telemetry signal.
func (d *canDrivetrain) SetFollowing(ctx context.Context, following bool) {
	d.publishTelemetry(ctx, map[string]float64{
		"following": boolToFloat(following),
	})
}

// PublishPoses publishes the current pose over telemetry; the
// reference pose goes to the debug log.
func (d *canDrivetrain) PublishPoses(ctx context.Context, actual, reference tracking.Pose) {
	d.publishTelemetry(ctx, map[string]float64{
		"following":   1,
		"x_m":         actual.X,
		"y_m":         actual.Y,
		"heading_rad": actual.Heading,
	})
	d.logger.Debugf("pose x=%.3f y=%.3f th=%.3f ref x=%.3f y=%.3f th=%.3f",
		actual.X, actual.Y, actual.Heading, reference.X, reference.Y, reference.Heading)
}

// Fault publishes the telemetry fault flag.
func (d *canDrivetrain) Fault(ctx context.Context, reason string) {
	d.logger.Warnf("drivetrain fault: %s", reason)
	d.publishTelemetry(ctx, map[string]float64{"fault": 1})
}

// publishTelemetry is best effort: a lost telemetry frame must not
// fail the control tick.
func (d *canDrivetrain) publishTelemetry(ctx context.Context, values map[string]float64) {
	frame, err := d.bus.EncodeCANFrame(d.frames.Telemetry, values)
	if err != nil {
		d.logger.Warnf("encode telemetry: %v", err)
		return
	}
	if err := d.writer.WriteFrame(ctx, frame); err != nil {
		d.logger.Warnf("transmit telemetry: %v", err)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
