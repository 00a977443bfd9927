package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"ddrive-tracking-core/tracking"
)

// Profile is the JSON run description: follower gains, loop timing,
// the drivetrain frame names and the path to follow.
type Profile struct {
	Meta     ProfileMeta             `json:"meta"`
	Follower tracking.FollowerConfig `json:"follower"`
	Timing   ProfileTiming           `json:"timing"`
	Frames   FrameNames              `json:"frames"`
	Path     PathSpec                `json:"path"`
}

// ProfileMeta describes the profile for logs.
type ProfileMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ProfileTiming holds loop timing parameters.
type ProfileTiming struct {
	TickMS int `json:"tick_ms"`
	// StaleMS bounds how old sensor feedback may be before the
	// drivetrain adapter reports it as unavailable.
	StaleMS int `json:"stale_ms"`
}

// FrameNames binds the adapter to frames in the bus map.
type FrameNames struct {
	PoseEstimate string `json:"pose_estimate"`
	WheelSpeeds  string `json:"wheel_speeds"`
	VoltageCmd   string `json:"voltage_cmd"`
	VelocityCmd  string `json:"velocity_cmd"`
	Telemetry    string `json:"telemetry"`
}

// PathSegment is one piece of a generated path.
type PathSegment struct {
	// Type is "straight" or "arc".
	Type             string  `json:"type"`
	LengthM          float64 `json:"length_m"`
	CurvatureRadPerM float64 `json:"curvature_rad_per_m,omitempty"`
}

// PathSpec either lists explicit trajectory states or describes
// segments to generate under motion limits, starting from Start.
type PathSpec struct {
	States   []tracking.State      `json:"states,omitempty"`
	Start    tracking.Pose         `json:"start"`
	Limits   tracking.MotionLimits `json:"limits"`
	Segments []PathSegment         `json:"segments,omitempty"`
}

// LoadProfile reads and validates a profile JSON file. Any problem is
// fatal: the loop must not start on a broken configuration.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrap(err, "read profile")
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrap(err, "unmarshal profile")
	}

	if p.Timing.TickMS == 0 {
		p.Timing.TickMS = 20
	}
	if p.Timing.TickMS < 0 {
		return Profile{}, errors.Errorf("invalid tick_ms: %d", p.Timing.TickMS)
	}
	if p.Timing.StaleMS == 0 {
		p.Timing.StaleMS = 500
	}
	if p.Timing.StaleMS < 0 {
		return Profile{}, errors.Errorf("invalid stale_ms: %d", p.Timing.StaleMS)
	}

	if err := p.Follower.Validate(); err != nil {
		return Profile{}, errors.Wrap(err, "follower config")
	}

	if p.Frames.PoseEstimate == "" {
		return Profile{}, errors.New("frames.pose_estimate is required")
	}
	if p.Frames.Telemetry == "" {
		return Profile{}, errors.New("frames.telemetry is required")
	}
	switch p.Follower.Mode {
	case tracking.OutputVoltage:
		if p.Frames.WheelSpeeds == "" || p.Frames.VoltageCmd == "" {
			return Profile{}, errors.New("voltage mode requires frames.wheel_speeds and frames.voltage_cmd")
		}
	case tracking.OutputVelocity:
		if p.Frames.VelocityCmd == "" {
			return Profile{}, errors.New("velocity mode requires frames.velocity_cmd")
		}
	}

	if len(p.Path.States) == 0 && len(p.Path.Segments) == 0 {
		return Profile{}, errors.New("path needs either states or segments")
	}

	return p, nil
}

// BuildTrajectory turns the profile's path spec into a trajectory:
// explicit states verbatim, or generated segments chained end to end.
func BuildTrajectory(p Profile) (*tracking.Trajectory, error) {
	if len(p.Path.States) > 0 {
		return tracking.NewTrajectory(p.Path.States)
	}

	var states []tracking.State
	offset := 0.0
	pose := p.Path.Start

	for i, seg := range p.Path.Segments {
		var (
			tr  *tracking.Trajectory
			err error
		)
		switch seg.Type {
		case "straight":
			tr, err = tracking.StraightTrajectory(pose, seg.LengthM, p.Path.Limits)
		case "arc":
			tr, err = tracking.ArcTrajectory(pose, seg.LengthM, seg.CurvatureRadPerM, p.Path.Limits)
		default:
			err = errors.Errorf("unknown segment type %q", seg.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d", i)
		}

		segStates := tr.States()
		start := 0
		if len(states) > 0 {
			// Both the previous end and this start are at rest at the
			// same pose; drop the duplicate sample.
			start = 1
		}
		for _, s := range segStates[start:] {
			s.TimeS += offset
			states = append(states, s)
		}
		offset += tr.Duration()
		pose = segStates[len(segStates)-1].Pose
	}

	return tracking.NewTrajectory(states)
}
