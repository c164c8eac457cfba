package control

import (
	"log/slog"
	"sync"

	"github.com/mbocsi/teleop/proto"
)

// RotationSource selects which input drives theta.vel. Only one source
// is authoritative at a time; they are never summed.
type RotationSource int

const (
	SourceStick RotationSource = iota
	SourceOrientation
)

// Joint indexes the six manipulator axes.
type Joint int

const (
	ShoulderPan Joint = iota
	ShoulderLift
	ElbowFlex
	WristFlex
	WristRoll
	Gripper
	NumJoints
)

var jointNames = [NumJoints]string{
	"shoulder_pan", "shoulder_lift", "elbow_flex",
	"wrist_flex", "wrist_roll", "gripper",
}

func (j Joint) String() string {
	if j < 0 || j >= NumJoints {
		return "unknown"
	}
	return jointNames[j]
}

// Config holds the velocity limits applied when mapping shaped stick
// deflections to commands.
type Config struct {
	MaxLinearVelocity  float64 // m/s, applied to x.vel and y.vel
	MaxAngularVelocity float64 // rad/s, applied to theta.vel
	MaxWristVelocity   float64 // applied to the base-mode wrist axis
}

func DefaultConfig() Config {
	return Config{
		MaxLinearVelocity:  0.3,
		MaxAngularVelocity: 0.5,
		MaxWristVelocity:   1.0,
	}
}

// State owns the per-control velocity snapshot that independent inputs
// (drive stick, rotation stick, orientation sensor, joint sliders)
// write into. Each control only updates its own fields, so every
// state-changing call assembles one complete action message from the
// current snapshot and hands it to the send function. Send failures
// are logged and swallowed so input handling never blocks on the
// transport.
type State struct {
	mu   sync.Mutex
	cfg  Config
	send func(proto.Action) error

	xVel     float64
	yVel     float64
	thetaVel float64

	baseWrist float64 // right-stick aux axis, base mode only
	joints    [NumJoints]float64

	manipulator bool
	source      RotationSource
}

func NewState(cfg Config, send func(proto.Action) error) *State {
	return &State{cfg: cfg, send: send}
}

// SetDrive maps a left-stick deflection to base linear velocities.
// The x axis is inverted so a rightward drag strafes right.
func (s *State) SetDrive(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xVel = Shape(y) * s.cfg.MaxLinearVelocity
	s.yVel = -Shape(x) * s.cfg.MaxLinearVelocity
	s.emitLocked()
}

// SetRotation maps the right stick: the first axis drives rotation,
// the second drives the wrist-flex aux axis. Both are negated to
// correct for the widget coordinate convention.
func (s *State) SetRotation(rot, aux float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == SourceStick {
		s.thetaVel = -Shape(rot) * s.cfg.MaxAngularVelocity
	}
	s.baseWrist = -Shape(aux) * s.cfg.MaxWristVelocity
	s.emitLocked()
}

// SetOrientation feeds the device orientation sensor into rotation.
// Ignored unless the orientation source is selected.
func (s *State) SetOrientation(roll float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != SourceOrientation {
		return
	}
	s.thetaVel = -Shape(roll) * s.cfg.MaxAngularVelocity
	s.emitLocked()
}

// SetRotationSource switches the authoritative rotation input.
// Switching zeroes the rotation velocity until the new source writes.
func (s *State) SetRotationSource(src RotationSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == src {
		return
	}
	s.source = src
	s.thetaVel = 0
	s.emitLocked()
}

// SetManipulator toggles manipulator mode. Entering it zeroes the base
// velocities, leaving it zeroes the joint velocities.
func (s *State) SetManipulator(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manipulator == on {
		return
	}
	s.manipulator = on
	if on {
		s.xVel, s.yVel, s.thetaVel = 0, 0, 0
	} else {
		s.joints = [NumJoints]float64{}
	}
	s.emitLocked()
}

// SetJoint sets one manipulator joint velocity from a raw single-axis
// deflection. No scaling beyond the deadzone shaper.
func (s *State) SetJoint(j Joint, v float64) {
	if j < 0 || j >= NumJoints {
		slog.Warn("Ignoring out-of-range joint", "joint", int(j))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joints[j] = Shape(v)
	s.emitLocked()
}

// Release zeroes the control a widget was driving when its drag ends.
func (s *State) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xVel, s.yVel = 0, 0
	if s.source == SourceStick {
		s.thetaVel = 0
	}
	s.baseWrist = 0
	s.emitLocked()
}

// EmergencyStop synchronously zeroes every tracked velocity and emits
// one all-zero action immediately.
func (s *State) EmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xVel, s.yVel, s.thetaVel = 0, 0, 0
	s.baseWrist = 0
	s.joints = [NumJoints]float64{}
	s.emitLocked()
}

// Snapshot assembles the full current field set into one action.
// In manipulator mode the joint values win, including wrist flex;
// in base mode the joints emit zero except the aux-driven wrist.
func (s *State) Snapshot() proto.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() proto.Action {
	a := proto.NewAction()
	a.XVel = s.xVel
	a.YVel = s.yVel
	a.ThetaVel = s.thetaVel
	if s.manipulator {
		a.ShoulderPan = s.joints[ShoulderPan]
		a.ShoulderLift = s.joints[ShoulderLift]
		a.ElbowFlex = s.joints[ElbowFlex]
		a.WristFlex = s.joints[WristFlex]
		a.WristRoll = s.joints[WristRoll]
		a.Gripper = s.joints[Gripper]
	} else {
		a.WristFlex = s.baseWrist
	}
	return a
}

func (s *State) emitLocked() {
	if s.send == nil {
		return
	}
	if err := s.send(s.snapshotLocked()); err != nil {
		slog.Warn("Failed to send action", "error", err.Error())
	}
}
