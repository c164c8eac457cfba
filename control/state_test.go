package control

import (
	"errors"
	"testing"

	"github.com/mbocsi/teleop/proto"
)

func collector() (*[]proto.Action, func(proto.Action) error) {
	var sent []proto.Action
	return &sent, func(a proto.Action) error {
		sent = append(sent, a)
		return nil
	}
}

func last(t *testing.T, sent *[]proto.Action) proto.Action {
	t.Helper()
	if len(*sent) == 0 {
		t.Fatal("Expected at least one action to be emitted")
	}
	return (*sent)[len(*sent)-1]
}

func TestState_FullForward(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetDrive(0, 1)

	a := last(t, sent)
	if a.XVel != 0.3 {
		t.Errorf("Expected x.vel 0.3, got %v", a.XVel)
	}
	if a.YVel != 0 {
		t.Errorf("Expected y.vel 0, got %v", a.YVel)
	}
}

func TestState_BelowDeadzone(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetDrive(0.1, 0)

	a := last(t, sent)
	if a.XVel != 0 || a.YVel != 0 {
		t.Errorf("Expected zero velocities, got x.vel=%v y.vel=%v", a.XVel, a.YVel)
	}
}

func TestState_StrafeInversion(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetDrive(1, 0)

	a := last(t, sent)
	if a.YVel != -0.3 {
		t.Errorf("Expected y.vel -0.3 for rightward drag, got %v", a.YVel)
	}
}

func TestState_RotationMapping(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetRotation(1, 0.5)

	a := last(t, sent)
	if a.ThetaVel != -0.5 {
		t.Errorf("Expected theta.vel -0.5, got %v", a.ThetaVel)
	}
	if a.WristFlex != -0.5 {
		t.Errorf("Expected wrist_flex.vel -0.5, got %v", a.WristFlex)
	}
}

func TestState_EmergencyStop(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetDrive(0, 1)
	s.SetRotation(1, 1)
	s.SetManipulator(true)
	s.SetJoint(Gripper, 1)

	s.EmergencyStop()

	a := last(t, sent)
	if !a.IsZero() {
		t.Errorf("Expected all-zero action after emergency stop, got %+v", a)
	}
	if a.Type != proto.TypeAction {
		t.Errorf("Expected type tag %q, got %q", proto.TypeAction, a.Type)
	}
}

func TestState_ManipulatorWristOverride(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	// Base-mode aux axis drives wrist flex first.
	s.SetRotation(0, 1)
	if a := last(t, sent); a.WristFlex != -1 {
		t.Fatalf("Expected base-mode wrist_flex.vel -1, got %v", a.WristFlex)
	}

	// In manipulator mode the joint value wins over the aux axis.
	s.SetManipulator(true)
	s.SetJoint(WristFlex, 0.5)

	a := last(t, sent)
	if a.WristFlex != 0.5 {
		t.Errorf("Expected manipulator wrist_flex.vel 0.5, got %v", a.WristFlex)
	}
}

func TestState_ManipulatorModeExit(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetManipulator(true)
	s.SetJoint(ShoulderPan, 1)
	s.SetManipulator(false)

	a := last(t, sent)
	if a.ShoulderPan != 0 {
		t.Errorf("Expected joint velocities zeroed after leaving manipulator mode, got %v", a.ShoulderPan)
	}
}

func TestState_JointShaping(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetManipulator(true)
	s.SetJoint(ElbowFlex, 0.1) // below deadzone

	a := last(t, sent)
	if a.ElbowFlex != 0 {
		t.Errorf("Expected shaped joint velocity 0, got %v", a.ElbowFlex)
	}
}

func TestState_RotationSourceExclusive(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	// Orientation input is ignored while the stick is authoritative.
	s.SetOrientation(1)
	if len(*sent) != 0 {
		t.Fatal("Expected orientation input to be ignored in stick mode")
	}

	s.SetRotationSource(SourceOrientation)
	s.SetOrientation(1)
	a := last(t, sent)
	if a.ThetaVel != -0.5 {
		t.Errorf("Expected theta.vel -0.5 from orientation, got %v", a.ThetaVel)
	}

	// Stick rotation no longer writes theta, but its aux axis still does wrist.
	s.SetRotation(1, 0)
	a = last(t, sent)
	if a.ThetaVel != -0.5 {
		t.Errorf("Expected theta.vel unchanged by stick in orientation mode, got %v", a.ThetaVel)
	}
}

func TestState_EveryCallEmitsFullFieldSet(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetDrive(0, 1)
	s.SetRotation(1, 0)

	if len(*sent) != 2 {
		t.Fatalf("Expected 2 emitted actions, got %d", len(*sent))
	}
	// The second message carries the drive fields set by the first call.
	a := (*sent)[1]
	if a.XVel != 0.3 {
		t.Errorf("Expected x.vel 0.3 carried into the next message, got %v", a.XVel)
	}
	if a.ThetaVel != -0.5 {
		t.Errorf("Expected theta.vel -0.5, got %v", a.ThetaVel)
	}
}

func TestState_Release(t *testing.T) {
	sent, send := collector()
	s := NewState(DefaultConfig(), send)

	s.SetDrive(0, 1)
	s.SetRotation(1, 1)
	s.Release()

	a := last(t, sent)
	if a.XVel != 0 || a.YVel != 0 || a.ThetaVel != 0 || a.WristFlex != 0 {
		t.Errorf("Expected zeroed base controls after release, got %+v", a)
	}
}

func TestState_SendFailureDoesNotPropagate(t *testing.T) {
	s := NewState(DefaultConfig(), func(proto.Action) error {
		return errors.New("send failed")
	})

	// Must not panic or surface the error.
	s.SetDrive(0, 1)
	s.EmergencyStop()
}
