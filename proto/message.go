package proto

import (
	"encoding/json"
	"fmt"
)

// Message type tags carried in the "type" field of every frame.
const (
	TypeAction      = "action"
	TypeObservation = "observation"
)

// Observation channel names.
const (
	ChannelState      = "observation.state"
	ChannelImageFront = "observation.images.front"
	ChannelImageWrist = "observation.images.wrist"
)

// Channel payload kinds.
const (
	PayloadState = "state"
	PayloadImage = "image"
)

// State vector layout: indices 0-5 are arm joint values,
// indices 6-8 are the base pose/velocity triple.
const (
	StateArmLen  = 6
	StateBaseLen = 3
	StateLen     = StateArmLen + StateBaseLen
)

// Action is a full-state velocity command. Every field is always
// emitted, fields outside the active control mode as 0.0, so the
// receiver's last-known state is fully specified by any one frame.
type Action struct {
	Type         string  `json:"type"`
	XVel         float64 `json:"x.vel"`
	YVel         float64 `json:"y.vel"`
	ThetaVel     float64 `json:"theta.vel"`
	ShoulderPan  float64 `json:"shoulder_pan.vel"`
	ShoulderLift float64 `json:"shoulder_lift.vel"`
	ElbowFlex    float64 `json:"elbow_flex.vel"`
	WristFlex    float64 `json:"wrist_flex.vel"`
	WristRoll    float64 `json:"wrist_roll.vel"`
	Gripper      float64 `json:"gripper.vel"`
}

func NewAction() Action {
	return Action{Type: TypeAction}
}

// IsZero reports whether every velocity field is exactly zero.
func (a Action) IsZero() bool {
	return a.XVel == 0 && a.YVel == 0 && a.ThetaVel == 0 &&
		a.ShoulderPan == 0 && a.ShoulderLift == 0 && a.ElbowFlex == 0 &&
		a.WristFlex == 0 && a.WristRoll == 0 && a.Gripper == 0
}

// Channel is one entry of an observation's data map: a typed payload,
// either a numeric state vector or a base64-encoded compressed image.
type Channel struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Observation struct {
	Type string             `json:"type"`
	Data map[string]Channel `json:"data"`
}

func NewObservation() Observation {
	return Observation{Type: TypeObservation, Data: make(map[string]Channel)}
}

// SetState stores vec under the state channel.
func (o *Observation) SetState(vec []float64) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	o.Data[ChannelState] = Channel{Type: PayloadState, Data: raw}
	return nil
}

// SetImage stores a base64-encoded image under the named channel.
func (o *Observation) SetImage(channel string, b64 string) error {
	raw, err := json.Marshal(b64)
	if err != nil {
		return err
	}
	o.Data[channel] = Channel{Type: PayloadImage, Data: raw}
	return nil
}

// StateVector extracts the numeric state vector. The second return is
// false when the state channel is missing or not a state payload.
func (o Observation) StateVector() ([]float64, bool) {
	ch, ok := o.Data[ChannelState]
	if !ok || ch.Type != PayloadState {
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(ch.Data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

// Image extracts the base64 payload of the named image channel,
// unchanged from the wire.
func (o Observation) Image(channel string) (string, bool) {
	ch, ok := o.Data[channel]
	if !ok || ch.Type != PayloadImage {
		return "", false
	}
	var b64 string
	if err := json.Unmarshal(ch.Data, &b64); err != nil {
		return "", false
	}
	return b64, true
}

// ImageChannels lists the channels carrying image payloads.
func (o Observation) ImageChannels() []string {
	var names []string
	for name, ch := range o.Data {
		if ch.Type == PayloadImage {
			names = append(names, name)
		}
	}
	return names
}

// MessageType peeks at a raw frame's "type" tag without decoding the
// rest of the message.
func MessageType(raw []byte) (string, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return env.Type, nil
}
