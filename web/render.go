package web

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/mbocsi/teleop/proto"
)

// Placeholder stands in for any value whose channel is missing from
// the latest observation.
const Placeholder = "--"

// Snapshot is the displayable extraction of one observation. Numeric
// values are pre-formatted to a constant number of fractional digits
// so the layout does not jitter frame-to-frame.
type Snapshot struct {
	HasState bool              `json:"has_state"`
	Arm      []string          `json:"arm"`
	Base     []string          `json:"base"`
	Cameras  []string          `json:"cameras"`
	images   map[string][]byte // decoded JPEG bytes keyed by channel
}

// Image returns the decoded JPEG bytes for a camera channel.
func (s Snapshot) Image(channel string) ([]byte, bool) {
	img, ok := s.images[channel]
	return img, ok
}

// Render extracts the displayable fields of an observation. Missing
// or short state vectors yield placeholder values, never an error;
// undecodable image channels are skipped.
func Render(obs proto.Observation) Snapshot {
	snap := Snapshot{
		Arm:    make([]string, proto.StateArmLen),
		Base:   make([]string, proto.StateBaseLen),
		images: make(map[string][]byte),
	}

	vec, ok := obs.StateVector()
	snap.HasState = ok
	for i := range snap.Arm {
		snap.Arm[i] = formatValue(vec, i)
	}
	for i := range snap.Base {
		snap.Base[i] = formatValue(vec, proto.StateArmLen+i)
	}

	for _, channel := range obs.ImageChannels() {
		b64, ok := obs.Image(channel)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			slog.Warn("Undecodable image channel, skipping", "channel", channel, "error", err.Error())
			continue
		}
		snap.images[channel] = raw
		snap.Cameras = append(snap.Cameras, channel)
	}

	return snap
}

func formatValue(vec []float64, i int) string {
	if i >= len(vec) {
		return Placeholder
	}
	return fmt.Sprintf("%.3f", vec[i])
}
