package peer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/mbocsi/teleop/proto"
)

// BuildObservation assembles one observation frame from the robot's
// state vector and camera images. Frames are JPEG-compressed at the
// given quality and base64-encoded for the wire.
func BuildObservation(state []float64, frames map[string]image.Image, quality int) (proto.Observation, error) {
	obs := proto.NewObservation()

	if state != nil {
		if err := obs.SetState(state); err != nil {
			return proto.Observation{}, err
		}
	}

	for channel, frame := range frames {
		b64, err := EncodeJPEG(frame, quality)
		if err != nil {
			return proto.Observation{}, fmt.Errorf("failed to encode %s: %w", channel, err)
		}
		if err := obs.SetImage(channel, b64); err != nil {
			return proto.Observation{}, err
		}
	}

	return obs, nil
}

// EncodeJPEG compresses an image and returns it base64-encoded.
func EncodeJPEG(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
