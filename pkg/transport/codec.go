package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Header describes the raw pixel part of an inbound message.
type Header struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"` // [height, width, channels]
}

// Codec converts between multipart wire messages and Messages.
//
// An inbound message has three parts: the JSON Header, the raw pixels, and a data
// JSON that is either a telemetry object or a [telemetry, expert] pair.
type Codec struct {
	Mapping vehicle.Mapping
}

// NewCodec returns a codec using m to address payload fields.
func NewCodec(m vehicle.Mapping) *Codec {
	return &Codec{Mapping: m}
}

// Decode parses one inbound multipart message. Every failure wraps ErrMalformed.
func (c *Codec) Decode(parts [][]byte) (Message, error) {
	var msg Message
	if len(parts) != 3 {
		return msg, fmt.Errorf("%w: expected 3 parts, got %d", ErrMalformed, len(parts))
	}

	frame, err := decodeFrame(parts[0], parts[1])
	if err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg.Frame = frame

	data := bytes.TrimSpace(parts[2])
	if len(data) == 0 {
		return msg, fmt.Errorf("%w: empty data part", ErrMalformed)
	}

	var telemetry map[string]any
	if data[0] == '[' {
		var pair []map[string]any
		if err := json.Unmarshal(data, &pair); err != nil {
			return msg, fmt.Errorf("%w: data: %v", ErrMalformed, err)
		}
		if len(pair) != 2 {
			return msg, fmt.Errorf("%w: expected [telemetry, expert], got %d elements", ErrMalformed, len(pair))
		}
		expert, err := c.Mapping.DecodeExpert(pair[1])
		if err != nil {
			return msg, fmt.Errorf("%w: expert: %v", ErrMalformed, err)
		}
		msg.Expert = &expert
		telemetry = pair[0]
	} else if err := json.Unmarshal(data, &telemetry); err != nil {
		return msg, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}

	if msg.Telemetry, err = c.Mapping.DecodeTelemetry(telemetry); err != nil {
		return msg, fmt.Errorf("%w: telemetry: %v", ErrMalformed, err)
	}
	return msg, nil
}

func decodeFrame(headerData, pix []byte) (*vehicle.Frame, error) {
	var h Header
	if err := json.Unmarshal(headerData, &h); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if h.DType != "uint8" {
		return nil, fmt.Errorf("unsupported dtype %q", h.DType)
	}
	if len(h.Shape) != 3 {
		return nil, fmt.Errorf("expected shape [h, w, c], got %v", h.Shape)
	}
	height, width, channels := h.Shape[0], h.Shape[1], h.Shape[2]
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid shape %v", h.Shape)
	}

	switch channels {
	case vehicle.Channels:
		return vehicle.NewFrame(width, height, pix)
	case 4:
		if len(pix) != width*height*4 {
			return nil, fmt.Errorf("shape %v needs %d bytes, got %d", h.Shape, width*height*4, len(pix))
		}
		rgb := make([]byte, 0, width*height*vehicle.Channels)
		for i := 0; i < len(pix); i += 4 {
			rgb = append(rgb, pix[i], pix[i+1], pix[i+2])
		}
		return vehicle.NewFrame(width, height, rgb)
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// Encode builds the inbound wire form of msg. It is the vehicle side of Decode.
func (c *Codec) Encode(msg Message) ([][]byte, error) {
	if msg.Frame == nil {
		return nil, fmt.Errorf("message has no frame")
	}
	header, err := json.Marshal(Header{DType: "uint8", Shape: []int{msg.Frame.Height, msg.Frame.Width, vehicle.Channels}})
	if err != nil {
		return nil, err
	}

	var data []byte
	telemetry := c.Mapping.EncodeTelemetry(msg.Telemetry)
	if msg.Expert != nil {
		data, err = json.Marshal([]map[string]float64{telemetry, c.Mapping.EncodeExpert(*msg.Expert)})
	} else {
		data, err = json.Marshal(telemetry)
	}
	if err != nil {
		return nil, err
	}
	return [][]byte{header, msg.Frame.Pix, data}, nil
}

// EncodeCommand returns the single-part outbound form of cmd.
func EncodeCommand(cmd vehicle.ControlCommand) ([]byte, error) {
	return json.Marshal(cmd)
}

// DecodeCommand parses an outbound command.
func DecodeCommand(data []byte) (vehicle.ControlCommand, error) {
	var cmd vehicle.ControlCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: command: %v", ErrMalformed, err)
	}
	return cmd, nil
}
