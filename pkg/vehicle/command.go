package vehicle

import (
	"encoding/json"
	"fmt"
)

// ControlCommand is the action sent downstream to the vehicle.
//
// When Differential is set, Steering, Throttle and Braking are deltas applied to
// the current state; otherwise they are absolute targets.
type ControlCommand struct {
	Gear         int
	Steering     float64
	Throttle     float64
	Braking      float64
	Differential bool
}

// PredictionMode selects how commands are expressed on the wire.
type PredictionMode string

const (
	ModeDifferential PredictionMode = "differential"
	ModeAbsolute     PredictionMode = "absolute"
)

// ParsePredictionMode validates a mode name.
func ParsePredictionMode(s string) (PredictionMode, error) {
	switch PredictionMode(s) {
	case ModeDifferential, ModeAbsolute:
		return PredictionMode(s), nil
	}
	return "", fmt.Errorf("unknown prediction mode %q", s)
}

// FromDelta builds a command in the given mode from the current state and a
// predicted delta. Absolute commands are clamped to the actuator ranges.
func FromDelta(mode PredictionMode, gear int, current Telemetry, dSteering, dThrottle, dBraking float64) ControlCommand {
	if mode == ModeDifferential {
		return ControlCommand{Gear: gear, Steering: dSteering, Throttle: dThrottle, Braking: dBraking, Differential: true}
	}
	return ControlCommand{
		Gear:     gear,
		Steering: clamp(current.Steering+dSteering, -1, 1),
		Throttle: clamp(current.Throttle+dThrottle, 0, 1),
		Braking:  clamp(current.Braking+dBraking, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type absoluteWire struct {
	Gear         int     `json:"gear"`
	Steering     float64 `json:"steering"`
	Throttle     float64 `json:"throttle"`
	Braking      float64 `json:"braking"`
	Differential bool    `json:"differential"`
}

type differentialWire struct {
	Gear         int     `json:"gear"`
	Steering     float64 `json:"d_steering"`
	Throttle     float64 `json:"d_throttle"`
	Braking      float64 `json:"d_braking"`
	Differential bool    `json:"differential"`
}

// MarshalJSON emits the d_ prefixed keys for differential commands.
func (c ControlCommand) MarshalJSON() ([]byte, error) {
	if c.Differential {
		return json.Marshal(differentialWire{c.Gear, c.Steering, c.Throttle, c.Braking, true})
	}
	return json.Marshal(absoluteWire{c.Gear, c.Steering, c.Throttle, c.Braking, false})
}

// UnmarshalJSON accepts either key set, selected by the differential flag.
func (c *ControlCommand) UnmarshalJSON(data []byte) error {
	var probe struct {
		Differential bool `json:"differential"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Differential {
		var w differentialWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*c = ControlCommand{w.Gear, w.Steering, w.Throttle, w.Braking, true}
		return nil
	}
	var w absoluteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = ControlCommand{w.Gear, w.Steering, w.Throttle, w.Braking, false}
	return nil
}
