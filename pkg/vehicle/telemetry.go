package vehicle

import (
	"encoding/json"
	"fmt"
	"math"
)

// Telemetry is the scalar vehicle state received alongside a frame.
type Telemetry struct {
	Gear     int
	Steering float64
	Throttle float64
	Braking  float64

	// Extra holds every other numeric field of the payload, keyed by wire key.
	Extra map[string]float64
}

// Values returns the predictor's numeric inputs in NumericFields order.
func (t Telemetry) Values() []float64 {
	return []float64{float64(t.Gear), t.Steering, t.Throttle, t.Braking}
}

// Delta returns the change from prev to t as an action, used as the training
// label when no expert is present.
func (t Telemetry) Delta(prev Telemetry) ExpertAction {
	return ExpertAction{
		Gear:      t.Gear,
		DSteering: t.Steering - prev.Steering,
		DThrottle: t.Throttle - prev.Throttle,
		DBraking:  t.Braking - prev.Braking,
	}
}

// ExpertAction is the control delta issued by the expert policy.
type ExpertAction struct {
	Gear      int
	DSteering float64
	DThrottle float64
	DBraking  float64
}

// Values returns the continuous deltas in label order.
func (a ExpertAction) Values() []float64 {
	return []float64{a.DSteering, a.DThrottle, a.DBraking}
}

// Command wraps the expert action as a differential control command.
func (a ExpertAction) Command() ControlCommand {
	return ControlCommand{
		Gear:         a.Gear,
		Steering:     a.DSteering,
		Throttle:     a.DThrottle,
		Braking:      a.DBraking,
		Differential: true,
	}
}

// DecodeTelemetry reads a wire payload through the mapping.
func (m Mapping) DecodeTelemetry(raw map[string]any) (Telemetry, error) {
	var (
		t   Telemetry
		err error
	)
	gear, err := m.number(raw, FieldGear)
	if err != nil {
		return t, err
	}
	t.Gear = int(math.Round(gear))
	if t.Steering, err = m.number(raw, FieldSteering); err != nil {
		return t, err
	}
	if t.Throttle, err = m.number(raw, FieldThrottle); err != nil {
		return t, err
	}
	if t.Braking, err = m.number(raw, FieldBraking); err != nil {
		return t, err
	}

	core := map[string]bool{m[FieldGear]: true, m[FieldSteering]: true, m[FieldThrottle]: true, m[FieldBraking]: true}
	for k, v := range raw {
		if core[k] {
			continue
		}
		if f, ok := toFloat(v); ok {
			if t.Extra == nil {
				t.Extra = make(map[string]float64)
			}
			t.Extra[k] = f
		}
	}
	return t, nil
}

// EncodeTelemetry is the inverse of DecodeTelemetry.
func (m Mapping) EncodeTelemetry(t Telemetry) map[string]float64 {
	out := make(map[string]float64, 4+len(t.Extra))
	for k, v := range t.Extra {
		out[k] = v
	}
	out[m[FieldGear]] = float64(t.Gear)
	out[m[FieldSteering]] = t.Steering
	out[m[FieldThrottle]] = t.Throttle
	out[m[FieldBraking]] = t.Braking
	return out
}

// DecodeExpert reads an expert action payload through the mapping.
func (m Mapping) DecodeExpert(raw map[string]any) (ExpertAction, error) {
	var (
		a   ExpertAction
		err error
	)
	gear, err := m.number(raw, FieldGear)
	if err != nil {
		return a, err
	}
	a.Gear = int(math.Round(gear))
	if a.DSteering, err = m.number(raw, FieldDSteering); err != nil {
		return a, err
	}
	if a.DThrottle, err = m.number(raw, FieldDThrottle); err != nil {
		return a, err
	}
	if a.DBraking, err = m.number(raw, FieldDBraking); err != nil {
		return a, err
	}
	return a, nil
}

// EncodeExpert is the inverse of DecodeExpert.
func (m Mapping) EncodeExpert(a ExpertAction) map[string]float64 {
	return map[string]float64{
		m[FieldGear]:      float64(a.Gear),
		m[FieldDSteering]: a.DSteering,
		m[FieldDThrottle]: a.DThrottle,
		m[FieldDBraking]:  a.DBraking,
	}
}

func (m Mapping) number(raw map[string]any, f Field) (float64, error) {
	key, err := m.Key(f)
	if err != nil {
		return 0, err
	}
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s (key %q)", ErrMissingField, f, key)
	}
	n, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("field %s (key %q): not a number: %v", f, key, v)
	}
	return n, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
