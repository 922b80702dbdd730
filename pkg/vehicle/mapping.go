package vehicle

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned for a field name with no entry in the mapping table.
var ErrUnknownField = errors.New("unknown telemetry field")

// ErrMissingField is returned when a wire payload lacks a mapped key.
var ErrMissingField = errors.New("missing telemetry field")

// Field names a logical vehicle quantity.
type Field string

const (
	FieldGear     Field = "gear"
	FieldSteering Field = "steering"
	FieldThrottle Field = "throttle"
	FieldBraking  Field = "braking"

	FieldDSteering Field = "d_steering"
	FieldDThrottle Field = "d_throttle"
	FieldDBraking  Field = "d_braking"
)

// Fields lists every field a Mapping must resolve.
var Fields = []Field{
	FieldGear, FieldSteering, FieldThrottle, FieldBraking,
	FieldDSteering, FieldDThrottle, FieldDBraking,
}

// NumericFields are the telemetry inputs fed to the predictor, in order.
var NumericFields = []Field{FieldGear, FieldSteering, FieldThrottle, FieldBraking}

// Mapping translates logical fields to the keys used on the wire.
type Mapping map[Field]string

// DefaultMapping returns the wire keys emitted by the simulator bridge.
func DefaultMapping() Mapping {
	return Mapping{
		FieldGear:      "g",
		FieldSteering:  "sa",
		FieldThrottle:  "t",
		FieldBraking:   "b",
		FieldDSteering: "d_sa",
		FieldDThrottle: "d_t",
		FieldDBraking:  "d_b",
	}
}

// NewMapping builds a Mapping from string field names, as found in configuration.
// Fields absent from overrides keep their default key.
func NewMapping(overrides map[string]string) (Mapping, error) {
	m := DefaultMapping()
	for name, key := range overrides {
		f, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		m[f] = key
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Key returns the wire key for f.
func (m Mapping) Key(f Field) (string, error) {
	k, ok := m[f]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return k, nil
}

// Validate checks that every field is mapped to a distinct, non-empty key.
func (m Mapping) Validate() error {
	seen := make(map[string]Field, len(m))
	for _, f := range Fields {
		k, ok := m[f]
		if !ok || k == "" {
			return fmt.Errorf("%w: %q has no wire key", ErrUnknownField, f)
		}
		if other, dup := seen[k]; dup {
			return fmt.Errorf("wire key %q mapped by both %q and %q", k, other, f)
		}
		seen[k] = f
	}
	for f := range m {
		if _, err := ParseField(string(f)); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the mapped wire keys in field order.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, f := range Fields {
		keys = append(keys, m[f])
	}
	return keys
}
