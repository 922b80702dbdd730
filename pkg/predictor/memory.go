package predictor

import (
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Memory keeps the trailing frames and telemetry needed to build observations.
//
// An observation holds Length samples taken Interval ticks apart and ending at
// the newest tick. While the history is shorter than that, the oldest
// available sample is repeated.
type Memory struct {
	length   int
	interval int

	frames    []*vehicle.Frame
	telemetry []vehicle.Telemetry
}

// NewMemory returns an empty memory. Values below 1 are raised to 1.
func NewMemory(length, interval int) *Memory {
	return &Memory{length: max(length, 1), interval: max(interval, 1)}
}

// Span is the number of ticks an observation covers.
func (m *Memory) Span() int {
	return Span(m.length, m.interval)
}

// Span is the number of ticks covered by length samples interval apart.
func Span(length, interval int) int {
	return (max(length, 1)-1)*max(interval, 1) + 1
}

// Push appends the newest tick and forgets ticks outside the span.
func (m *Memory) Push(frame *vehicle.Frame, telemetry vehicle.Telemetry) {
	m.frames = append(m.frames, frame)
	m.telemetry = append(m.telemetry, telemetry)
	if over := len(m.frames) - m.Span(); over > 0 {
		m.frames = append(m.frames[:0:0], m.frames[over:]...)
		m.telemetry = append(m.telemetry[:0:0], m.telemetry[over:]...)
	}
}

// Len returns the number of buffered ticks.
func (m *Memory) Len() int {
	return len(m.frames)
}

// Observation builds the observation ending at the newest tick. ok is false
// when nothing has been pushed yet.
func (m *Memory) Observation() (Observation, bool) {
	if len(m.frames) == 0 {
		return Observation{}, false
	}
	return Window(m.frames, m.telemetry, len(m.frames)-1, m.length, m.interval), true
}

// Reset forgets everything.
func (m *Memory) Reset() {
	m.frames, m.telemetry = nil, nil
}

// Window builds the observation ending at index end of aligned frame and
// telemetry slices.
func Window(frames []*vehicle.Frame, telemetry []vehicle.Telemetry, end, length, interval int) Observation {
	length, interval = max(length, 1), max(interval, 1)
	obs := Observation{
		Frames:    make([]*vehicle.Frame, length),
		Telemetry: make([]vehicle.Telemetry, length),
	}
	for k := 0; k < length; k++ {
		i := max(end-(length-1-k)*interval, 0)
		obs.Frames[k] = frames[i]
		obs.Telemetry[k] = telemetry[i]
	}
	return obs
}
