package predictor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dagpilot/pkg/recorder"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

func tick(i int) (*vehicle.Frame, vehicle.Telemetry) {
	f, _ := vehicle.NewFrame(1, 1, []byte{byte(i), byte(i), byte(i)})
	return f, vehicle.Telemetry{Gear: 1, Steering: float64(i)}
}

func steerings(obs Observation) []float64 {
	out := make([]float64, len(obs.Telemetry))
	for i, t := range obs.Telemetry {
		out[i] = t.Steering
	}
	return out
}

func TestMemoryWindow(t *testing.T) {
	m := NewMemory(3, 2)
	assert.Equal(t, 5, m.Span())

	_, ok := m.Observation()
	assert.False(t, ok)

	f, tel := tick(0)
	m.Push(f, tel)
	obs, ok := m.Observation()
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0}, steerings(obs))

	for i := 1; i <= 3; i++ {
		m.Push(tick(i))
	}
	obs, _ = m.Observation()
	assert.Equal(t, []float64{0, 1, 3}, steerings(obs))

	for i := 4; i <= 9; i++ {
		m.Push(tick(i))
	}
	assert.Equal(t, 5, m.Len())
	obs, _ = m.Observation()
	assert.Equal(t, []float64{5, 7, 9}, steerings(obs))
	assert.Equal(t, 9.0, obs.Current().Steering)
	assert.Equal(t, byte(5), obs.Frames[0].Pix[0])

	m.Reset()
	assert.Equal(t, 0, m.Len())
}

func TestMemoryClampsParameters(t *testing.T) {
	m := NewMemory(0, 0)
	assert.Equal(t, 1, m.Span())
	m.Push(tick(4))
	obs, _ := m.Observation()
	assert.Len(t, obs.Frames, 1)
}

func TestPretrainedName(t *testing.T) {
	assert.Equal(t, "model_n4_m2_7", PretrainedName(4, 2, 7))
}

func TestNextModelName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	name, err := NextModelName(dir, now)
	require.NoError(t, err)
	assert.Equal(t, "2026_10_19_model_1", name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".model"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026_10_18_model_1.model"), nil, 0644))

	name, err = NextModelName(dir, now)
	require.NoError(t, err)
	assert.Equal(t, "2026_10_19_model_2", name)

	name, err = NextModelName(filepath.Join(dir, "missing"), now)
	require.NoError(t, err)
	assert.Equal(t, "2026_10_19_model_1", name)
}

func window(n int, expert bool) recorder.Window {
	var w recorder.Window
	for i := 0; i < n; i++ {
		f, tel := tick(i)
		w.Frames = append(w.Frames, f)
		w.Telemetry = append(w.Telemetry, tel)
		if expert {
			w.Expert = append(w.Expert, &vehicle.ExpertAction{Gear: 2, DSteering: float64(i) / 100})
		}
	}
	return w
}

func TestTransformExpertLabels(t *testing.T) {
	tr := NewTransformer(2, 1, 1)
	batch, err := tr.Transform(window(200, true))
	require.NoError(t, err)
	assert.Len(t, batch.Test, 40)
	assert.Len(t, batch.Train, 160)

	for _, s := range append(batch.Train, batch.Test...) {
		cur := s.Observation.Current().Steering
		assert.InDelta(t, cur/100, s.Label[0], 1e-12)
		assert.Equal(t, 2, s.Gear)
		assert.Len(t, s.Observation.Frames, 2)
	}
}

func TestTransformDropsTicksWithoutExpert(t *testing.T) {
	tr := NewTransformer(2, 1, 1)
	w := window(20, true)
	w.Expert[8] = nil

	batch, err := tr.Transform(w)
	require.NoError(t, err)
	assert.Equal(t, 19, batch.Len())
	for _, s := range append(batch.Train, batch.Test...) {
		cur := s.Observation.Current().Steering
		assert.NotEqual(t, 8.0, cur)
		assert.InDelta(t, cur/100, s.Label[0], 1e-12)
		assert.Equal(t, 2, s.Gear)
	}

	w = window(3, true)
	for i := range w.Expert {
		w.Expert[i] = nil
	}
	w.Previous = &vehicle.Telemetry{Steering: -1}
	_, err = tr.Transform(w)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestTransformPlainLabels(t *testing.T) {
	tr := NewTransformer(1, 1, 1)

	batch, err := tr.Transform(window(10, false))
	require.NoError(t, err)
	assert.Equal(t, 9, batch.Len())
	for _, s := range batch.Train {
		assert.Equal(t, 1.0, s.Label[0])
	}

	w := window(10, false)
	w.Previous = &vehicle.Telemetry{Steering: -1}
	batch, err = tr.Transform(w)
	require.NoError(t, err)
	assert.Equal(t, 10, batch.Len())
}

func TestTransformIsSeeded(t *testing.T) {
	a, err := NewTransformer(1, 1, 9).Transform(window(50, true))
	require.NoError(t, err)
	b, err := NewTransformer(1, 1, 9).Transform(window(50, true))
	require.NoError(t, err)
	assert.Equal(t, a.Test[0].Label, b.Test[0].Label)
}

func TestTransformEmpty(t *testing.T) {
	_, err := NewTransformer(1, 1, 1).Transform(recorder.Window{})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = NewTransformer(1, 1, 1).Transform(window(1, false))
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestPredictionError(t *testing.T) {
	err := error(&PredictionError{Predictor: "linear", Err: ErrNotTrained})
	assert.ErrorIs(t, err, ErrNotTrained)

	var pe *PredictionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "linear", pe.Predictor)
	assert.Contains(t, err.Error(), "not trained")
}
