package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return New(Config{
		Dir:    t.TempDir(),
		Width:  8,
		Height: 6,
		FPS:    20,
		Now:    func() time.Time { return clock },
	})
}

func frame(t *testing.T, shade byte) *vehicle.Frame {
	t.Helper()
	pix := make([]byte, 8*6*vehicle.Channels)
	for i := range pix {
		pix[i] = shade
	}
	f, err := vehicle.NewFrame(8, 6, pix)
	require.NoError(t, err)
	return f
}

func tel(steering float64) *vehicle.Telemetry {
	return &vehicle.Telemetry{Gear: 1, Steering: steering, Throttle: 0.5}
}

func readLines(t *testing.T, path string) []map[string]float64 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []map[string]float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var row map[string]float64
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, sc.Err())
	return rows
}

func TestExtractDrainsWindowButKeepsHistory(t *testing.T) {
	r := newTestRecorder(t)
	for i := 0; i < 5; i++ {
		r.Record(frame(t, byte(i)), tel(float64(i)))
	}
	assert.Equal(t, 5, r.WindowLen())

	w := r.Extract()
	assert.Equal(t, 5, w.Len())
	assert.Nil(t, w.Expert)
	assert.Nil(t, w.Previous)
	assert.Equal(t, 0, r.WindowLen())
	assert.Equal(t, 5, r.Len())

	assert.Equal(t, 0, r.Extract().Len())

	r.Record(frame(t, 9), tel(9))
	w = r.Extract()
	require.Equal(t, 1, w.Len())
	require.NotNil(t, w.Previous)
	assert.Equal(t, 4.0, w.Previous.Steering)
	assert.Equal(t, 6, r.Len())
}

func TestExtractExpertWindow(t *testing.T) {
	r := newTestRecorder(t)
	r.RecordExpert(frame(t, 1), tel(0), &vehicle.ExpertAction{Gear: 1, DSteering: 0.1})
	r.RecordExpert(frame(t, 2), tel(0.1), &vehicle.ExpertAction{Gear: 1, DSteering: 0.2})

	w := r.Extract()
	require.Len(t, w.Expert, 2)
	assert.Equal(t, 0.2, w.Expert[1].DSteering)

	r.RecordExpert(frame(t, 3), tel(0.3), &vehicle.ExpertAction{Gear: 1, DSteering: 0.3})
	r.RecordExpert(frame(t, 4), tel(0.4), nil)
	r.RecordExpert(frame(t, 5), tel(0.5), &vehicle.ExpertAction{Gear: 1, DSteering: 0.5})

	w = r.Extract()
	require.Equal(t, 3, w.Len())
	require.Len(t, w.Expert, 3)
	require.NotNil(t, w.Expert[0])
	assert.Equal(t, 0.3, w.Expert[0].DSteering)
	assert.Nil(t, w.Expert[1])
	require.NotNil(t, w.Expert[2])
	assert.Equal(t, 0.5, w.Expert[2].DSteering)

	r.RecordExpert(frame(t, 6), tel(0.6), nil)
	w = r.Extract()
	require.Len(t, w.Expert, 1)
	assert.Nil(t, w.Expert[0])
}

func TestExtractSkipsIncompleteTuples(t *testing.T) {
	r := newTestRecorder(t)
	r.Record(nil, tel(0))
	r.Record(frame(t, 1), nil)
	r.Record(frame(t, 2), tel(0.2))

	w := r.Extract()
	require.Equal(t, 1, w.Len())
	assert.Equal(t, 0.2, w.Telemetry[0].Steering)
}

func TestSaveSession(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t)
	for i := 0; i < 10; i++ {
		r.RecordExpert(frame(t, byte(i*10)), tel(float64(i)/10), &vehicle.ExpertAction{Gear: 1, DSteering: 0.01})
	}
	r.Record(nil, tel(1))
	r.Extract()

	art, err := r.SaveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026_10_19_12_00_00_001", art.Name)
	assert.Equal(t, 10, art.Frames)
	assert.Equal(t, 1, art.Skipped)

	rows := readLines(t, art.TelemetryPath)
	require.Len(t, rows, 10)
	assert.Equal(t, 0.9, rows[9]["sa"])
	assert.Equal(t, 0.01, rows[0]["d_sa"])

	info, err := os.Stat(art.VideoPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.WindowLen())
}

func TestSecondSaveWritesEmptyArtifact(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(t)
	r.Record(frame(t, 1), tel(0))

	first, err := r.SaveSession(ctx)
	require.NoError(t, err)

	second, err := r.SaveSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Name, second.Name)
	assert.NotEqual(t, first.VideoPath, second.VideoPath)
	assert.Equal(t, 0, second.Frames)
	assert.Empty(t, readLines(t, second.TelemetryPath))

	_, err = os.Stat(second.VideoPath)
	assert.NoError(t, err)
	_, err = os.Stat(first.VideoPath)
	assert.NoError(t, err)
}

func TestSaveSessionLengthMismatch(t *testing.T) {
	r := newTestRecorder(t)
	r.Record(frame(t, 1), tel(0))
	r.Record(frame(t, 2), tel(0))
	r.telemetry = r.telemetry[:1]

	_, err := r.SaveSession(context.Background())
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Equal(t, 2, r.Len())
}

func TestSaveSessionHonorsContext(t *testing.T) {
	r := newTestRecorder(t)
	r.Record(frame(t, 1), tel(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.SaveSession(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.Len())
}
