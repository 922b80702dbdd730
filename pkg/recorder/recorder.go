// Package recorder buffers the experience of a driving session.
//
// Every tick appends one (frame, telemetry[, expert]) tuple. Extract drains the
// tuples recorded since the previous Extract for training, while the whole
// history is kept until SaveSession writes it out as a video and a JSON-lines
// telemetry file.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// ErrLengthMismatch is returned by SaveSession when the frame and telemetry
// histories have diverged.
var ErrLengthMismatch = errors.New("frame and telemetry counts differ")

// Config configures a Recorder.
type Config struct {
	// Dir receives the session artifacts.
	Dir string

	// Width, Height and FPS describe the persisted video.
	Width  int
	Height int
	FPS    int

	// JPEGQuality is the per-frame MJPEG quality (1-100).
	JPEGQuality int

	Mapping vehicle.Mapping

	// Now overrides the clock used for artifact names.
	Now func() time.Time
}

// Window is a drained batch of fresh experience. Entries are aligned by index.
type Window struct {
	Frames    []*vehicle.Frame
	Telemetry []vehicle.Telemetry

	// Expert is set when the window holds dagger-mode tuples. A nil entry marks
	// a tuple whose expert action was missing; it carries no label.
	Expert []*vehicle.ExpertAction

	// Previous is the last telemetry recorded before the window, if any.
	Previous *vehicle.Telemetry
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return len(w.Frames)
}

// Recorder is the session buffer. It is safe for concurrent use, although the
// control loop is its only writer.
type Recorder struct {
	cfg Config

	mu          sync.Mutex
	frames      []*vehicle.Frame
	telemetry   []*vehicle.Telemetry
	expert      []*vehicle.ExpertAction
	dagger      []bool
	windowStart int
	saves       int
}

// New returns an empty recorder.
func New(cfg Config) *Recorder {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Mapping == nil {
		cfg.Mapping = vehicle.DefaultMapping()
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	return &Recorder{cfg: cfg}
}

// Record appends a plain-mode tuple.
func (r *Recorder) Record(frame *vehicle.Frame, telemetry *vehicle.Telemetry) {
	r.append(frame, telemetry, nil, false)
}

// RecordExpert appends a dagger-mode tuple. expert may be nil when the expert
// action did not arrive for this tick.
func (r *Recorder) RecordExpert(frame *vehicle.Frame, telemetry *vehicle.Telemetry, expert *vehicle.ExpertAction) {
	r.append(frame, telemetry, expert, true)
}

func (r *Recorder) append(frame *vehicle.Frame, telemetry *vehicle.Telemetry, expert *vehicle.ExpertAction, dagger bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	r.telemetry = append(r.telemetry, telemetry)
	r.expert = append(r.expert, expert)
	r.dagger = append(r.dagger, dagger)
}

// Len returns the number of tuples in the session history.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// WindowLen returns the number of tuples recorded since the last Extract.
func (r *Recorder) WindowLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames) - r.windowStart
}

// Extract drains the fresh window. Tuples with a nil frame or telemetry are
// left out. The session history is not modified.
func (r *Recorder) Extract() Window {
	r.mu.Lock()
	defer r.mu.Unlock()

	var w Window
	for i := r.windowStart - 1; i >= 0; i-- {
		if r.telemetry[i] != nil {
			prev := *r.telemetry[i]
			w.Previous = &prev
			break
		}
	}

	dagger := false
	var expert []*vehicle.ExpertAction
	end := min(len(r.frames), len(r.telemetry), len(r.expert))
	for i := r.windowStart; i < end; i++ {
		if r.frames[i] == nil || r.telemetry[i] == nil {
			continue
		}
		w.Frames = append(w.Frames, r.frames[i])
		w.Telemetry = append(w.Telemetry, *r.telemetry[i])
		var action *vehicle.ExpertAction
		if r.expert[i] != nil {
			a := *r.expert[i]
			action = &a
		}
		expert = append(expert, action)
		dagger = dagger || r.dagger[i]
	}
	if dagger {
		w.Expert = expert
	}

	r.windowStart = len(r.frames)
	return w
}

// Artifact describes one persisted session.
type Artifact struct {
	Name          string
	VideoPath     string
	TelemetryPath string
	Frames        int
	Skipped       int
	CreatedAt     time.Time
}

// SaveSession writes the history and clears it. A call on an empty history
// writes a valid empty artifact under a fresh name.
func (r *Recorder) SaveSession(ctx context.Context) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) != len(r.telemetry) {
		return Artifact{}, fmt.Errorf("%w: %d frames, %d telemetry records", ErrLengthMismatch, len(r.frames), len(r.telemetry))
	}

	r.saves++
	now := r.cfg.Now()
	name := fmt.Sprintf("%s_%03d", now.Format("2006_01_02_15_04_05"), r.saves)

	art, err := r.write(ctx, name)
	if err != nil {
		return art, err
	}
	art.CreatedAt = now

	logger.InfoCtx(ctx, "Session saved",
		logger.KeyName, art.Name,
		logger.KeyFrames, art.Frames,
		"skipped", art.Skipped,
		logger.KeyPath, art.VideoPath)

	r.frames, r.telemetry, r.expert, r.dagger = nil, nil, nil, nil
	r.windowStart = 0
	return art, nil
}
