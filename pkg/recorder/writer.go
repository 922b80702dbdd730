package recorder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/icza/mjpeg"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

const (
	VideoExt     = ".avi"
	TelemetryExt = ".jsonl"
)

// write persists the history under name. The caller holds r.mu.
func (r *Recorder) write(ctx context.Context, name string) (art Artifact, err error) {
	if err := os.MkdirAll(r.cfg.Dir, 0755); err != nil {
		return art, fmt.Errorf("create sessions dir: %w", err)
	}

	art.Name = name
	art.VideoPath = filepath.Join(r.cfg.Dir, name+VideoExt)
	art.TelemetryPath = filepath.Join(r.cfg.Dir, name+TelemetryExt)

	video, err := mjpeg.New(art.VideoPath, int32(r.cfg.Width), int32(r.cfg.Height), int32(r.cfg.FPS))
	if err != nil {
		return art, fmt.Errorf("create video %s: %w", art.VideoPath, err)
	}
	defer func() {
		if cerr := video.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close video: %w", cerr))
		}
	}()

	f, err := os.Create(art.TelemetryPath)
	if err != nil {
		return art, fmt.Errorf("create telemetry %s: %w", art.TelemetryPath, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close telemetry: %w", cerr))
		}
	}()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	var jpg bytes.Buffer

	for i := range r.frames {
		if err := ctx.Err(); err != nil {
			return art, err
		}
		frame, tel := r.frames[i], r.telemetry[i]
		if frame == nil || tel == nil {
			art.Skipped++
			continue
		}

		jpg.Reset()
		img := frame.Resize(r.cfg.Width, r.cfg.Height).RGBA()
		if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: r.cfg.JPEGQuality}); err != nil {
			return art, fmt.Errorf("encode frame %d: %w", i, err)
		}
		if err := video.AddFrame(jpg.Bytes()); err != nil {
			return art, fmt.Errorf("write frame %d: %w", i, err)
		}

		if err := enc.Encode(r.record(tel, r.expert[i])); err != nil {
			return art, fmt.Errorf("write telemetry %d: %w", i, err)
		}
		art.Frames++
	}

	if err := bw.Flush(); err != nil {
		return art, fmt.Errorf("flush telemetry: %w", err)
	}
	return art, nil
}

// record flattens one tuple into a JSON-lines row keyed by wire keys.
func (r *Recorder) record(tel *vehicle.Telemetry, expert *vehicle.ExpertAction) map[string]float64 {
	row := r.cfg.Mapping.EncodeTelemetry(*tel)
	if expert != nil {
		for k, v := range r.cfg.Mapping.EncodeExpert(*expert) {
			if _, taken := row[k]; !taken {
				row[k] = v
			}
		}
	}
	return row
}
