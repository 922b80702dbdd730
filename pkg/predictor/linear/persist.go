package linear

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/predictor"
)

// Ext is the file extension of saved models.
const Ext = ".model"

const formatVersion = 1

// snapshot is the on-disk form of a model.
type snapshot struct {
	Version      int     `json:"version"`
	MemoryLength int     `json:"memory_length"`
	PoolWidth    int     `json:"pool_width"`
	PoolHeight   int     `json:"pool_height"`
	Lambda       float64 `json:"lambda"`
	Samples      int     `json:"samples"`
	XtX          []byte  `json:"xtx"`
	XtY          []byte  `json:"xty"`
	Weights      []byte  `json:"weights,omitempty"`
}

// Path returns the file a model id is stored in.
func (p *Predictor) Path(id string) string {
	return filepath.Join(p.cfg.ModelsDir, id+Ext)
}

// Save implements predictor.Predictor.
func (p *Predictor) Save(_ context.Context, id string) error {
	p.mu.RLock()
	snap := snapshot{
		Version:      formatVersion,
		MemoryLength: p.cfg.MemoryLength,
		PoolWidth:    p.cfg.PoolWidth,
		PoolHeight:   p.cfg.PoolHeight,
		Lambda:       p.cfg.Lambda,
		Samples:      p.samples,
	}
	var err error
	if snap.XtX, err = mat.DenseCopyOf(p.xtx).MarshalBinary(); err == nil {
		snap.XtY, err = p.xty.MarshalBinary()
	}
	if err == nil && p.weights != nil {
		snap.Weights, err = p.weights.MarshalBinary()
	}
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := os.MkdirAll(p.cfg.ModelsDir, 0755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	path := p.Path(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit model: %w", err)
	}

	logger.Info("Model saved", logger.KeyModel, id, logger.KeyPath, path, logger.KeySamples, snap.Samples)
	return nil
}

// Load implements predictor.Predictor. The stored layout must match the
// predictor's configuration.
func (p *Predictor) Load(_ context.Context, id string) error {
	path := p.Path(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", predictor.ErrModelNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode model %s: %w", path, err)
	}
	if snap.Version != formatVersion {
		return fmt.Errorf("model %s: unsupported version %d", path, snap.Version)
	}
	if snap.MemoryLength != p.cfg.MemoryLength || snap.PoolWidth != p.cfg.PoolWidth || snap.PoolHeight != p.cfg.PoolHeight {
		return fmt.Errorf("model %s: layout n%d %dx%d does not match configured n%d %dx%d", path,
			snap.MemoryLength, snap.PoolWidth, snap.PoolHeight,
			p.cfg.MemoryLength, p.cfg.PoolWidth, p.cfg.PoolHeight)
	}

	var gram, xty mat.Dense
	if err := gram.UnmarshalBinary(snap.XtX); err != nil {
		return fmt.Errorf("model %s: xtx: %w", path, err)
	}
	if err := xty.UnmarshalBinary(snap.XtY); err != nil {
		return fmt.Errorf("model %s: xty: %w", path, err)
	}
	if r, c := gram.Dims(); r != p.dim || c != p.dim {
		return fmt.Errorf("model %s: dimension %dx%d, want %d", path, r, c, p.dim)
	}
	if r, c := xty.Dims(); r != p.dim || c != outputs {
		return fmt.Errorf("model %s: xty is %dx%d, want %dx%d", path, r, c, p.dim, outputs)
	}
	xtx := mat.NewSymDense(p.dim, mat.DenseCopyOf(&gram).RawMatrix().Data)

	var weights *mat.Dense
	if len(snap.Weights) > 0 {
		weights = new(mat.Dense)
		if err := weights.UnmarshalBinary(snap.Weights); err != nil {
			return fmt.Errorf("model %s: weights: %w", path, err)
		}
	}

	p.mu.Lock()
	p.xtx, p.xty, p.weights, p.samples = xtx, &xty, weights, snap.Samples
	p.mu.Unlock()

	logger.Info("Model loaded", logger.KeyModel, id, logger.KeyPath, path, logger.KeySamples, snap.Samples)
	return nil
}
