// Package linear is an in-process ridge regression predictor.
//
// It accumulates the normal equations of every batch it is fit on, so the
// model keeps learning from the aggregate of all drained windows even though
// each window is seen only once.
package linear

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Name is reported by Predictor.Name.
const Name = "linear"

// outputs are the predicted deltas: steering, throttle, braking.
const outputs = 3

// checkEvery is how many samples Fit processes between context checks.
const checkEvery = 32

// Config configures the regression.
type Config struct {
	// MemoryLength is the number of frames per observation.
	MemoryLength int

	// PoolWidth and PoolHeight set the luminance grid per frame.
	PoolWidth  int
	PoolHeight int

	// Lambda is the ridge penalty.
	Lambda float64

	// ModelsDir stores saved models.
	ModelsDir string

	Mode vehicle.PredictionMode
}

// Predictor implements predictor.Predictor.
type Predictor struct {
	cfg Config
	dim int

	mu      sync.RWMutex
	xtx     *mat.SymDense // sum of x xᵀ
	xty     *mat.Dense    // sum of x yᵀ
	weights *mat.Dense    // dim x outputs, nil until trained
	samples int
}

var _ predictor.Predictor = (*Predictor)(nil)

// New returns an untrained predictor.
func New(cfg Config) *Predictor {
	cfg.MemoryLength = max(cfg.MemoryLength, 1)
	if cfg.PoolWidth <= 0 {
		cfg.PoolWidth = 8
	}
	if cfg.PoolHeight <= 0 {
		cfg.PoolHeight = 6
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = 1.0
	}
	if cfg.Mode == "" {
		cfg.Mode = vehicle.ModeDifferential
	}
	dim := featureDim(cfg.MemoryLength, cfg.PoolWidth, cfg.PoolHeight)
	return &Predictor{
		cfg: cfg,
		dim: dim,
		xtx: mat.NewSymDense(dim, nil),
		xty: mat.NewDense(dim, outputs, nil),
	}
}

// Name implements predictor.Predictor.
func (p *Predictor) Name() string { return Name }

// Samples returns how many samples the model has been fit on.
func (p *Predictor) Samples() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.samples
}

// Trained reports whether Predict can succeed.
func (p *Predictor) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.weights != nil
}

// Predict implements predictor.Predictor.
func (p *Predictor) Predict(_ context.Context, obs predictor.Observation) (vehicle.ControlCommand, error) {
	p.mu.RLock()
	w := p.weights
	p.mu.RUnlock()

	if w == nil {
		return vehicle.ControlCommand{}, &predictor.PredictionError{Predictor: Name, Err: predictor.ErrNotTrained}
	}
	if len(obs.Frames) != p.cfg.MemoryLength || len(obs.Telemetry) != p.cfg.MemoryLength {
		return vehicle.ControlCommand{}, &predictor.PredictionError{
			Predictor: Name,
			Err:       fmt.Errorf("observation has %d frames, model expects %d", len(obs.Frames), p.cfg.MemoryLength),
		}
	}

	x := mat.NewVecDense(p.dim, features(obs, p.cfg.PoolWidth, p.cfg.PoolHeight, make([]float64, 0, p.dim)))
	var y mat.VecDense
	y.MulVec(w.T(), x)

	for i := 0; i < outputs; i++ {
		if v := y.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return vehicle.ControlCommand{}, &predictor.PredictionError{Predictor: Name, Err: errors.New("non-finite output")}
		}
	}

	cur := obs.Current()
	return vehicle.FromDelta(p.cfg.Mode, cur.Gear, cur, y.AtVec(0), y.AtVec(1), y.AtVec(2)), nil
}

// Fit implements predictor.Predictor. The accumulated state is only replaced
// once the whole batch has been absorbed and solved.
func (p *Predictor) Fit(ctx context.Context, batch predictor.TrainingBatch) error {
	if batch.Len() == 0 {
		return predictor.ErrEmptyBatch
	}
	for i, s := range batch.Test {
		if len(s.Label) != outputs {
			return fmt.Errorf("test sample %d: label has %d values, want %d", i, len(s.Label), outputs)
		}
	}

	p.mu.RLock()
	xtx := mat.NewSymDense(p.dim, nil)
	xtx.CopySym(p.xtx)
	xty := mat.DenseCopyOf(p.xty)
	p.mu.RUnlock()

	buf := make([]float64, 0, p.dim)
	for i, s := range batch.Train {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(s.Label) != outputs {
			return fmt.Errorf("sample %d: label has %d values, want %d", i, len(s.Label), outputs)
		}
		x := mat.NewVecDense(p.dim, features(s.Observation, p.cfg.PoolWidth, p.cfg.PoolHeight, buf))
		xtx.SymRankOne(xtx, 1, x)
		xty.RankOne(xty, 1, x, mat.NewVecDense(outputs, s.Label))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	weights, err := solve(xtx, xty, p.cfg.Lambda)
	if err != nil {
		return err
	}

	trainLoss := mse(weights, batch.Train, p.cfg.PoolWidth, p.cfg.PoolHeight, p.dim)
	testLoss := mse(weights, batch.Test, p.cfg.PoolWidth, p.cfg.PoolHeight, p.dim)

	p.mu.Lock()
	p.xtx, p.xty, p.weights = xtx, xty, weights
	p.samples += len(batch.Train)
	total := p.samples
	p.mu.Unlock()

	logger.InfoCtx(ctx, "Linear model fit",
		logger.KeySamples, len(batch.Train),
		"total_samples", total,
		logger.KeyTrainLoss, trainLoss,
		logger.KeyTestLoss, testLoss)
	return nil
}

// solve returns W minimizing |XW - Y|² + lambda|W|², given XᵀX and XᵀY.
func solve(xtx *mat.SymDense, xty *mat.Dense, lambda float64) (*mat.Dense, error) {
	n := xtx.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	a.CopySym(xtx)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, a.At(i, i)+lambda)
	}

	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, errors.New("normal equations are not positive definite")
	}
	var w mat.Dense
	if err := chol.SolveTo(&w, xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}
	return &w, nil
}

func mse(w *mat.Dense, samples []predictor.Sample, poolW, poolH, dim int) float64 {
	if len(samples) == 0 {
		return 0
	}
	buf := make([]float64, 0, dim)
	var sum float64
	var y mat.VecDense
	for _, s := range samples {
		x := mat.NewVecDense(dim, features(s.Observation, poolW, poolH, buf))
		y.MulVec(w.T(), x)
		for i := 0; i < outputs; i++ {
			d := y.AtVec(i) - s.Label[i]
			sum += d * d
		}
	}
	return sum / float64(len(samples)*outputs)
}
