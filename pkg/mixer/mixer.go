// Package mixer decides, tick by tick, whether the expert or the learned
// predictor drives the vehicle.
//
// The expert is trusted less with every successful retrain: at iteration i it is
// chosen with probability exp(-0.5 * i).
package mixer

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Decay is the rate at which expert probability falls per dagger iteration.
const Decay = 0.5

// Source identifies who produced the action sent on a tick.
type Source string

const (
	SourceExpert Source = "expert"
	SourceModel  Source = "model"
)

// ExpertProbability returns exp(-Decay * iteration). Negative iterations are
// treated as zero.
func ExpertProbability(iteration int64) float64 {
	if iteration < 0 {
		iteration = 0
	}
	return math.Exp(-Decay * float64(iteration))
}

// Decision is the outcome of one draw.
type Decision struct {
	Source      Source
	Probability float64
	Draw        float64
}

// Mixer samples expert/model decisions from a seeded source. It is safe for
// concurrent use.
type Mixer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a mixer whose decision sequence is fully determined by seed.
func New(seed uint64) *Mixer {
	return &Mixer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a mixer seeded from the clock.
func NewRandom() *Mixer {
	return New(uint64(time.Now().UnixNano()))
}

// Decide draws r in [0, 1) and picks the model when r > p, the expert otherwise.
func (m *Mixer) Decide(iteration int64) Decision {
	p := ExpertProbability(iteration)

	m.mu.Lock()
	r := m.rng.Float64()
	m.mu.Unlock()

	d := Decision{Source: SourceExpert, Probability: p, Draw: r}
	if r > p {
		d.Source = SourceModel
	}
	return d
}
