package predictor

import (
	"math/rand/v2"

	"github.com/marmos91/dagpilot/pkg/recorder"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// DefaultTestFraction is the share of samples held out for validation.
const DefaultTestFraction = 0.2

// Transformer turns drained recorder windows into training batches.
type Transformer struct {
	Length       int
	Interval     int
	TestFraction float64

	rng *rand.Rand
}

// NewTransformer returns a transformer whose shuffles are determined by seed.
func NewTransformer(length, interval int, seed uint64) *Transformer {
	return &Transformer{
		Length:       length,
		Interval:     interval,
		TestFraction: DefaultTestFraction,
		rng:          rand.New(rand.NewPCG(seed, seed+1)),
	}
}

// Transform builds a batch from w.
//
// Dagger windows are labelled with the expert deltas, and ticks whose expert
// action is missing are dropped. Plain windows are labelled with the telemetry
// change since the previous tick, and the first tick is dropped when no
// earlier telemetry exists. Dropped ticks still feed the observation history
// of later samples.
func (t *Transformer) Transform(w recorder.Window) (TrainingBatch, error) {
	samples := make([]Sample, 0, w.Len())
	for i := 0; i < w.Len(); i++ {
		var label vehicle.ExpertAction
		switch {
		case w.Expert != nil:
			if w.Expert[i] == nil {
				continue
			}
			label = *w.Expert[i]
		case i > 0:
			label = w.Telemetry[i].Delta(w.Telemetry[i-1])
		case w.Previous != nil:
			label = w.Telemetry[i].Delta(*w.Previous)
		default:
			continue
		}
		samples = append(samples, Sample{
			Observation: Window(w.Frames, w.Telemetry, i, t.Length, t.Interval),
			Label:       label.Values(),
			Gear:        label.Gear,
		})
	}
	if len(samples) == 0 {
		return TrainingBatch{}, ErrEmptyBatch
	}

	t.rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })

	nTest := int(float64(len(samples)) * t.TestFraction)
	return TrainingBatch{
		Train: samples[nTest:],
		Test:  samples[:nTest],
	}, nil
}
