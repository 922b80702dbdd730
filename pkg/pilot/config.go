package pilot

import (
	"fmt"
	"time"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Mode selects how actions are chosen and what is recorded.
type Mode string

const (
	// ModeDagger mixes expert and predictor actions and records expert labels.
	ModeDagger Mode = "dagger"

	// ModePlain always drives with the predictor and records telemetry only.
	ModePlain Mode = "plain"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDagger, ModePlain:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown pilot mode %q", s)
	}
}

// Default retrain cadences in ticks.
const (
	DefaultDaggerEvery = 200
	DefaultPlainEvery  = 500
)

// Config configures a Loop.
type Config struct {
	Mode Mode

	// DaggerEvery and PlainEvery are the retrain cadences for each mode.
	DaggerEvery int
	PlainEvery  int

	// RetrainTimeout bounds a single Fit. Zero means no limit.
	RetrainTimeout time.Duration

	// ExpertFallback sends the expert action when prediction fails in dagger
	// mode instead of skipping the tick.
	ExpertFallback bool

	// FrameWidth and FrameHeight are the resolution frames are downsampled to.
	FrameWidth  int
	FrameHeight int

	// PretrainedModel is loaded into the predictor before the handshake.
	PretrainedModel string

	// SaveModel persists the predictor on shutdown after at least one
	// successful retrain, under a dated name in ModelsDir.
	SaveModel bool
	ModelsDir string

	// SessionID identifies the session. Generated when empty.
	SessionID string

	// Now overrides the clock.
	Now func() time.Time
}

// Cadence returns the retrain interval for the configured mode.
func (c Config) Cadence() int {
	if c.Mode == ModePlain {
		return c.PlainEvery
	}
	return c.DaggerEvery
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDagger
	}
	if c.DaggerEvery <= 0 {
		c.DaggerEvery = DefaultDaggerEvery
	}
	if c.PlainEvery <= 0 {
		c.PlainEvery = DefaultPlainEvery
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		c.FrameWidth, c.FrameHeight = vehicle.DefaultWidth, vehicle.DefaultHeight
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
