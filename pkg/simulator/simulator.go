// Package simulator scripts a vehicle driven by a synthetic expert. It feeds
// the control loop through any publisher (normally the in-memory transport)
// and reacts to the commands the loop sends back.
package simulator

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Publisher is the vehicle side of a transport.
type Publisher interface {
	Publish(ctx context.Context, msg transport.Message) error
	EndStream()
}

// Config configures a simulated drive.
type Config struct {
	// Ticks is the number of observations to publish.
	Ticks int

	// Width and Height are the camera resolution.
	Width  int
	Height int

	// Expert attaches expert actions to every observation.
	Expert bool

	// Period is the length of one track curve in ticks.
	Period int

	// Interval paces publishing. Zero publishes as fast as the loop consumes.
	Interval time.Duration

	// Seed drives the track noise.
	Seed uint64

	// Now overrides the clock used to stamp observations.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Ticks <= 0 {
		c.Ticks = 1000
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = vehicle.DefaultWidth, vehicle.DefaultHeight
	}
	if c.Period <= 0 {
		c.Period = 150
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Simulator is a scripted vehicle.
type Simulator struct {
	cfg Config
	rng *rand.Rand

	mu    sync.Mutex
	state vehicle.Telemetry
	// applied counts commands received from the pilot.
	applied int
}

// New returns a simulator at rest in first gear.
func New(cfg Config) *Simulator {
	cfg.applyDefaults()
	return &Simulator{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		state: vehicle.Telemetry{Gear: 1},
	}
}

// Curvature is the track bend at tick i, in [-0.6, 0.6].
func (s *Simulator) Curvature(i int) float64 {
	return 0.6 * math.Sin(2*math.Pi*float64(i)/float64(s.cfg.Period))
}

// Apply updates the vehicle state from a pilot command.
func (s *Simulator) Apply(cmd vehicle.ControlCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.Gear > 0 {
		s.state.Gear = cmd.Gear
	}
	if cmd.Differential {
		s.state.Steering = clamp(s.state.Steering+cmd.Steering, -1, 1)
		s.state.Throttle = clamp(s.state.Throttle+cmd.Throttle, 0, 1)
		s.state.Braking = clamp(s.state.Braking+cmd.Braking, 0, 1)
	} else {
		s.state.Steering = clamp(cmd.Steering, -1, 1)
		s.state.Throttle = clamp(cmd.Throttle, 0, 1)
		s.state.Braking = clamp(cmd.Braking, 0, 1)
	}
	s.applied++
}

// Applied returns how many commands the vehicle has received.
func (s *Simulator) Applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Telemetry returns the current vehicle state.
func (s *Simulator) Telemetry() vehicle.Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Step builds the observation for tick i from the current state.
func (s *Simulator) Step(i int) transport.Message {
	c := s.Curvature(i) + 0.02*(s.rng.Float64()-0.5)
	tel := s.Telemetry()

	msg := transport.Message{
		Frame:     s.render(c),
		Telemetry: tel,
		Received:  s.cfg.Now(),
	}
	if s.cfg.Expert {
		msg.Expert = s.expert(c, tel)
	}
	return msg
}

// expert steers toward the bend and slows down in curves.
func (s *Simulator) expert(c float64, tel vehicle.Telemetry) *vehicle.ExpertAction {
	throttle := 0.6 - 0.3*math.Abs(c)
	braking := 0.0
	if math.Abs(c) > 0.5 {
		braking = 0.1
	}
	gear := 1 + int(math.Round(throttle*3))
	return &vehicle.ExpertAction{
		Gear:      gear,
		DSteering: 0.5 * (c - tel.Steering),
		DThrottle: throttle - tel.Throttle,
		DBraking:  braking - tel.Braking,
	}
}

// render draws a bright road stripe on a dark background, offset by the bend.
func (s *Simulator) render(c float64) *vehicle.Frame {
	w, h := s.cfg.Width, s.cfg.Height
	pix := make([]byte, w*h*vehicle.Channels)
	half := max(w/10, 1)

	for y := range h {
		// The stripe drifts further toward the horizon (top rows).
		depth := 1 - float64(y)/float64(h)
		center := float64(w)/2 + c*depth*float64(w)/2
		for x := range w {
			v := byte(40)
			if math.Abs(float64(x)-center) <= float64(half) {
				v = 210
			}
			o := (y*w + x) * vehicle.Channels
			pix[o], pix[o+1], pix[o+2] = v, v, v
		}
	}
	return &vehicle.Frame{Width: w, Height: h, Pix: pix}
}

// Run publishes cfg.Ticks observations then ends the stream. A closed
// transport ends the run without error.
func (s *Simulator) Run(ctx context.Context, pub Publisher) error {
	defer pub.EndStream()

	var ticker *time.Ticker
	if s.cfg.Interval > 0 {
		ticker = time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
	}

	for i := range s.cfg.Ticks {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}

		err := pub.Publish(ctx, s.Step(i))
		if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
			logger.Debug("Simulation stopped early", logger.KeyTick, i)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
