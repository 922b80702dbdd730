package pilot

import (
	"time"

	"github.com/marmos91/dagpilot/pkg/mixer"
)

// Status is a point-in-time view of a Loop, safe to take from any goroutine.
type Status struct {
	SessionID         string         `json:"session_id"`
	Mode              Mode           `json:"mode"`
	State             State          `json:"state"`
	Predictor         string         `json:"predictor"`
	StartedAt         time.Time      `json:"started_at,omitzero"`
	Ticks             int64          `json:"ticks"`
	Iteration         int64          `json:"iteration"`
	ExpertProbability float64        `json:"expert_probability"`
	Sent              int64          `json:"sent"`
	Skipped           int64          `json:"skipped"`
	SessionFrames     int            `json:"session_frames"`
	WindowFrames      int            `json:"window_frames"`
	NextRetrainAt     int64          `json:"next_retrain_at"`
	LastRetrain       *RetrainResult `json:"last_retrain,omitempty"`
	Artifact          string         `json:"artifact,omitempty"`
	Model             string         `json:"model,omitempty"`
}

// Status returns a snapshot of the loop counters.
func (l *Loop) Status() Status {
	ticks := l.ticks.Load()
	iteration := l.iteration.Load()
	cadence := int64(l.cfg.Cadence())

	s := Status{
		SessionID:         l.cfg.SessionID,
		Mode:              l.cfg.Mode,
		State:             l.state.load(),
		Predictor:         l.predictor.Name(),
		Ticks:             ticks,
		Iteration:         iteration,
		ExpertProbability: mixer.ExpertProbability(iteration),
		Sent:              l.sent.Load(),
		Skipped:           l.skipped.Load(),
		SessionFrames:     l.recorder.Len(),
		WindowFrames:      l.recorder.WindowLen(),
		NextRetrainAt:     (ticks/cadence + 1) * cadence,
	}
	if l.cfg.Mode == ModePlain {
		s.ExpertProbability = 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	s.StartedAt = l.startedAt
	if l.lastRetrain != nil {
		r := *l.lastRetrain
		s.LastRetrain = &r
	}
	if l.artifact != nil {
		s.Artifact = l.artifact.Name
	}
	s.Model = l.modelSaved
	return s
}
