package remote

import (
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

type frameJSON struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pix    []byte `json:"pix"` // base64 RGB
}

type telemetryJSON struct {
	Gear     int     `json:"gear"`
	Steering float64 `json:"steering"`
	Throttle float64 `json:"throttle"`
	Braking  float64 `json:"braking"`
}

type observationJSON struct {
	Frames    []frameJSON     `json:"frames"`
	Telemetry []telemetryJSON `json:"telemetry"`
}

type sampleJSON struct {
	observationJSON
	Label []float64 `json:"label"`
	Gear  int       `json:"gear"`
}

type fitRequest struct {
	Train []sampleJSON `json:"train"`
	Test  []sampleJSON `json:"test"`
}

type predictResponse struct {
	DSteering float64 `json:"d_steering"`
	DThrottle float64 `json:"d_throttle"`
	DBraking  float64 `json:"d_braking"`
	Gear      *int    `json:"gear,omitempty"`
}

func toObservationJSON(obs predictor.Observation) observationJSON {
	out := observationJSON{
		Frames:    make([]frameJSON, 0, len(obs.Frames)),
		Telemetry: make([]telemetryJSON, 0, len(obs.Telemetry)),
	}
	for _, f := range obs.Frames {
		if f == nil {
			out.Frames = append(out.Frames, frameJSON{})
			continue
		}
		out.Frames = append(out.Frames, frameJSON{Width: f.Width, Height: f.Height, Pix: f.Pix})
	}
	for _, t := range obs.Telemetry {
		out.Telemetry = append(out.Telemetry, telemetryJSON{t.Gear, t.Steering, t.Throttle, t.Braking})
	}
	return out
}

func toSamplesJSON(samples []predictor.Sample) []sampleJSON {
	out := make([]sampleJSON, 0, len(samples))
	for _, s := range samples {
		out = append(out, sampleJSON{observationJSON: toObservationJSON(s.Observation), Label: s.Label, Gear: s.Gear})
	}
	return out
}

func (r predictResponse) command(mode vehicle.PredictionMode, cur vehicle.Telemetry) vehicle.ControlCommand {
	gear := cur.Gear
	if r.Gear != nil {
		gear = *r.Gear
	}
	return vehicle.FromDelta(mode, gear, cur, r.DSteering, r.DThrottle, r.DBraking)
}
