// Package remote delegates prediction and training to an external model
// server over HTTP/JSON.
//
// The server exposes:
//
//	POST /v1/predict            observation -> {d_steering, d_throttle, d_braking[, gear]}
//	POST /v1/fit                {train, test}
//	POST /v1/models/{id}/save
//	POST /v1/models/{id}/load
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/dagpilot/internal/telemetry"
	"github.com/marmos91/dagpilot/pkg/predictor"
	"github.com/marmos91/dagpilot/pkg/vehicle"
)

// Name is reported by Predictor.Name.
const Name = "remote"

// Config configures the client.
type Config struct {
	BaseURL string

	// PredictTimeout bounds each Predict call. Fit is bounded only by its context.
	PredictTimeout time.Duration

	Mode vehicle.PredictionMode
}

// Predictor implements predictor.Predictor against a model server.
type Predictor struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

var _ predictor.Predictor = (*Predictor)(nil)

// New creates a client for the server at cfg.BaseURL.
func New(cfg Config) *Predictor {
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = 200 * time.Millisecond
	}
	if cfg.Mode == "" {
		cfg.Mode = vehicle.ModeDifferential
	}
	return &Predictor{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Name implements predictor.Predictor.
func (p *Predictor) Name() string { return Name }

// Predict implements predictor.Predictor.
func (p *Predictor) Predict(ctx context.Context, obs predictor.Observation) (vehicle.ControlCommand, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PredictTimeout)
	defer cancel()

	var resp predictResponse
	if err := p.do(ctx, http.MethodPost, "/v1/predict", toObservationJSON(obs), &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "NOT_TRAINED" {
			err = fmt.Errorf("%w: %v", predictor.ErrNotTrained, err)
		}
		return vehicle.ControlCommand{}, &predictor.PredictionError{Predictor: Name, Err: err}
	}
	return resp.command(p.cfg.Mode, obs.Current()), nil
}

// Fit implements predictor.Predictor.
func (p *Predictor) Fit(ctx context.Context, batch predictor.TrainingBatch) error {
	if batch.Len() == 0 {
		return predictor.ErrEmptyBatch
	}
	req := fitRequest{Train: toSamplesJSON(batch.Train), Test: toSamplesJSON(batch.Test)}
	if err := p.do(ctx, http.MethodPost, "/v1/fit", req, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("fit: %w", err)
	}
	return nil
}

// Save implements predictor.Predictor.
func (p *Predictor) Save(ctx context.Context, id string) error {
	if err := p.do(ctx, http.MethodPost, "/v1/models/"+url.PathEscape(id)+"/save", nil, nil); err != nil {
		return fmt.Errorf("save model %s: %w", id, err)
	}
	return nil
}

// Load implements predictor.Predictor.
func (p *Predictor) Load(ctx context.Context, id string) error {
	err := p.do(ctx, http.MethodPost, "/v1/models/"+url.PathEscape(id)+"/load", nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return fmt.Errorf("%w: %s: %v", predictor.ErrModelNotFound, id, err)
	}
	if err != nil {
		return fmt.Errorf("load model %s: %w", id, err)
	}
	return nil
}

// do performs a JSON request and decodes the response into result.
func (p *Predictor) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	telemetry.InjectHeaders(ctx, req.Header)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
