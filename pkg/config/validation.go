package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
		}
		return err
	}

	if cfg.Transport.ControlPort == cfg.Transport.DataPort ||
		cfg.Transport.ControlPort == cfg.Transport.DataPort+1 ||
		cfg.Transport.DataPort == cfg.Transport.ControlPort+1 {
		return fmt.Errorf("transport ports overlap: data %d-%d, control %d-%d",
			cfg.Transport.DataPort, cfg.Transport.DataPort+1,
			cfg.Transport.ControlPort, cfg.Transport.ControlPort+1)
	}

	if cfg.Predictor.Type == "remote" && cfg.Predictor.Remote.URL == "" {
		return errors.New("predictor.remote.url is required when predictor.type is remote")
	}

	if _, err := vehicle.NewMapping(cfg.Transport.Mapping); err != nil {
		return fmt.Errorf("transport.mapping: %w", err)
	}

	return nil
}
