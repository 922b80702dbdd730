package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/api"
	"github.com/marmos91/dagpilot/pkg/config"
	"github.com/marmos91/dagpilot/pkg/transport"
	"github.com/marmos91/dagpilot/pkg/transport/zmq"
	"github.com/marmos91/dagpilot/pkg/vehicle"
	"github.com/spf13/cobra"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect to the vehicle and drive",
	Long: `Start a driving session against the vehicle configured under transport.

The pilot binds its command socket, connects to the vehicle's observation
stream and drives until the vehicle ends the stream or the process receives
SIGINT/SIGTERM. The recorded session is written under recorder.sessions_path
before exit.

Examples:
  # Start with the default config
  dagpilot start

  # Start with custom config file
  dagpilot start --config /etc/dagpilot/config.yaml

  # Collect expert-only data
  DAGPILOT_PILOT_MODE=plain dagpilot start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownObservability, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownObservability()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	mapping, err := vehicle.NewMapping(cfg.Transport.Mapping)
	if err != nil {
		return fmt.Errorf("transport.mapping: %w", err)
	}
	tr := zmq.New(zmq.Config{
		Host:             cfg.Transport.Host,
		BindAddress:      cfg.Transport.BindAddress,
		DataPort:         cfg.Transport.DataPort,
		ControlPort:      cfg.Transport.ControlPort,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		DialRetry:        cfg.Transport.DialRetry,
		ReceiveBuffer:    cfg.Transport.ReceiveBuffer,
		SendBuffer:       cfg.Transport.SendBuffer,
	}, transport.NewCodec(mapping))

	sess, err := buildSession(ctx, cfg, tr)
	if err != nil {
		_ = tr.Close()
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Catalog close failed", logger.KeyError, err)
		}
	}()

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	var apiServer *api.Server
	if cfg.API.IsEnabled() {
		apiServer = api.NewServer(cfg.API, sess.apiDeps())
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("API server error", logger.KeyError, err)
			}
		}()
	} else {
		logger.Info("API server disabled")
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- sess.loop.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Pilot is running. Press Ctrl+C to stop.",
		logger.KeyEndpoint, fmt.Sprintf("tcp://%s:%d", cfg.Transport.Host, cfg.Transport.DataPort))

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, flushing session")
		cancel()
		runErr = awaitLoop(loopDone, cfg.ShutdownTimeout)
	case runErr = <-loopDone:
	}

	if apiServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := apiServer.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("API server shutdown error", logger.KeyError, err)
		}
	}

	if runErr != nil {
		logger.Error("Pilot stopped with error", logger.KeyError, runErr)
		return runErr
	}

	st := sess.loop.Status()
	logger.Info("Pilot stopped gracefully",
		logger.KeySessionID, st.SessionID,
		logger.KeyTick, st.Ticks,
		logger.KeyIteration, st.Iteration,
		logger.KeyName, st.Artifact)
	return nil
}

// awaitLoop waits for the loop to return. The session video is only valid
// once its index is written on close, so the wait is never abandoned; a
// warning is logged each time timeout elapses.
func awaitLoop(loopDone <-chan error, timeout time.Duration) error {
	start := time.Now()
	ticker := time.NewTicker(timeout)
	defer ticker.Stop()
	for {
		select {
		case err := <-loopDone:
			return err
		case <-ticker.C:
			logger.Warn("Session flush still running after shutdown timeout, waiting",
				logger.KeyDurationMs, time.Since(start).Milliseconds())
		}
	}
}
