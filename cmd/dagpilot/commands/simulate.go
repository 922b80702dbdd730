package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dagpilot/internal/cli/output"
	"github.com/marmos91/dagpilot/internal/logger"
	"github.com/marmos91/dagpilot/pkg/config"
	"github.com/marmos91/dagpilot/pkg/pilot"
	"github.com/marmos91/dagpilot/pkg/simulator"
	"github.com/marmos91/dagpilot/pkg/transport/memory"
	"github.com/spf13/cobra"
)

var (
	simTicks       int
	simMode        string
	simSeed        uint64
	simInterval    time.Duration
	simSessionsDir string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a scripted vehicle in-process",
	Long: `Run a full session against a scripted vehicle instead of the network link.

The simulated vehicle follows a winding track and, in dagger mode, labels every
frame with a synthetic expert action. The loop retrains, records and archives
the session exactly as it does with a real vehicle.

Examples:
  # Short dagger run
  dagpilot simulate --ticks 500

  # Plain run with a fixed seed
  dagpilot simulate --mode plain --seed 42`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 1000, "Number of observations the vehicle publishes")
	simulateCmd.Flags().StringVar(&simMode, "mode", "", "Override pilot.mode (dagger or plain)")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "Seed for the track and the mixer (0 = random)")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 0, "Pause between observations (0 = as fast as possible)")
	simulateCmd.Flags().StringVar(&simSessionsDir, "sessions-dir", "", "Override recorder.sessions_path")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if simMode != "" {
		mode, err := pilot.ParseMode(simMode)
		if err != nil {
			return err
		}
		cfg.Pilot.Mode = string(mode)
	}
	if simSeed != 0 {
		cfg.Pilot.Seed = simSeed
	}
	if simSessionsDir != "" {
		cfg.Recorder.SessionsPath = simSessionsDir
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := memory.New(cfg.Transport.ReceiveBuffer)
	sim := simulator.New(simulator.Config{
		Ticks:    simTicks,
		Width:    cfg.Frame.Width,
		Height:   cfg.Frame.Height,
		Expert:   cfg.Pilot.Mode == string(pilot.ModeDagger),
		Interval: simInterval,
		Seed:     simSeed,
	})
	tr.OnSend(sim.Apply)

	sess, err := buildSession(ctx, cfg, tr)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Catalog close failed", logger.KeyError, err)
		}
	}()

	go func() {
		if err := sim.Run(ctx, tr); err != nil {
			logger.Error("Simulation failed", logger.KeyError, err)
		}
	}()

	runErr := sess.loop.Run(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	if err := output.PrintDetails(out, statusDetails(sess.loop.Status(), time.Now())); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nVehicle applied %d commands\n", sim.Applied())
	return runErr
}
