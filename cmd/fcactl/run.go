package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbassut/canbus/fca"
)

// benchLaw requests a constant steering torque while cruise is engaged and
// the brake is released. Pressing the brake with cruise engaged sends one
// cancel.
func benchLaw(steer float64) fca.ControlLaw {
	return fca.ControlLawFunc(func(cs fca.CarState) fca.Controls {
		return fca.Controls{
			Enabled: cs.CruiseEngaged && !cs.BrakePressed,
			Steer:   steer,
			Cancel:  cs.CruiseEngaged && cs.BrakePressed,
		}
	})
}

// statusEvery is how often, in ticks, the run loop logs its state.
const statusEvery = 100

func tickLogger(a *app) func(fca.TickReport) {
	return func(r fca.TickReport) {
		if r.Tick%statusEvery != 0 {
			return
		}
		a.logger.Debug().
			Uint64("tick", r.Tick).
			Bool("lat_active", r.Result.LateralActive).
			Int("applied", r.Result.Applied).
			Int("driver_torque", r.Car.DriverTorque).
			Int("eps_torque", r.Car.EPSTorque).
			Bool("faulted", r.State.Steer.Faulted()).
			Msg("status")
	}
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop on SocketCAN interfaces",
		Long: "Run the fixed-rate control loop against SocketCAN. Bus i is the i-th --iface. " +
			"The bench control law holds --steer while cruise is engaged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLoop(ctx, a)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&a.cfg.LinkUp, "link-up", false, "bring interfaces up first (needs CAP_NET_ADMIN)")
	f.DurationVar(&a.cfg.Interval, "interval", 10*time.Millisecond, "control tick period")
	f.Float64Var(&a.cfg.Steer, "steer", 0, "bench steering request in [-1, 1]")
	f.BoolVar(&a.cfg.LogFrames, "log-frames", false, "log every catalog frame at debug level")
	return cmd
}
