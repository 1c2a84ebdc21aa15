package fca

import (
	"errors"
	"fmt"
	"math"

	"github.com/pbassut/canbus"
	"github.com/pbassut/canbus/control"
	"github.com/pbassut/canbus/dbc"
)

// Controls is what the control law asks for in one tick.
type Controls struct {
	// Enabled is the overall engagement; it sets LKAS_REQUEST_BIT.
	Enabled bool
	// Steer is the normalized torque request in [-1, 1].
	Steer float64
	// Accel is the longitudinal request in m/s².
	Accel float64
	// Cancel and Resume are levels; a frame is sent on their rising edge.
	Cancel bool
	Resume bool
}

// TickState is carried from one tick to the next by the caller.
type TickState struct {
	Frame  uint64
	Steer  control.LimiterState
	Cancel control.Edge
	Resume control.Edge
}

// TickResult is the output of one tick.
type TickResult struct {
	Frames []canbus.Frame
	// Applied is the limiter output; Sent is Applied × SteerOutputScale as
	// written into LKAS_COMMAND. Both are zero on ticks without a steering
	// frame.
	Applied  int
	Sent     int
	Throttle int
	// LateralActive reports whether torque was requested this tick.
	LateralActive bool
	// Warnings lists saturated signals; the frames are still sent.
	Warnings []error
}

// Assembler builds the outgoing frames of a control tick.
type Assembler struct {
	cat *dbc.Catalog
	p   Params
	lim *control.RateLimiter
}

func NewAssembler(cat *dbc.Catalog, p Params) (*Assembler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, name := range []string{MsgLKASCommand, MsgLKAHUD2, MsgDAS1, MsgEngine1} {
		if _, ok := cat.Message(name); !ok {
			return nil, fmt.Errorf("fca: catalog %s lacks %s", cat.Name(), name)
		}
	}
	lc, err := p.LimiterConfig()
	if err != nil {
		return nil, err
	}
	lim, err := control.NewRateLimiter(lc)
	if err != nil {
		return nil, err
	}
	return &Assembler{cat: cat, p: p, lim: lim}, nil
}

// Params returns the assembler parameters.
func (a *Assembler) Params() Params { return a.p }

// Catalog returns the catalog frames are built from.
func (a *Assembler) Catalog() *dbc.Catalog { return a.cat }

// Reset clears the steering limiter, including a latched permanent fault.
func (a *Assembler) Reset(st TickState) TickState {
	st.Steer = a.lim.Reset()
	return st
}

// Tick runs one control step. The returned error is only set for frames that
// could not be built at all.
func (a *Assembler) Tick(st TickState, cs CarState, c Controls) (TickResult, TickState, error) {
	var res TickResult
	next := st
	add := func(f canbus.Frame, err error) error {
		if err != nil && !errors.Is(err, dbc.ErrOutOfRange) {
			return err
		}
		if err != nil {
			res.Warnings = append(res.Warnings, err)
		}
		res.Frames = append(res.Frames, f)
		return nil
	}

	active := c.Enabled && cs.LateralAllowed
	res.LateralActive = active

	if st.Frame%uint64(a.p.SteerStep) == 0 {
		desired := 0
		if active {
			desired = int(math.Round(clampf(c.Steer, -1, 1) * float64(a.p.SteerMax)))
		}
		applied, ls := a.lim.Step(st.Steer, control.LimiterInput{
			Desired:        desired,
			DriverTorque:   cs.DriverTorque,
			MeasuredTorque: cs.EPSTorque,
			FaultCode:      cs.FaultCode(),
		})
		next.Steer = ls
		res.Applied = applied
		res.Sent = int(math.Round(float64(applied) * a.p.SteerOutputScale))
		cmd := LKASCommand{Torque: res.Sent, Request: active, Counter: int(st.Frame)}
		if err := add(pack(a.cat, MsgLKASCommand, cmd.values())); err != nil {
			return TickResult{}, st, err
		}
	}

	var cancel, resume bool
	cancel, next.Cancel = st.Cancel.Rising(c.Cancel)
	resume, next.Resume = st.Resume.Rising(c.Resume)
	if cancel || resume {
		btn := CruiseButtons{Button: ButtonResume, Counter: cs.ButtonCounter + 1}
		if cancel {
			btn.Button = ButtonCancel
		}
		if err := add(pack(a.cat, MsgDAS1, btn.values())); err != nil {
			return TickResult{}, st, err
		}
	}

	if a.p.Longitudinal {
		accel := 0.0
		if c.Enabled {
			accel = clampf(c.Accel, a.p.AccelMin, a.p.AccelMax)
		}
		res.Throttle = int(math.Round(control.Interp(accel, a.p.ThrottleBP, a.p.ThrottleV)))
		gb := GasBrake{Throttle: res.Throttle, Counter: int(st.Frame)}
		if err := add(pack(a.cat, MsgEngine1, gb.values())); err != nil {
			return TickResult{}, st, err
		}
	}

	if st.Frame%uint64(a.p.HUDStep) == 0 {
		hud := NewLKASHUD(active, next.Steer.Faulted())
		if err := add(pack(a.cat, MsgLKAHUD2, hud.values())); err != nil {
			return TickResult{}, st, err
		}
	}

	next.Frame = st.Frame + 1
	return res, next, nil
}

func clampf(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(v, hi))
}
