package fca

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/pbassut/canbus/control"
)

// FaultTemporaryBit is the limiter fault code used for the EPS_2
// LKAS_TEMPORARY_FAULT flag. Codes 0..7 are LKAS_STATE values.
const FaultTemporaryBit = 8

// Params are the tuning constants of one vehicle profile. A Params value is
// immutable once handed to NewAssembler.
type Params struct {
	SteerMax              int     `toml:"steer_max"`
	SteerDeltaUp          int     `toml:"steer_delta_up"`
	SteerDeltaDown        int     `toml:"steer_delta_down"`
	SteerErrorMax         int     `toml:"steer_error_max"`
	SteerErrorThreshold   int     `toml:"steer_error_threshold"`
	SteerErrorTicks       int     `toml:"steer_error_ticks"`
	SteerDriverMultiplier float64 `toml:"steer_driver_multiplier"`
	SteerDriverFactor     float64 `toml:"steer_driver_factor"`
	SteerDriverAllowance  int     `toml:"steer_driver_allowance"`
	// SteerFeedback is "measured" (EPS motor torque) or "driver".
	SteerFeedback string `toml:"steer_feedback"`
	// SteerOutputScale multiplies the limited torque when the frame is
	// written. The limiter state keeps the unscaled value.
	SteerOutputScale float64 `toml:"steer_output_scale"`

	// Ticks between LKAS_COMMAND and LKA_HUD_2 frames.
	SteerStep int `toml:"steer_step"`
	HUDStep   int `toml:"hud_step"`

	Longitudinal bool      `toml:"longitudinal"`
	AccelMax     float64   `toml:"accel_max"`
	AccelMin     float64   `toml:"accel_min"`
	ThrottleBP   []float64 `toml:"throttle_bp"`
	ThrottleV    []float64 `toml:"throttle_v"`

	PermanentFaultCodes []int `toml:"permanent_fault_codes"`
	TemporaryFaultCodes []int `toml:"temporary_fault_codes"`
}

// DefaultParams returns the Fastback Limited Edition 2024 tuning.
func DefaultParams() Params {
	return Params{
		SteerMax:              1440,
		SteerDeltaUp:          4,
		SteerDeltaDown:        3,
		SteerErrorMax:         250,
		SteerErrorThreshold:   100,
		SteerErrorTicks:       50,
		SteerDriverMultiplier: 4,
		SteerDriverFactor:     1,
		SteerDriverAllowance:  15,
		SteerFeedback:         "measured",
		SteerOutputScale:      1,
		SteerStep:             1,
		HUDStep:               4,
		AccelMax:              2,
		AccelMin:              -4,
		ThrottleBP:            []float64{-4, 0, 2},
		ThrottleV:             []float64{-27, 0, 272},
		PermanentFaultCodes:   []int{EPSStatePermanentFault},
		TemporaryFaultCodes:   []int{FaultTemporaryBit},
	}
}

// LimiterConfig converts the steering parameters.
func (p Params) LimiterConfig() (control.LimiterConfig, error) {
	fb, err := control.ParseFeedback(p.SteerFeedback)
	if err != nil {
		return control.LimiterConfig{}, err
	}
	return control.LimiterConfig{
		Max:                 p.SteerMax,
		DeltaUp:             p.SteerDeltaUp,
		DeltaDown:           p.SteerDeltaDown,
		DriverAllowance:     p.SteerDriverAllowance,
		DriverMultiplier:    p.SteerDriverMultiplier,
		DriverFactor:        p.SteerDriverFactor,
		ErrorThreshold:      p.SteerErrorThreshold,
		ErrorMax:            p.SteerErrorMax,
		ErrorTicks:          p.SteerErrorTicks,
		Feedback:            fb,
		PermanentFaultCodes: slices.Clone(p.PermanentFaultCodes),
		TemporaryFaultCodes: slices.Clone(p.TemporaryFaultCodes),
	}, nil
}

// Validate checks the parameters.
func (p Params) Validate() error {
	var errs []error
	lc, err := p.LimiterConfig()
	if err != nil {
		errs = append(errs, err)
	} else if err := lc.Validate(); err != nil {
		errs = append(errs, err)
	}
	if p.SteerOutputScale <= 0 {
		errs = append(errs, fmt.Errorf("steer_output_scale must be positive"))
	}
	if p.SteerStep < 1 || p.HUDStep < 1 {
		errs = append(errs, fmt.Errorf("steer_step and hud_step must be at least 1"))
	}
	if p.AccelMin >= p.AccelMax {
		errs = append(errs, fmt.Errorf("accel_min %v must be below accel_max %v", p.AccelMin, p.AccelMax))
	}
	if err := control.ValidateTable(p.ThrottleBP, p.ThrottleV); err != nil {
		errs = append(errs, fmt.Errorf("throttle table: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("fca: invalid params: %w", err)
	}
	return nil
}

// ParseParams applies TOML overrides to DefaultParams. Unknown keys are
// rejected.
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Params{}, fmt.Errorf("fca: parse params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadParams reads a TOML params file.
func LoadParams(path string) (Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("fca: read params: %w", err)
	}
	return ParseParams(b)
}
