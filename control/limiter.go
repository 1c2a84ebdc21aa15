// Package control holds the actuator-side building blocks of the control
// loop: the torque rate limiter, table interpolation and edge detection.
// Everything here is pure; state is passed in and returned by value.
package control

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Feedback selects which measured signal the limiter compares against its
// command.
type Feedback uint8

const (
	// FeedbackDriver uses the torque applied by the driver.
	FeedbackDriver Feedback = iota
	// FeedbackMeasured uses the torque reported by the EPS motor.
	FeedbackMeasured
)

func (f Feedback) String() string {
	switch f {
	case FeedbackDriver:
		return "driver"
	case FeedbackMeasured:
		return "measured"
	default:
		return fmt.Sprintf("Feedback(%d)", uint8(f))
	}
}

// ParseFeedback is the inverse of Feedback.String.
func ParseFeedback(s string) (Feedback, error) {
	switch s {
	case "driver":
		return FeedbackDriver, nil
	case "measured":
		return FeedbackMeasured, nil
	}
	return 0, fmt.Errorf("control: unknown feedback %q", s)
}

// LimiterConfig holds the per-vehicle limits of one actuator channel, in
// actuator units.
type LimiterConfig struct {
	Max       int
	DeltaUp   int
	DeltaDown int

	// Feedback above DriverAllowance opposing the command widens the step
	// toward zero by DriverMultiplier × DriverFactor.
	DriverAllowance  int
	DriverMultiplier float64
	DriverFactor     float64

	// Deviation above ErrorThreshold accumulates; an accumulator above
	// ErrorMax for ErrorTicks consecutive ticks raises a temporary fault.
	ErrorThreshold int
	ErrorMax       int
	ErrorTicks     int

	Feedback Feedback

	// Vehicle-reported fault codes.
	PermanentFaultCodes []int
	TemporaryFaultCodes []int
}

// Validate checks the configuration.
func (c LimiterConfig) Validate() error {
	var errs []error
	if c.Max <= 0 {
		errs = append(errs, fmt.Errorf("max must be positive, got %d", c.Max))
	}
	if c.DeltaUp <= 0 || c.DeltaDown <= 0 {
		errs = append(errs, fmt.Errorf("deltas must be positive, got up=%d down=%d", c.DeltaUp, c.DeltaDown))
	}
	if c.DriverAllowance < 0 {
		errs = append(errs, fmt.Errorf("driver allowance must not be negative"))
	}
	if c.DriverMultiplier < 0 || c.DriverFactor < 0 || math.IsNaN(c.DriverMultiplier) || math.IsNaN(c.DriverFactor) {
		errs = append(errs, fmt.Errorf("driver multiplier/factor must be non-negative numbers"))
	}
	if c.ErrorThreshold < 0 || c.ErrorMax < 0 || c.ErrorTicks < 1 {
		errs = append(errs, fmt.Errorf("error accounting needs threshold>=0, max>=0, ticks>=1"))
	}
	if c.Feedback != FeedbackDriver && c.Feedback != FeedbackMeasured {
		errs = append(errs, fmt.Errorf("unknown feedback %v", c.Feedback))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("control: invalid limiter config: %w", err)
	}
	return nil
}

// WidenedStep is the per-tick step toward zero while the driver overrides.
func (c LimiterConfig) WidenedStep() int {
	w := int(math.Floor(float64(c.DeltaDown) * c.DriverMultiplier * c.DriverFactor))
	return max(c.DeltaDown, w)
}

// LimiterState is the state of one channel between ticks.
type LimiterState struct {
	Last       int
	ErrorAccum int
	OverTicks  int
	Temporary  bool
	Permanent  bool
	// Overriding reports that the last step yielded to the driver.
	Overriding bool
}

// Faulted reports whether the output must ramp to zero.
func (s LimiterState) Faulted() bool { return s.Temporary || s.Permanent }

// LimiterInput is what one tick feeds into the limiter.
type LimiterInput struct {
	Desired        int
	DriverTorque   int
	MeasuredTorque int
	// FaultCode is the vehicle-reported actuator state; zero is nominal.
	FaultCode int
}

// RateLimiter bounds one actuator channel. It is immutable and safe to share;
// all state lives in LimiterState.
type RateLimiter struct {
	cfg LimiterConfig
}

func NewRateLimiter(cfg LimiterConfig) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.PermanentFaultCodes = slices.Clone(cfg.PermanentFaultCodes)
	cfg.TemporaryFaultCodes = slices.Clone(cfg.TemporaryFaultCodes)
	return &RateLimiter{cfg: cfg}, nil
}

// Config returns the limiter configuration.
func (l *RateLimiter) Config() LimiterConfig { return l.cfg }

// Reset returns the state after an external reset such as an ignition cycle.
// It is the only way to clear a permanent fault.
func (l *RateLimiter) Reset() LimiterState { return LimiterState{} }

// Step runs one tick and returns the applied command and the next state.
func (l *RateLimiter) Step(st LimiterState, in LimiterInput) (int, LimiterState) {
	c := &l.cfg
	next := st

	// Fault accounting compares this tick's feedback with the command that
	// produced it.
	if slices.Contains(c.PermanentFaultCodes, in.FaultCode) {
		next.Permanent = true
	}
	dev := l.deviation(st.Last, in)
	if dev > c.ErrorThreshold {
		next.ErrorAccum = min(st.ErrorAccum+dev-c.ErrorThreshold, 2*c.ErrorMax+1)
		if next.ErrorAccum > c.ErrorMax {
			next.OverTicks = min(st.OverTicks+1, c.ErrorTicks)
		} else {
			next.OverTicks = 0
		}
	} else {
		next.ErrorAccum = 0
		next.OverTicks = 0
	}
	next.Temporary = next.OverTicks >= c.ErrorTicks || slices.Contains(c.TemporaryFaultCodes, in.FaultCode)

	d := clamp(in.Desired, -c.Max, c.Max)
	if next.Faulted() {
		d = 0
	}

	last := st.Last
	var applied int
	next.Overriding = l.opposed(last, d, in)
	if next.Overriding {
		target := 0
		if sameSign(d, last) && abs(d) < abs(last) {
			target = d
		}
		step := c.WidenedStep()
		applied = last + clamp(target-last, -step, step)
	} else {
		applied = l.rateStep(last, d)
	}
	applied = clamp(applied, -c.Max, c.Max)
	next.Last = applied
	return applied, next
}

// rateStep moves last toward d, growing the magnitude by at most DeltaUp and
// shrinking it by at most DeltaDown. A request across zero stops at zero for
// one tick and leaves it on the next at DeltaUp.
func (l *RateLimiter) rateStep(last, d int) int {
	if sign(last) != 0 && sign(d) == -sign(last) {
		d = 0
	}
	step := l.cfg.DeltaDown
	if abs(d) > abs(last) {
		step = l.cfg.DeltaUp
	}
	return last + clamp(d-last, -step, step)
}

func (l *RateLimiter) feedback(in LimiterInput) int {
	if l.cfg.Feedback == FeedbackMeasured {
		return in.MeasuredTorque
	}
	return in.DriverTorque
}

// deviation is the error-accounting input: how far the measured torque is
// from the last command, or how hard the driver is steering.
func (l *RateLimiter) deviation(last int, in LimiterInput) int {
	if l.cfg.Feedback == FeedbackMeasured {
		return abs(in.MeasuredTorque - last)
	}
	return abs(in.DriverTorque)
}

// opposed reports whether the feedback pushes against the command by more
// than the allowance.
func (l *RateLimiter) opposed(last, desired int, in LimiterInput) bool {
	ref := last
	if ref == 0 {
		ref = desired
	}
	fb := l.feedback(in)
	if ref == 0 || abs(fb) <= l.cfg.DriverAllowance {
		return false
	}
	return sign(fb) == -sign(ref)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func sameSign(a, b int) bool { return sign(a) != 0 && sign(a) == sign(b) }
