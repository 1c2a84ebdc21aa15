package control

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func testConfig() LimiterConfig {
	return LimiterConfig{
		Max:                 1440,
		DeltaUp:             4,
		DeltaDown:           3,
		DriverAllowance:     15,
		DriverMultiplier:    4,
		DriverFactor:        1,
		ErrorThreshold:      80,
		ErrorMax:            250,
		ErrorTicks:          5,
		Feedback:            FeedbackDriver,
		PermanentFaultCodes: []int{4},
		TemporaryFaultCodes: []int{5},
	}
}

func mustLimiter(t *testing.T, cfg LimiterConfig) *RateLimiter {
	t.Helper()
	l, err := NewRateLimiter(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestRateLimiter_Bounds(t *testing.T) {
	for _, fb := range []Feedback{FeedbackDriver, FeedbackMeasured} {
		cfg := testConfig()
		cfg.Feedback = fb
		l := mustLimiter(t, cfg)
		bound := max(cfg.DeltaUp, cfg.DeltaDown, cfg.WidenedStep())

		rng := rand.New(rand.NewSource(42))
		st := l.Reset()
		for i := 0; i < 20000; i++ {
			in := LimiterInput{
				Desired:        rng.Intn(6001) - 3000,
				DriverTorque:   rng.Intn(201) - 100,
				MeasuredTorque: rng.Intn(401) - 200,
			}
			if rng.Intn(50) == 0 {
				in.FaultCode = 5
			}
			prev := st.Last
			applied, next := l.Step(st, in)
			if d := abs(applied - prev); d > bound {
				t.Fatalf("%v tick %d: step %d exceeds %d (prev %d, applied %d)", fb, i, d, bound, prev, applied)
			}
			if abs(applied) > cfg.Max {
				t.Fatalf("%v tick %d: |%d| exceeds max", fb, i, applied)
			}
			if next.Last != applied {
				t.Fatalf("state Last %d != applied %d", next.Last, applied)
			}
			st = next
		}
	}
}

func TestRateLimiter_RampUpAndDown(t *testing.T) {
	l := mustLimiter(t, testConfig())
	st := l.Reset()
	var applied int
	for i := 0; i < 10; i++ {
		applied, st = l.Step(st, LimiterInput{Desired: 1000})
	}
	if applied != 40 {
		t.Fatalf("after 10 ticks up: %d, want 40", applied)
	}
	for i := 0; i < 5; i++ {
		applied, st = l.Step(st, LimiterInput{Desired: 0})
	}
	if applied != 25 {
		t.Fatalf("after 5 ticks down: %d, want 25", applied)
	}
	applied, _ = l.Step(LimiterState{Last: 30}, LimiterInput{Desired: 28})
	if applied != 28 {
		t.Fatalf("small decrease: %d, want 28", applied)
	}
	applied, _ = l.Step(LimiterState{Last: 1438}, LimiterInput{Desired: 5000})
	if applied != 1440 {
		t.Fatalf("max clamp: %d, want 1440", applied)
	}
}

func TestRateLimiter_SymmetricOffZero(t *testing.T) {
	l := mustLimiter(t, testConfig())
	for _, dir := range []int{1, -1} {
		applied, _ := l.Step(l.Reset(), LimiterInput{Desired: dir * 100})
		if applied != dir*4 {
			t.Fatalf("first step toward %d: %d, want %d", dir*100, applied, dir*4)
		}
		applied, _ = l.Step(LimiterState{Last: -dir * 20}, LimiterInput{Desired: -dir * 10})
		if applied != -dir*17 {
			t.Fatalf("shrinking from %d: %d, want %d", -dir*20, applied, -dir*17)
		}
	}
}

func TestRateLimiter_CrossingZero(t *testing.T) {
	l := mustLimiter(t, testConfig())
	tests := []struct {
		last, desired int
		want          []int
	}{
		{2, -100, []int{0, -4, -8}},
		{-2, 100, []int{0, 4, 8}},
		{7, -100, []int{4, 1, 0, -4}},
		{-7, 100, []int{-4, -1, 0, 4}},
	}
	for _, tt := range tests {
		st := LimiterState{Last: tt.last}
		for i, w := range tt.want {
			var applied int
			applied, st = l.Step(st, LimiterInput{Desired: tt.desired})
			if applied != w {
				t.Fatalf("%d -> %d tick %d: applied %d, want %d", tt.last, tt.desired, i, applied, w)
			}
		}
	}
}

func TestRateLimiter_DriverOverrideTrendsToZero(t *testing.T) {
	l := mustLimiter(t, testConfig())
	st := LimiterState{Last: 400}
	prev := st.Last
	for i := 0; i < 60; i++ {
		var applied int
		applied, st = l.Step(st, LimiterInput{Desired: 1000, DriverTorque: -50})
		if !st.Overriding {
			t.Fatalf("tick %d: override not detected", i)
		}
		if applied < 0 || applied > prev {
			t.Fatalf("tick %d: applied %d moved away from zero (prev %d)", i, applied, prev)
		}
		if want := max(prev-12, 0); applied != want {
			t.Fatalf("tick %d: applied %d, want %d at widened rate", i, applied, want)
		}
		prev = applied
	}
	if prev != 0 {
		t.Fatalf("did not reach zero: %d", prev)
	}

	// Below the allowance the command ramps normally.
	applied, st := l.Step(LimiterState{Last: 400}, LimiterInput{Desired: 1000, DriverTorque: -15})
	if applied != 404 || st.Overriding {
		t.Fatalf("within allowance: %d overriding=%v", applied, st.Overriding)
	}
	// A smaller same-sign request is the override target.
	applied, _ = l.Step(LimiterState{Last: 400}, LimiterInput{Desired: 395, DriverTorque: -50})
	if applied != 395 {
		t.Fatalf("override toward smaller request: %d, want 395", applied)
	}
}

func TestRateLimiter_PermanentFaultLatches(t *testing.T) {
	l := mustLimiter(t, testConfig())
	st := LimiterState{Last: 30}
	_, st = l.Step(st, LimiterInput{Desired: 100, FaultCode: 4})
	if !st.Permanent {
		t.Fatal("permanent fault not latched")
	}
	var applied int
	for i := 0; i < 100; i++ {
		applied, st = l.Step(st, LimiterInput{Desired: 100})
		if !st.Permanent {
			t.Fatalf("tick %d: permanent fault cleared without reset", i)
		}
	}
	if applied != 0 {
		t.Fatalf("faulted output %d, want 0", applied)
	}
	st = l.Reset()
	applied, st = l.Step(st, LimiterInput{Desired: 100})
	if st.Faulted() || applied != 4 {
		t.Fatalf("after reset: applied %d state %+v", applied, st)
	}
}

func TestRateLimiter_TemporaryFromErrorAccumulation(t *testing.T) {
	cfg := testConfig()
	cfg.Feedback = FeedbackMeasured
	l := mustLimiter(t, cfg)
	st := l.Reset()
	for i := 1; i <= 6; i++ {
		_, st = l.Step(st, LimiterInput{MeasuredTorque: 200})
		if st.Temporary {
			t.Fatalf("tick %d: temporary too early (accum %d, over %d)", i, st.ErrorAccum, st.OverTicks)
		}
	}
	_, st = l.Step(st, LimiterInput{MeasuredTorque: 200})
	if !st.Temporary {
		t.Fatalf("tick 7: temporary not raised (accum %d, over %d)", st.ErrorAccum, st.OverTicks)
	}
	_, st = l.Step(st, LimiterInput{MeasuredTorque: st.Last})
	if st.Temporary || st.ErrorAccum != 0 {
		t.Fatalf("temporary did not clear: %+v", st)
	}
}

func TestRateLimiter_TemporaryFaultCode(t *testing.T) {
	l := mustLimiter(t, testConfig())
	applied, st := l.Step(LimiterState{Last: 10}, LimiterInput{Desired: 100, FaultCode: 5})
	if !st.Temporary || st.Permanent || applied != 7 {
		t.Fatalf("applied %d state %+v", applied, st)
	}
	applied, st = l.Step(st, LimiterInput{Desired: 100})
	if st.Temporary || applied != 11 {
		t.Fatalf("applied %d state %+v", applied, st)
	}
}

func TestLimiterConfig_Validate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := testConfig()
	bad.Max = 0
	bad.DeltaUp = -1
	bad.ErrorTicks = 0
	if _, err := NewRateLimiter(bad); err == nil {
		t.Fatal("expected error")
	}
	if w := testConfig().WidenedStep(); w != 12 {
		t.Fatalf("WidenedStep = %d, want 12", w)
	}
	c := testConfig()
	c.DriverMultiplier = 0.5
	if w := c.WidenedStep(); w != 3 {
		t.Fatalf("WidenedStep never narrows below DeltaDown, got %d", w)
	}
}

func TestInterp(t *testing.T) {
	xp := []float64{-4, 0, 2}
	fp := []float64{-27, 0, 272}
	tests := []struct{ x, want float64 }{
		{-10, -27}, {-4, -27}, {-2, -13.5}, {0, 0}, {1, 136}, {2, 272}, {3, 272},
	}
	for _, tt := range tests {
		if got := Interp(tt.x, xp, fp); got != tt.want {
			t.Fatalf("Interp(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
	for _, x := range []float64{-5, 1, 5, math.NaN()} {
		if got := Interp(x, []float64{1}, []float64{7}); got != 7 {
			t.Fatalf("single point table at %v: %v", x, got)
		}
	}
	if got := Interp(math.NaN(), xp, fp); !math.IsNaN(got) {
		t.Fatalf("Interp(NaN) = %v, want NaN", got)
	}
}

func TestValidateTable(t *testing.T) {
	for name, tc := range map[string][2][]float64{
		"empty":      {nil, nil},
		"mismatch":   {{0, 1}, {0}},
		"decreasing": {{0, 2, 1}, {0, 0, 0}},
		"duplicate":  {{0, 0}, {1, 2}},
	} {
		if err := ValidateTable(tc[0], tc[1]); !errors.Is(err, ErrBadTable) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestEdge(t *testing.T) {
	var e Edge
	seq := []bool{false, true, true, false, true}
	wantRise := []bool{false, true, false, false, true}
	for i, cur := range seq {
		var r bool
		r, e = e.Rising(cur)
		if r != wantRise[i] {
			t.Fatalf("step %d: rising=%v", i, r)
		}
	}
	if f, _ := (Edge{Prev: true}).Falling(false); !f {
		t.Fatal("falling edge missed")
	}
}
