package fca

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pbassut/canbus"
	"github.com/pbassut/canbus/dbc"
)

// ControlLaw produces the controls for one tick from the current car state.
type ControlLaw interface {
	Update(CarState) Controls
}

// ControlLawFunc adapts a function to ControlLaw.
type ControlLawFunc func(CarState) Controls

func (f ControlLawFunc) Update(cs CarState) Controls { return f(cs) }

// SubscribeDecoded subscribes to the frames of cat via mux and delivers them
// decoded, in arrival order. The returned cancel must be called when done.
// The channel is closed on cancel or when the mux stops.
func SubscribeDecoded(mux *canbus.Mux, cat *dbc.Catalog, buffer int) (<-chan dbc.DecodedFrame, func()) {
	frames, cancel := mux.Subscribe(cat.Filter(), buffer)
	in := dbc.NewIngestor(cat)

	out := make(chan dbc.DecodedFrame, buffer)
	stop := make(chan struct{})
	go func() {
		defer close(out)
		for f := range frames {
			d, err := in.Ingest(f)
			if err != nil {
				continue
			}
			select {
			case out <- d:
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(stop)
			cancel()
		})
	}
}

// TickReport describes one completed tick.
type TickReport struct {
	Tick     uint64
	Car      CarState
	Controls Controls
	Result   TickResult
	State    TickState
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithInterval sets the tick period (default 10ms).
func WithInterval(d time.Duration) LoopOption { return func(l *Loop) { l.interval = d } }

// WithBuffer sets the decoded frame buffer (default 256).
func WithBuffer(n int) LoopOption { return func(l *Loop) { l.buffer = n } }

// WithTickHook installs a function called after every tick from the loop
// goroutine.
func WithTickHook(fn func(TickReport)) LoopOption { return func(l *Loop) { l.hook = fn } }

// WithLogger sets the loop logger.
func WithLogger(logger zerolog.Logger) LoopOption { return func(l *Loop) { l.logger = logger } }

// Loop runs the fixed-rate control loop: it drains received frames into the
// car state, asks the control law for controls and sends the assembled frames.
// All state is owned by the Run goroutine.
type Loop struct {
	bus      canbus.Bus
	asm      *Assembler
	law      ControlLaw
	logger   zerolog.Logger
	interval time.Duration
	buffer   int
	hook     func(TickReport)

	car      CarState
	state    TickState
	counters *dbc.CounterTracker
}

func NewLoop(bus canbus.Bus, asm *Assembler, law ControlLaw, opts ...LoopOption) *Loop {
	l := &Loop{
		bus:      bus,
		asm:      asm,
		law:      law,
		logger:   zerolog.Nop(),
		interval: 10 * time.Millisecond,
		buffer:   256,
		counters: dbc.NewCounterTracker(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run blocks until ctx is done or the bus fails. A cancelled context is not
// reported as an error.
func (l *Loop) Run(ctx context.Context) error {
	mux := canbus.NewMux(l.bus)
	defer mux.Close()
	frames, cancel := SubscribeDecoded(mux, l.asm.Catalog(), l.buffer)
	defer cancel()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info().
		Str("catalog", l.asm.Catalog().Name()).
		Dur("interval", l.interval).
		Msg("control loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Uint64("ticks", l.state.Frame).Msg("control loop stopped")
			return nil
		case <-mux.Done():
			return errors.New("fca: bus receiver stopped")
		case <-ticker.C:
		}

		if !l.drain(frames) {
			return errors.New("fca: bus receiver stopped")
		}
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// drain applies every frame received since the last tick. It reports false
// when the subscription closed.
func (l *Loop) drain(frames <-chan dbc.DecodedFrame) bool {
	for {
		select {
		case d, ok := <-frames:
			if !ok {
				return false
			}
			l.ingest(d)
		default:
			return true
		}
	}
}

func (l *Loop) ingest(d dbc.DecodedFrame) {
	if !d.ChecksumValid {
		l.logger.Warn().Str("msg", d.Name()).Uint8("bus", d.Bus).Msg("checksum mismatch, frame dropped")
		return
	}
	switch status, missed := l.counters.Observe(d); status {
	case dbc.CounterGap:
		l.logger.Warn().Str("msg", d.Name()).Int("missed", missed).Msg("counter gap")
	case dbc.CounterStale:
		l.logger.Debug().Str("msg", d.Name()).Int("counter", d.Counter).Msg("counter repeated")
	}
	l.car.Update(d)
}

func (l *Loop) tick(ctx context.Context) error {
	controls := l.law.Update(l.car)
	wasFaulted := l.state.Steer.Faulted()
	res, next, err := l.asm.Tick(l.state, l.car, controls)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		l.logger.Warn().Err(w).Uint64("tick", l.state.Frame).Msg("signal saturated")
	}
	if f := next.Steer.Faulted(); f != wasFaulted {
		l.logger.Warn().
			Bool("faulted", f).
			Bool("permanent", next.Steer.Permanent).
			Int("eps_state", l.car.EPSState).
			Msg("steering fault state changed")
	}
	if err := canbus.SendAll(ctx, l.bus, res.Frames); err != nil {
		return err
	}
	report := TickReport{Tick: l.state.Frame, Car: l.car, Controls: controls, Result: res, State: next}
	l.state = next
	l.car.HighBeamPressed = false
	if l.hook != nil {
		l.hook(report)
	}
	return nil
}
