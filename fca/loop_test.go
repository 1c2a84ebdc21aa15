package fca

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pbassut/canbus"
	"github.com/pbassut/canbus/dbc"
)

func TestSubscribeDecoded(t *testing.T) {
	lb := canbus.NewLoopbackBus()
	defer lb.Close()
	car, ecu := lb.Open(), lb.Open()

	mux := canbus.NewMux(ecu)
	defer mux.Close()
	frames, cancel := SubscribeDecoded(mux, Fastback(), 8)

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	lkas, _ := LKASCommand{Torque: 12, Request: true, Counter: 4}.MarshalCANFrame()
	buttons, _ := pack(Fastback(), MsgButtons1, dbc.Values{"LKAS_BUTTON": 1})
	echo, _ := CruiseButtons{Button: ButtonCancel, Counter: 3}.MarshalCANFrame()
	echo.Bus = BusPT
	for _, f := range []canbus.Frame{lkas, canbus.MustFrame(0x7FF, []byte{1, 2}), echo, buttons} {
		if err := car.Send(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []string{MsgLKASCommand, MsgButtons1} {
		select {
		case d := <-frames:
			if d.Name() != want || !d.ChecksumValid {
				t.Fatalf("got %s (valid=%v), want %s", d.Name(), d.ChecksumValid, want)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	cancel()
	for range frames {
	}
}

func TestLoop_SteersOverLoopback(t *testing.T) {
	lb := canbus.NewLoopbackBus()
	defer lb.Close()
	car, ecu := lb.Open(), lb.Open()

	p := DefaultParams()
	p.SteerFeedback = "driver"
	asm, err := NewAssembler(Fastback(), p)
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	reports := make(chan TickReport, 64)
	law := ControlLawFunc(func(CarState) Controls { return Controls{Enabled: true, Steer: 0.5} })
	loop := NewLoop(ecu, asm, law,
		WithInterval(2*time.Millisecond),
		WithLogger(zerolog.New(&logs)),
		WithTickHook(func(r TickReport) {
			select {
			case reports <- r:
			default:
			}
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	press, _ := pack(Fastback(), MsgButtons1, dbc.Values{"LKAS_BUTTON": 1})
	corrupt, _ := EPSStatus{DriverTorque: 5}.MarshalCANFrame()
	corrupt.Data[6] ^= 0x55

	carCtx, stopCar := context.WithCancel(ctx)
	go func() {
		tk := time.NewTicker(2 * time.Millisecond)
		defer tk.Stop()
		for {
			select {
			case <-carCtx.Done():
				return
			case <-tk.C:
			}
			_ = car.Send(carCtx, press)
			_ = car.Send(carCtx, corrupt)
		}
	}()

	var last TickReport
wait:
	for {
		select {
		case last = <-reports:
			if last.Result.LateralActive && last.Result.Applied >= 20 {
				break wait
			}
		case <-ctx.Done():
			t.Fatal("loop never reached steady steering")
		}
	}
	stopCar()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v", err)
	}

	if !last.Car.LateralAllowed || last.State.Steer.Last != last.Result.Applied {
		t.Fatalf("report %+v", last)
	}
	if last.Car.DriverTorque != 0 {
		t.Fatal("corrupt EPS_2 frame reached the car state")
	}
	if !strings.Contains(logs.String(), "checksum mismatch") {
		t.Fatalf("missing checksum log in %q", logs.String())
	}

	var requested int
	for {
		rctx, rcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		f, err := car.Receive(rctx)
		rcancel()
		if err != nil {
			break
		}
		if f.ID != AddrLKASCommand {
			continue
		}
		var cmd LKASCommand
		if err := cmd.UnmarshalCANFrame(f); err != nil {
			t.Fatal(err)
		}
		if cmd.Request && cmd.Torque > 0 {
			requested++
		}
	}
	if requested == 0 {
		t.Fatal("no torque request seen on the bus")
	}
}

func TestLoop_BusClosed(t *testing.T) {
	lb := canbus.NewLoopbackBus()
	ecu := lb.Open()
	asm, err := NewAssembler(Fastback(), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	loop := NewLoop(ecu, asm, ControlLawFunc(func(CarState) Controls { return Controls{} }),
		WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	lb.Close()
	select {
	case err := <-done:
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Run = %v, want bus error", err)
		}
	case <-ctx.Done():
		t.Fatal("Run did not stop after the bus closed")
	}
}
