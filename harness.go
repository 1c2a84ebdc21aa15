package canbus

import (
	"context"
	"fmt"
	"sync"
)

// Harness presents several single-bus connections as one Bus. Send routes a
// frame to the connection registered for frame.Bus; Receive merges frames from
// every connection, each tagged with its bus index. Frames from one connection
// keep their relative order.
type Harness struct {
	buses map[uint8]Bus
	in    chan received
	stop  context.CancelFunc
	wg    sync.WaitGroup
	once  sync.Once
}

type received struct {
	frame Frame
	err   error
}

// NewHarness starts one reader per connection. The Harness owns the buses and
// closes them on Close.
func NewHarness(buses map[uint8]Bus) *Harness {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Harness{
		buses: buses,
		in:    make(chan received, 256),
		stop:  cancel,
	}
	for idx, b := range buses {
		h.wg.Add(1)
		go h.read(ctx, idx, b)
	}
	return h
}

func (h *Harness) read(ctx context.Context, idx uint8, b Bus) {
	defer h.wg.Done()
	for {
		f, err := b.Receive(ctx)
		if err == nil {
			f.Bus = idx
		}
		select {
		case h.in <- received{frame: f, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Send transmits frame on the connection registered for frame.Bus.
func (h *Harness) Send(ctx context.Context, frame Frame) error {
	b, ok := h.buses[frame.Bus]
	if !ok {
		return fmt.Errorf("%w %d", ErrNoRoute, frame.Bus)
	}
	return b.Send(ctx, frame)
}

// Receive returns the next frame from any connection. The first connection
// error is returned as is.
func (h *Harness) Receive(ctx context.Context) (Frame, error) {
	select {
	case r := <-h.in:
		return r.frame, r.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close stops the readers and closes every connection.
func (h *Harness) Close() error {
	var first error
	h.once.Do(func() {
		h.stop()
		for _, b := range h.buses {
			if err := b.Close(); err != nil && first == nil {
				first = err
			}
		}
		h.wg.Wait()
	})
	return first
}
