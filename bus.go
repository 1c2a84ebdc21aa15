package canbus

import (
	"context"
	"errors"
	"fmt"
)

// Bus carries frames between the controller and one or more physical CAN
// buses. Frame.Bus names the bus a frame was seen on or is destined for;
// single-bus connections ignore it on Send and leave it as set by the caller
// or the transport on Receive. A Bus is safe for concurrent use.
type Bus interface {
	// Send queues frame for transmission. A cancelled ctx aborts a blocked
	// send with ctx.Err().
	Send(ctx context.Context, frame Frame) error

	// Receive blocks for the next frame or until ctx is done.
	Receive(ctx context.Context) (Frame, error)

	Close() error
}

var (
	// ErrClosed is returned by operations on a closed bus or endpoint.
	ErrClosed = errors.New("canbus: closed")

	// ErrNoRoute is returned when a frame names a bus index nothing is
	// connected to.
	ErrNoRoute = errors.New("canbus: no connection for bus")
)

// SendAll transmits frames in order and stops at the first failure. The
// returned error names the frame that failed and how many went out before it.
func SendAll(ctx context.Context, b Bus, frames []Frame) error {
	for i, f := range frames {
		if err := b.Send(ctx, f); err != nil {
			return fmt.Errorf("canbus: send %s (%d of %d sent): %w", f, i, len(frames), err)
		}
	}
	return nil
}
