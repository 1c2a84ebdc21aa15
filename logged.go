package canbus

import (
	"context"

	"github.com/rs/zerolog"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone  LogOption = 0
	LogRead  LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedBus wraps the given Bus and logs selected operations at the given
// level. If filter is nil, all frames are considered for logging.
func NewLoggedBus(inner Bus, logger zerolog.Logger, level zerolog.Level, opts LogOption, filter FrameFilter) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

type loggedBus struct {
	inner  Bus
	logger zerolog.Logger
	level  zerolog.Level
	opts   LogOption
	filter FrameFilter
}

func (l *loggedBus) frameEvent(ev *zerolog.Event, f Frame) *zerolog.Event {
	return ev.
		Uint8("bus", f.Bus).
		Str("id", idHex(f)).
		Bool("rtr", f.RTR).
		Uint8("len", f.Len).
		Hex("data", f.Payload())
}

// Send logs the frame and the result when write logging is enabled.
func (l *loggedBus) Send(ctx context.Context, frame Frame) error {
	if l.opts&LogWrite != 0 && (l.filter == nil || l.filter(frame)) {
		l.frameEvent(l.logger.WithLevel(l.level), frame).Msg("canbus send")
	}
	err := l.inner.Send(ctx, frame)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Error().Err(err).Str("id", idHex(frame)).Msg("canbus send error")
	}
	return err
}

// Receive logs the received frame or error when read logging is enabled.
func (l *loggedBus) Receive(ctx context.Context) (Frame, error) {
	f, err := l.inner.Receive(ctx)
	if l.opts&LogRead == 0 {
		return f, err
	}
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error().Err(err).Msg("canbus receive error")
		}
		return f, err
	}
	if l.filter == nil || l.filter(f) {
		l.frameEvent(l.logger.WithLevel(l.level), f).Msg("canbus receive")
	}
	return f, nil
}

// Close forwards to the inner Bus without logging.
func (l *loggedBus) Close() error {
	return l.inner.Close()
}

func idHex(f Frame) string {
	const digits = "0123456789ABCDEF"
	n := 3
	if f.Extended {
		n = 8
	}
	buf := make([]byte, n)
	id := f.ID
	for i := n - 1; i >= 0; i-- {
		buf[i] = digits[id&0xF]
		id >>= 4
	}
	return string(buf)
}
