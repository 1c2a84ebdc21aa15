package dbc

import "fmt"

// CounterStatus classifies a received rolling counter against the previous
// one of the same message.
type CounterStatus uint8

const (
	// CounterOK is the expected successor (or the first observation).
	CounterOK CounterStatus = iota
	// CounterStale repeats the previous value.
	CounterStale
	// CounterGap skipped one or more values.
	CounterGap
)

func (s CounterStatus) String() string {
	switch s {
	case CounterOK:
		return "ok"
	case CounterStale:
		return "stale"
	case CounterGap:
		return "gap"
	default:
		return fmt.Sprintf("CounterStatus(%d)", uint8(s))
	}
}

// CheckCounter compares cur with prev modulo modulus. For a gap, missed is
// the number of skipped values.
func CheckCounter(prev, cur, modulus int) (status CounterStatus, missed int) {
	if modulus <= 0 {
		return CounterOK, 0
	}
	d := ((cur-prev)%modulus + modulus) % modulus
	switch d {
	case 1:
		return CounterOK, 0
	case 0:
		return CounterStale, 0
	default:
		return CounterGap, d - 1
	}
}

// CounterTracker remembers the last counter seen per (bus, address). It is
// not safe for concurrent use.
type CounterTracker struct {
	last map[counterKey]int
}

type counterKey struct {
	bus  uint8
	addr uint32
}

func NewCounterTracker() *CounterTracker {
	return &CounterTracker{last: make(map[counterKey]int)}
}

// Observe records the counter of a decoded frame and classifies it. Frames
// without a counter are always OK.
func (t *CounterTracker) Observe(f DecodedFrame) (CounterStatus, int) {
	if !f.HasCounter || f.Message == nil || f.Message.Counter == nil {
		return CounterOK, 0
	}
	k := counterKey{f.Bus, f.Address}
	prev, seen := t.last[k]
	t.last[k] = f.Counter
	if !seen {
		return CounterOK, 0
	}
	return CheckCounter(prev, f.Counter, f.Message.Counter.Modulus)
}

// Last returns the last counter observed for the address.
func (t *CounterTracker) Last(bus uint8, addr uint32) (int, bool) {
	v, ok := t.last[counterKey{bus, addr}]
	return v, ok
}

// Reset forgets all counters.
func (t *CounterTracker) Reset() { clear(t.last) }
