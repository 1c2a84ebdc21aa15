package dbc

import (
	"fmt"
	"math"
)

// ByteOrder selects how a signal's bits are laid out. The values match the
// DBC notation: @0 is big endian (Motorola), @1 little endian (Intel).
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return fmt.Sprintf("ByteOrder(%d)", uint8(o))
	}
}

// maxSignalBits bounds the width of a single signal.
const maxSignalBits = 32

// Signal is a named physical value packed into a bit range of a frame.
//
// Start follows DBC numbering (bit = byte*8 + bit-in-byte, bit 7 is the MSB
// of a byte). For big endian signals Start is the most significant bit; for
// little endian signals it is the least significant bit. A zero Scale is
// treated as 1.
type Signal struct {
	Name   string
	Start  int
	Length int
	Signed bool
	Scale  float64
	Offset float64
	Order  ByteOrder
}

// walk calls fn for every bit of the signal with the bit's weight inside the
// raw value (0 = LSB) and its DBC position in the payload.
func (s *Signal) walk(fn func(weight, pos int)) {
	if s.Order == LittleEndian {
		for i := 0; i < s.Length; i++ {
			fn(i, s.Start+i)
		}
		return
	}
	p := s.Start
	for i := s.Length - 1; i >= 0; i-- {
		fn(i, p)
		if p%8 == 0 {
			p += 15
		} else {
			p--
		}
	}
}

// rawRange returns the representable raw range of the signal.
func (s *Signal) rawRange() (lo, hi int64) {
	if s.Signed {
		return -(int64(1) << (s.Length - 1)), int64(1)<<(s.Length-1) - 1
	}
	return 0, int64(1)<<s.Length - 1
}

// toRaw converts a physical value to its raw encoding, saturating to the
// representable range. ok is false when saturation happened.
func (s *Signal) toRaw(v float64) (raw int64, ok bool) {
	lo, hi := s.rawRange()
	if math.IsNaN(v) {
		return 0, false
	}
	r := math.Round((v - s.Offset) / s.scale())
	switch {
	case r < float64(lo):
		return lo, false
	case r > float64(hi):
		return hi, false
	}
	return int64(r), true
}

// toPhysical converts a raw value to the physical value.
func (s *Signal) toPhysical(raw int64) float64 {
	return float64(raw)*s.scale() + s.Offset
}

func (s *Signal) scale() float64 {
	if s.Scale == 0 {
		return 1
	}
	return s.Scale
}

// put writes raw into data at the signal's bits, leaving other bits intact.
func (s *Signal) put(data []byte, raw int64) {
	u := uint64(raw)
	s.walk(func(weight, pos int) {
		mask := byte(1) << (pos % 8)
		if u>>weight&1 == 1 {
			data[pos/8] |= mask
		} else {
			data[pos/8] &^= mask
		}
	})
}

// get extracts the raw value, sign extended for signed signals.
func (s *Signal) get(data []byte) int64 {
	var u uint64
	s.walk(func(weight, pos int) {
		if data[pos/8]>>(pos%8)&1 == 1 {
			u |= 1 << weight
		}
	})
	if s.Signed && u>>(s.Length-1)&1 == 1 {
		return int64(u) - int64(1)<<s.Length
	}
	return int64(u)
}

// Raw returns the raw (unscaled) value of the signal in data.
func (s *Signal) Raw(data []byte) int64 { return s.get(data) }

// validate checks the signal against a payload of length bytes and marks its
// bits in used, reporting overlaps with previously marked signals.
func (s *Signal) validate(msg string, length int, used *[64]bool) error {
	fail := func(format string, args ...any) error {
		return &CatalogError{Message: msg, Signal: s.Name, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case s.Name == "":
		return &CatalogError{Message: msg, Reason: "signal without name"}
	case s.Length < 1 || s.Length > maxSignalBits:
		return fail("length %d outside 1..%d", s.Length, maxSignalBits)
	case s.Start < 0 || s.Start >= length*8:
		return fail("start bit %d outside %d-byte payload", s.Start, length)
	case s.Order != BigEndian && s.Order != LittleEndian:
		return fail("invalid byte order %v", s.Order)
	case math.IsNaN(s.Scale) || math.IsInf(s.Scale, 0):
		return fail("invalid scale %v", s.Scale)
	}
	var err error
	s.walk(func(_, pos int) {
		if err != nil {
			return
		}
		if pos < 0 || pos >= length*8 {
			err = fail("bits run past %d-byte payload", length)
			return
		}
		if used[pos] {
			err = fail("bit %d overlaps another signal", pos)
			return
		}
		used[pos] = true
	})
	return err
}
