package dbc

import "fmt"

// ChecksumKind selects the checksum strategy of a message.
type ChecksumKind uint8

const (
	// ChecksumCRC8J1850 is CRC-8 with polynomial 0x1D (SAE J1850) using the
	// init and final XOR values of the ChecksumSpec.
	ChecksumCRC8J1850 ChecksumKind = iota + 1
	// ChecksumPassthrough keeps a checksum byte in the layout that is not
	// tied to the payload; it is carried as is and never rejected.
	ChecksumPassthrough
	// ChecksumCounterOnly has no checksum byte; only the rolling counter
	// protects the message.
	ChecksumCounterOnly
)

func (k ChecksumKind) String() string {
	switch k {
	case ChecksumCRC8J1850:
		return "crc8_j1850"
	case ChecksumPassthrough:
		return "passthrough"
	case ChecksumCounterOnly:
		return "counter_only"
	default:
		return fmt.Sprintf("ChecksumKind(%d)", uint8(k))
	}
}

// ParseChecksumKind is the inverse of ChecksumKind.String.
func ParseChecksumKind(s string) (ChecksumKind, error) {
	for _, k := range []ChecksumKind{ChecksumCRC8J1850, ChecksumPassthrough, ChecksumCounterOnly} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("dbc: unknown checksum kind %q", s)
}

// ChecksumSpec describes where a message's checksum lives and which bytes it
// covers: data[Start : length-Exclude]. Exclude is message specific (1 for a
// trailing checksum byte, 2 when an uncovered counter or pad byte sits next
// to it) and cannot be derived from the signal layout.
type ChecksumSpec struct {
	Kind     ChecksumKind
	Byte     int
	Start    int
	Exclude  int
	Init     uint8
	FinalXOR uint8
}

// J1850 returns the CRC-8/SAE-J1850 variant used by FCA (init 0xFF, final
// XOR 0xFF) with the checksum at byte pos and exclude trailing bytes
// uncovered.
func J1850(pos, exclude int) *ChecksumSpec {
	return &ChecksumSpec{Kind: ChecksumCRC8J1850, Byte: pos, Exclude: exclude, Init: 0xFF, FinalXOR: 0xFF}
}

// CounterSpec names the rolling counter signal of a message.
type CounterSpec struct {
	Signal  string
	Width   int
	Modulus int
}

// Counter returns a CounterSpec with the modulus implied by width.
func Counter(signal string, width int) *CounterSpec {
	return &CounterSpec{Signal: signal, Width: width, Modulus: 1 << width}
}

// Wrap reduces v into [0, Modulus).
func (c *CounterSpec) Wrap(v int) int {
	if c.Modulus <= 0 {
		return v
	}
	return (v%c.Modulus + c.Modulus) % c.Modulus
}

// Message is the static description of one CAN message.
type Message struct {
	Name     string
	Address  uint32
	Bus      uint8
	Length   int
	Signals  []Signal
	Checksum *ChecksumSpec
	Counter  *CounterSpec
}

// Signal returns the named signal.
func (m *Message) Signal(name string) (*Signal, bool) {
	for i := range m.Signals {
		if m.Signals[i].Name == name {
			return &m.Signals[i], true
		}
	}
	return nil, false
}

// coveredEnd is the exclusive end of the checksum range.
func (m *Message) coveredEnd() int {
	return m.Length - m.Checksum.Exclude
}

// Validate checks the internal consistency of the definition.
func (m *Message) Validate() error {
	fail := func(format string, args ...any) error {
		return &CatalogError{Message: m.Name, Reason: fmt.Sprintf(format, args...)}
	}
	if m.Name == "" {
		return &CatalogError{Message: fmt.Sprintf("0x%X", m.Address), Reason: "message without name"}
	}
	if m.Length < 1 || m.Length > 8 {
		return fail("length %d outside 1..8", m.Length)
	}
	var used [64]bool
	seen := make(map[string]struct{}, len(m.Signals))
	for i := range m.Signals {
		s := &m.Signals[i]
		if _, dup := seen[s.Name]; dup {
			return &CatalogError{Message: m.Name, Signal: s.Name, Reason: "duplicate signal name"}
		}
		seen[s.Name] = struct{}{}
		if err := s.validate(m.Name, m.Length, &used); err != nil {
			return err
		}
	}
	if c := m.Counter; c != nil {
		s, ok := m.Signal(c.Signal)
		switch {
		case !ok:
			return fail("counter signal %q not defined", c.Signal)
		case s.Length != c.Width:
			return fail("counter width %d does not match signal length %d", c.Width, s.Length)
		case c.Width < 1 || c.Width > 16:
			return fail("counter width %d outside 1..16", c.Width)
		case c.Modulus != 1<<c.Width:
			return fail("counter modulus %d must be 2^%d", c.Modulus, c.Width)
		case s.Signed:
			return fail("counter signal %q must be unsigned", c.Signal)
		}
	}
	if c := m.Checksum; c != nil {
		switch c.Kind {
		case ChecksumCRC8J1850:
			end := m.Length - c.Exclude
			switch {
			case c.Exclude < 1 || c.Exclude >= m.Length:
				return fail("checksum excludes %d of %d bytes", c.Exclude, m.Length)
			case c.Start < 0 || c.Start >= end:
				return fail("checksum range [%d:%d) is empty", c.Start, end)
			case c.Byte < end || c.Byte >= m.Length:
				return fail("checksum byte %d inside covered range [%d:%d)", c.Byte, c.Start, end)
			}
		case ChecksumPassthrough:
			if c.Byte < 0 || c.Byte >= m.Length {
				return fail("checksum byte %d outside payload", c.Byte)
			}
		case ChecksumCounterOnly:
			if m.Counter == nil {
				return fail("counter-only checksum without counter")
			}
		default:
			return fail("unknown checksum kind %v", c.Kind)
		}
	}
	return nil
}
