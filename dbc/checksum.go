package dbc

import (
	"fmt"
	"sync"

	"github.com/sigurn/crc8"
)

const j1850Poly = 0x1D

// crcTables caches one table per (init, final XOR) pair.
var crcTables sync.Map

func j1850Table(init, xorOut uint8) *crc8.Table {
	key := uint16(init)<<8 | uint16(xorOut)
	if t, ok := crcTables.Load(key); ok {
		return t.(*crc8.Table)
	}
	t, _ := crcTables.LoadOrStore(key, crc8.MakeTable(crc8.Params{
		Poly:   j1850Poly,
		Init:   init,
		XorOut: xorOut,
		Name:   "CRC-8/SAE-J1850",
	}))
	return t.(*crc8.Table)
}

// ComputeChecksum returns the checksum byte for payload. payload may be the
// full frame or the frame without its trailing checksum byte; it must reach
// the end of the covered range.
//
// Passthrough messages return the byte currently at the checksum position
// (zero if the payload does not reach it). Counter-only messages return zero.
func ComputeChecksum(m *Message, payload []byte) (uint8, error) {
	c := m.Checksum
	if c == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoChecksum, m.Name)
	}
	switch c.Kind {
	case ChecksumCRC8J1850:
		end := m.coveredEnd()
		if len(payload) < end {
			return 0, fmt.Errorf("%w: %s covers %d bytes, got %d", ErrShortPayload, m.Name, end, len(payload))
		}
		return crc8.Checksum(payload[c.Start:end], j1850Table(c.Init, c.FinalXOR)), nil
	case ChecksumPassthrough:
		if c.Byte < len(payload) {
			return payload[c.Byte], nil
		}
		return 0, nil
	case ChecksumCounterOnly:
		return 0, nil
	default:
		return 0, fmt.Errorf("dbc: %s: unknown checksum kind %v", m.Name, c.Kind)
	}
}

// ValidateChecksum reports whether frame carries a correct checksum. Messages
// without a CRC (none, passthrough, counter-only) always validate; a frame
// of the wrong length never does.
func ValidateChecksum(m *Message, frame []byte) bool {
	if len(frame) != m.Length {
		return false
	}
	c := m.Checksum
	if c == nil || c.Kind != ChecksumCRC8J1850 {
		return true
	}
	sum, err := ComputeChecksum(m, frame)
	return err == nil && frame[c.Byte] == sum
}

// Seal writes the checksum into frame in place. It is a no-op for messages
// without a CRC.
func Seal(m *Message, frame []byte) error {
	if len(frame) != m.Length {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrLengthMismatch, m.Name, m.Length, len(frame))
	}
	c := m.Checksum
	if c == nil || c.Kind != ChecksumCRC8J1850 {
		return nil
	}
	sum, err := ComputeChecksum(m, frame)
	if err != nil {
		return err
	}
	frame[c.Byte] = sum
	return nil
}
