package dbc

import (
	"encoding/hex"
	"testing"
)

func be(name string, start, length int) Signal {
	return Signal{Name: name, Start: start, Length: length, Scale: 1}
}

var (
	lkasCommand = Message{
		Name: "LKAS_COMMAND", Address: 0x1F6, Length: 4,
		Signals: []Signal{
			{Name: "STEERING_TORQUE", Start: 7, Length: 11, Scale: 1, Offset: -1024},
			be("LKAS_REQUEST_BIT", 12, 1),
			be("COUNTER", 19, 4),
			be("CHECKSUM", 31, 8),
		},
		Checksum: J1850(3, 1),
		Counter:  Counter("COUNTER", 4),
	}
	das1 = Message{
		Name: "DAS_1", Address: 0x2FA, Bus: 1, Length: 4,
		Signals: []Signal{
			be("CRUISE_BUTTON_PRESSED", 7, 8),
			be("COUNTER", 11, 4),
			be("CHECKSUM", 23, 8),
		},
		Checksum: J1850(2, 2),
		Counter:  Counter("COUNTER", 4),
	}
	eps1 = Message{
		Name: "EPS_1", Address: 0xDE, Length: 6,
		Signals: []Signal{
			{Name: "STEERING_ANGLE", Start: 7, Length: 16, Signed: true, Scale: 0.1},
			be("STEERING_RATE", 23, 16),
			be("COUNTER", 35, 4),
			be("CHECKSUM", 47, 8),
		},
		Checksum: J1850(5, 1),
		Counter:  Counter("COUNTER", 4),
	}
	eps2 = Message{
		Name: "EPS_2", Address: 0x106, Length: 7,
		Signals: []Signal{
			{Name: "EPS_TORQUE_MOTOR", Start: 7, Length: 11, Scale: 1, Offset: -1024},
			be("EPS_UNKNOWN", 12, 5),
			{Name: "DRIVER_TORQUE", Start: 23, Length: 11, Scale: 1, Offset: -1024},
			be("LKAS_TEMPORARY_FAULT", 25, 1),
			be("LKAS_STATE", 28, 3),
			be("COUNTER", 43, 4),
			be("CHECKSUM", 55, 8),
		},
		Checksum: J1850(6, 1),
		Counter:  Counter("COUNTER", 4),
	}
	abs6 = Message{
		Name: "ABS_6", Address: 0x101, Length: 8,
		Signals: []Signal{
			{Name: "VEHICLE_SPEED", Start: 15, Length: 11, Scale: 0.0625},
			be("BRAKE_PRESSURE", 20, 11),
			be("COUNTER", 51, 4),
			be("CHECKSUM", 63, 8),
		},
		Checksum: &ChecksumSpec{Kind: ChecksumPassthrough, Byte: 7},
		Counter:  Counter("COUNTER", 4),
	}
	engine1 = Message{
		Name: "ENGINE_1", Address: 0xFC, Bus: 1, Length: 8,
		Signals: []Signal{
			be("BREAK_PRESSED", 7, 2),
			be("MAYBE_BREAKING", 5, 1),
			{Name: "ACCEL_PEDAL_THRESHOLD", Start: 13, Length: 8, Scale: 1, Order: LittleEndian},
			{Name: "ACCEL_THRESHOLD", Start: 31, Length: 10, Signed: true, Scale: 1},
			{Name: "ACCEL_THRESHOLD_2", Start: 37, Length: 10, Signed: true, Scale: 1},
			{Name: "ACCEL_THRESHOLD_3", Start: 43, Length: 10, Signed: true, Scale: 1},
			be("COUNTER", 59, 4),
		},
		Checksum: &ChecksumSpec{Kind: ChecksumCounterOnly},
		Counter:  Counter("COUNTER", 4),
	}
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog("test", lkasCommand, das1, eps1, eps2, abs6, engine1)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}
