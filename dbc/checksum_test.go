package dbc

import (
	"errors"
	"testing"
)

func TestComputeChecksum_HardwareVectors(t *testing.T) {
	tests := []struct {
		msg   *Message
		input string
		want  uint8
	}{
		{&eps1, "175197cc00", 0xdf},
		{&eps1, "175197c901", 0xa3},
		{&eps1, "175197cc02", 0xe5},
		{&eps2, "7c4357600000", 0xa1},
		{&eps2, "7c6358e00001", 0xd5},
		{&lkasCommand, "800003", 0x16},
		{&lkasCommand, "800000", 0x31},
		{&lkasCommand, "800008", 0xd9},
	}
	for _, tt := range tests {
		got, err := ComputeChecksum(tt.msg, unhex(t, tt.input))
		if err != nil {
			t.Fatalf("%s %s: %v", tt.msg.Name, tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("%s %s: got 0x%02x want 0x%02x", tt.msg.Name, tt.input, got, tt.want)
		}
	}
}

func TestComputeChecksum_FullFrameIgnoresTrailingBytes(t *testing.T) {
	a, err := ComputeChecksum(&eps1, unhex(t, "175197cc00df"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputeChecksum(&eps1, unhex(t, "175197cc0000"))
	if err != nil {
		t.Fatal(err)
	}
	if a != 0xdf || b != 0xdf {
		t.Fatalf("got 0x%02x / 0x%02x, want 0xdf", a, b)
	}
}

func TestValidateChecksum_TwoByteExclusion(t *testing.T) {
	for _, s := range []string{"020e8000", "20093e00", "0001a300"} {
		frame := unhex(t, s)
		if !ValidateChecksum(&das1, frame) {
			t.Fatalf("%s: expected valid", s)
		}
		// The last byte is outside the covered range.
		frame[3] = 0xAA
		if !ValidateChecksum(&das1, frame) {
			t.Fatalf("%s: trailing byte must not affect the checksum", s)
		}
		frame[0] ^= 0x01
		if ValidateChecksum(&das1, frame) {
			t.Fatalf("%s: corrupted covered byte still validates", s)
		}
	}
}

func TestValidateChecksum_Kinds(t *testing.T) {
	if ValidateChecksum(&eps2, unhex(t, "7c4357600000a2")) {
		t.Fatal("wrong CRC validated")
	}
	if !ValidateChecksum(&eps2, unhex(t, "7c4357600000a1")) {
		t.Fatal("good CRC rejected")
	}
	if ValidateChecksum(&eps2, unhex(t, "7c4357600000")) {
		t.Fatal("short frame validated")
	}
	if !ValidateChecksum(&abs6, unhex(t, "00112233445566ff")) {
		t.Fatal("passthrough rejected")
	}
	if !ValidateChecksum(&engine1, make([]byte, 8)) {
		t.Fatal("counter-only rejected")
	}
	noSum := Message{Name: "X", Address: 1, Length: 2}
	if !ValidateChecksum(&noSum, []byte{1, 2}) {
		t.Fatal("message without checksum rejected")
	}
}

func TestComputeChecksum_Errors(t *testing.T) {
	if _, err := ComputeChecksum(&eps1, unhex(t, "1751")); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("err = %v, want ErrShortPayload", err)
	}
	noSum := Message{Name: "X", Address: 1, Length: 2}
	if _, err := ComputeChecksum(&noSum, []byte{1, 2}); !errors.Is(err, ErrNoChecksum) {
		t.Fatalf("err = %v, want ErrNoChecksum", err)
	}
	if got, err := ComputeChecksum(&abs6, unhex(t, "00112233445566ff")); err != nil || got != 0xff {
		t.Fatalf("passthrough = 0x%02x, %v", got, err)
	}
}

func TestSeal(t *testing.T) {
	frame := unhex(t, "80000300")
	if err := Seal(&lkasCommand, frame); err != nil {
		t.Fatal(err)
	}
	if frame[3] != 0x16 {
		t.Fatalf("sealed byte 0x%02x want 0x16", frame[3])
	}
	if err := Seal(&lkasCommand, frame[:3]); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}

	pass := unhex(t, "00112233445566ff")
	if err := Seal(&abs6, pass); err != nil || pass[7] != 0xff {
		t.Fatalf("passthrough seal changed byte: %x %v", pass, err)
	}
}

func TestChecksumSpec_CustomInitAndXOR(t *testing.T) {
	m := Message{
		Name: "PLAIN", Address: 0x10, Length: 4,
		Signals:  []Signal{be("CHECKSUM", 31, 8)},
		Checksum: &ChecksumSpec{Kind: ChecksumCRC8J1850, Byte: 3, Exclude: 1},
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	// CRC-8 poly 0x1D, init 0, no final XOR over "123" is the plain table walk.
	got, err := ComputeChecksum(&m, []byte("123"))
	if err != nil {
		t.Fatal(err)
	}
	want := plainCRC8([]byte("123"), 0x00, 0x00)
	if got != want {
		t.Fatalf("got 0x%02x want 0x%02x", got, want)
	}
	j, _ := ComputeChecksum(&lkasCommand, []byte("123"))
	if j != plainCRC8([]byte("123"), 0xFF, 0xFF) {
		t.Fatalf("J1850 variant 0x%02x does not match bitwise reference", j)
	}
}

// plainCRC8 is the bitwise reference for the table-driven implementation.
func plainCRC8(data []byte, init, xorOut uint8) uint8 {
	crc := init
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x1D
			} else {
				crc <<= 1
			}
		}
	}
	return crc ^ xorOut
}
