package dbc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pbassut/canbus"
)

func TestIngestor_Ingest(t *testing.T) {
	in := NewIngestor(testCatalog(t))

	f, err := canbus.NewFrame(0, 0x106, unhex(t, "7c4357600000a1"))
	if err != nil {
		t.Fatal(err)
	}
	d, err := in.Ingest(f)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name() != "EPS_2" || !d.ChecksumValid || !d.HasCounter || d.Counter != 0 {
		t.Fatalf("decoded %+v", d)
	}

	f.Data[6] = 0x00
	d, err = in.Ingest(f)
	if err != nil {
		t.Fatalf("bad checksum must not be an error: %v", err)
	}
	if d.ChecksumValid {
		t.Fatal("corrupted frame reported valid")
	}
}

func TestIngestor_Errors(t *testing.T) {
	in := NewIngestor(testCatalog(t))
	if _, err := in.Ingest(canbus.MustFrame(0x7FF, []byte{1})); !errors.Is(err, ErrUnknownAddress) {
		t.Fatalf("err = %v, want ErrUnknownAddress", err)
	}
	if _, err := in.Ingest(canbus.MustFrame(0x1F6, []byte{1, 2})); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
	// DAS_1 belongs to bus 1; the same id seen on bus 0 is not DAS_1.
	if _, err := in.Ingest(canbus.MustFrame(0x2FA, unhex(t, "020e8000"))); !errors.Is(err, ErrUnknownAddress) {
		t.Fatalf("DAS_1 on bus 0: err = %v, want ErrUnknownAddress", err)
	}
	das1, _ := canbus.NewFrame(1, 0x2FA, unhex(t, "020e8000"))
	if d, err := in.Ingest(das1); err != nil || d.Name() != "DAS_1" || d.Bus != 1 {
		t.Fatalf("DAS_1 on bus 1: %+v %v", d, err)
	}
}

func TestCheckCounter(t *testing.T) {
	tests := []struct {
		prev, cur int
		status    CounterStatus
		missed    int
	}{
		{0, 1, CounterOK, 0},
		{15, 0, CounterOK, 0},
		{7, 7, CounterStale, 0},
		{3, 6, CounterGap, 2},
		{14, 1, CounterGap, 2},
	}
	for _, tt := range tests {
		s, n := CheckCounter(tt.prev, tt.cur, 16)
		if s != tt.status || n != tt.missed {
			t.Fatalf("CheckCounter(%d, %d) = %v, %d; want %v, %d", tt.prev, tt.cur, s, n, tt.status, tt.missed)
		}
	}
}

func TestCounterSpec_Wrap(t *testing.T) {
	c := Counter("COUNTER", 4)
	for v, want := range map[int]int{0: 0, 15: 15, 16: 0, 37: 5, -1: 15} {
		if got := c.Wrap(v); got != want {
			t.Fatalf("Wrap(%d) = %d, want %d", v, got, want)
		}
	}
	if got := Counter("C", 2).Wrap(6); got != 2 {
		t.Fatalf("2-bit Wrap(6) = %d", got)
	}
}

func TestCounterTracker(t *testing.T) {
	in := NewIngestor(testCatalog(t))
	tr := NewCounterTracker()

	frames := []string{"175197cc00df", "175197c901a3", "175197cc02e5", "175197cc02e5"}
	want := []CounterStatus{CounterOK, CounterOK, CounterOK, CounterStale}
	for i, s := range frames {
		f, _ := canbus.NewFrame(0, 0xDE, unhex(t, s))
		d, err := in.Ingest(f)
		if err != nil {
			t.Fatal(err)
		}
		if !d.ChecksumValid {
			t.Fatalf("frame %s invalid", s)
		}
		if got, _ := tr.Observe(d); got != want[i] {
			t.Fatalf("frame %d: %v want %v", i, got, want[i])
		}
	}
	if last, ok := tr.Last(0, 0xDE); !ok || last != 2 {
		t.Fatalf("Last = %d, %v", last, ok)
	}
	// Same address on another bus is tracked separately.
	f, _ := canbus.NewFrame(0, 0xDE, unhex(t, "175197cc02e5"))
	d, _ := in.Ingest(f)
	d.Bus = 1
	if got, _ := tr.Observe(d); got != CounterOK {
		t.Fatalf("other bus: %v", got)
	}
}

func TestCatalogFilter(t *testing.T) {
	filter := testCatalog(t).Filter()
	das1, _ := canbus.NewFrame(1, 0x2FA, unhex(t, "020e8000"))
	if !filter(das1) {
		t.Fatal("DAS_1 not matched")
	}
	if filter(canbus.MustFrame(0x2FA, unhex(t, "020e8000"))) {
		t.Fatal("DAS_1 matched on bus 0")
	}
	short, _ := canbus.NewFrame(1, 0x2FA, unhex(t, "020e80"))
	if filter(short) {
		t.Fatal("short DAS_1 matched")
	}
	if filter(canbus.MustFrame(0x123, []byte{0})) {
		t.Fatal("unknown id matched")
	}
}

func TestParseCatalog(t *testing.T) {
	src := []byte(`
name: demo
messages:
  - name: LKAS_COMMAND
    address: 0x1F6
    length: 4
    signals:
      - {name: STEERING_TORQUE, start: 7, length: 11, offset: -1024}
      - {name: LKAS_REQUEST_BIT, start: 12, length: 1}
      - {name: COUNTER, start: 19, length: 4}
      - {name: CHECKSUM, start: 31, length: 8}
    checksum: {kind: crc8_j1850, byte: 3}
    counter: {signal: COUNTER, width: 4}
  - name: ENGINE_1
    address: "0xFC"
    bus: 1
    length: 8
    signals:
      - {name: ACCEL_PEDAL_THRESHOLD, start: 13, length: 8, order: little}
      - {name: COUNTER, start: 59, length: 4}
    checksum: {kind: counter_only}
    counter: {signal: COUNTER, width: 4}
`)
	c, err := ParseCatalog(src)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := c.Lookup(0, 0x1F6)
	if !ok || m.Checksum.Exclude != 1 || m.Checksum.Init != 0xFF || m.Counter.Modulus != 16 {
		t.Fatalf("LKAS_COMMAND = %+v", m)
	}
	data, err := Encode(m, Values{"COUNTER": 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := Seal(m, data); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, unhex(t, "80000316")) {
		t.Fatalf("encoded %x", data)
	}
	e, _ := c.Lookup(1, 0xFC)
	if e.Bus != 1 || e.Signals[0].Order != LittleEndian {
		t.Fatalf("ENGINE_1 = %+v", e)
	}

	out, err := MarshalCatalog(c)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseCatalog(out)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	if len(back.Messages()) != 2 || !bytes.Contains(out, []byte("0x1F6")) {
		t.Fatalf("marshal output:\n%s", out)
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	for name, src := range map[string]string{
		"unknown field": "name: x\nmessages:\n  - name: A\n    address: 1\n    length: 1\n    colour: red\n",
		"bad kind":      "name: x\nmessages:\n  - name: A\n    address: 1\n    length: 2\n    checksum: {kind: md5, byte: 1}\n",
		"bad order":     "name: x\nmessages:\n  - name: A\n    address: 1\n    length: 1\n    signals: [{name: S, start: 0, length: 1, order: middle}]\n",
		"overlap":       "name: x\nmessages:\n  - name: A\n    address: 1\n    length: 1\n    signals: [{name: S, start: 7, length: 2}, {name: T, start: 6, length: 1}]\n",
	} {
		if _, err := ParseCatalog([]byte(src)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
