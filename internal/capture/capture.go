// Package capture reads candump logs into canbus frames. Both the log file
// format ("(1700000000.123456) can0 1F6#80000316") and the default console
// format ("  can0  1F6   [4]  80 00 03 16") are accepted.
package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pbassut/canbus"
)

var (
	// ErrBlank is returned by ParseLine for empty and comment lines.
	ErrBlank        = errors.New("capture: blank line")
	ErrUnknownIface = errors.New("capture: unknown interface")
	ErrSyntax       = errors.New("capture: malformed line")
)

// Record is one captured frame.
type Record struct {
	// Time is zero for console format lines, which carry no timestamp.
	Time  time.Time
	Iface string
	Frame canbus.Frame
}

// LineError reports the line a Read failed on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// Parser maps interface names to bus indexes.
type Parser struct {
	buses map[string]uint8
}

// NewParser assigns bus i to ifaces[i]. With no interfaces every line is
// placed on bus 0.
func NewParser(ifaces ...string) *Parser {
	p := &Parser{buses: make(map[string]uint8, len(ifaces))}
	for i, name := range ifaces {
		p.buses[name] = uint8(i)
	}
	return p
}

func (p *Parser) bus(iface string) (uint8, error) {
	if len(p.buses) == 0 {
		return 0, nil
	}
	b, ok := p.buses[iface]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownIface, iface)
	}
	return b, nil
}

// ParseLine parses a single candump line.
func (p *Parser) ParseLine(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Record{}, ErrBlank
	}
	fields := strings.Fields(line)
	if strings.HasPrefix(fields[0], "(") {
		return p.parseLog(fields)
	}
	return p.parseConsole(fields)
}

func (p *Parser) parseLog(fields []string) (Record, error) {
	if len(fields) < 3 {
		return Record{}, fmt.Errorf("%w: want (time) iface frame", ErrSyntax)
	}
	ts, err := parseTimestamp(strings.Trim(fields[0], "()"))
	if err != nil {
		return Record{}, err
	}
	bus, err := p.bus(fields[1])
	if err != nil {
		return Record{}, err
	}
	id, data, ok := strings.Cut(fields[2], "#")
	if !ok || strings.HasPrefix(data, "#") {
		return Record{}, fmt.Errorf("%w: %q is not a classical CAN frame", ErrSyntax, fields[2])
	}
	f, err := buildFrame(bus, id, data)
	if err != nil {
		return Record{}, err
	}
	return Record{Time: ts, Iface: fields[1], Frame: f}, nil
}

func (p *Parser) parseConsole(fields []string) (Record, error) {
	if len(fields) < 3 || !strings.HasPrefix(fields[2], "[") {
		return Record{}, fmt.Errorf("%w: want iface id [len] bytes", ErrSyntax)
	}
	bus, err := p.bus(fields[0])
	if err != nil {
		return Record{}, err
	}
	n, err := strconv.Atoi(strings.Trim(fields[2], "[]"))
	if err != nil || n < 0 || n > 8 {
		return Record{}, fmt.Errorf("%w: length %s", ErrSyntax, fields[2])
	}
	rest := fields[3:]
	if len(rest) > 0 && rest[0] == "remote" {
		f, err := buildFrame(bus, fields[1], "R")
		f.Len = uint8(n)
		return Record{Iface: fields[0], Frame: f}, err
	}
	if len(rest) != n {
		return Record{}, fmt.Errorf("%w: %d bytes for [%d]", ErrSyntax, len(rest), n)
	}
	f, err := buildFrame(bus, fields[1], strings.Join(rest, ""))
	if err != nil {
		return Record{}, err
	}
	return Record{Iface: fields[0], Frame: f}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	sec, frac, _ := strings.Cut(s, ".")
	secs, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrSyntax, s)
	}
	var nanos int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		if nanos, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrSyntax, s)
		}
	}
	return time.Unix(secs, nanos), nil
}

// buildFrame treats 8-digit identifiers as extended, as candump prints them.
func buildFrame(bus uint8, id, data string) (canbus.Frame, error) {
	v, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("%w: id %q", ErrSyntax, id)
	}
	f := canbus.Frame{Bus: bus, ID: uint32(v), Extended: len(id) == 8}
	if strings.HasPrefix(strings.ToUpper(data), "R") {
		f.RTR = true
		return f, f.Validate()
	}
	b, err := hex.DecodeString(data)
	if err != nil || len(b) > 8 {
		return canbus.Frame{}, fmt.Errorf("%w: data %q", ErrSyntax, data)
	}
	f.Len = uint8(copy(f.Data[:], b))
	if err := f.Validate(); err != nil {
		return canbus.Frame{}, err
	}
	return f, nil
}

// Read parses every line of r and hands the records to fn in order. Blank
// lines are skipped; a parse error or an error from fn stops the read.
func Read(r io.Reader, p *Parser, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		rec, err := p.ParseLine(sc.Text())
		if errors.Is(err, ErrBlank) {
			continue
		}
		if err != nil {
			return &LineError{Line: n, Err: err}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}

// FormatLine renders rec in candump log format.
func FormatLine(rec Record) string {
	id := fmt.Sprintf("%03X", rec.Frame.ID)
	if rec.Frame.Extended {
		id = fmt.Sprintf("%08X", rec.Frame.ID)
	}
	data := strings.ToUpper(hex.EncodeToString(rec.Frame.Payload()))
	if rec.Frame.RTR {
		data = "R"
	}
	return fmt.Sprintf("(%d.%06d) %s %s#%s", rec.Time.Unix(), rec.Time.Nanosecond()/1000, rec.Iface, id, data)
}
