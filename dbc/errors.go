package dbc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLengthMismatch is returned when a payload does not have the length
	// declared by its message.
	ErrLengthMismatch = errors.New("dbc: payload length mismatch")
	// ErrOutOfRange marks a value that had to be saturated to fit its signal.
	ErrOutOfRange = errors.New("dbc: signal value out of range")
	// ErrUnknownSignal is returned when a value names no signal of the message.
	ErrUnknownSignal = errors.New("dbc: unknown signal")
	// ErrUnknownAddress is returned when no message is registered for an address.
	ErrUnknownAddress = errors.New("dbc: unknown address")
	// ErrShortPayload is returned when a checksum is requested over fewer bytes
	// than the covered range.
	ErrShortPayload = errors.New("dbc: payload shorter than checksum range")
	// ErrNoChecksum is returned when a checksum is requested for a message
	// that does not carry one.
	ErrNoChecksum = errors.New("dbc: message has no checksum")
)

// RangeError lists the signals that were saturated during Encode. The encoded
// payload is still returned alongside it.
type RangeError struct {
	Message string
	Signals []string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("dbc: %s: saturated %s", e.Message, strings.Join(e.Signals, ", "))
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// CatalogError reports an inconsistent message definition.
type CatalogError struct {
	Message string
	Signal  string
	Reason  string
}

func (e *CatalogError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("dbc: message %s signal %s: %s", e.Message, e.Signal, e.Reason)
	}
	return fmt.Sprintf("dbc: message %s: %s", e.Message, e.Reason)
}
