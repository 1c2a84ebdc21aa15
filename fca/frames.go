package fca

import (
	"errors"
	"fmt"
	"maps"

	"github.com/pbassut/canbus"
	"github.com/pbassut/canbus/dbc"
)

// ErrBadChecksum is returned when a typed frame is unmarshaled from a frame
// whose checksum does not validate.
var ErrBadChecksum = errors.New("fca: checksum mismatch")

// FrameMarshaler encodes a typed message into a CAN frame.
type FrameMarshaler interface {
	MarshalCANFrame() (canbus.Frame, error)
}

// FrameUnmarshaler decodes a typed message from a CAN frame.
type FrameUnmarshaler interface {
	UnmarshalCANFrame(canbus.Frame) error
}

// FrameCodec combines marshaling and unmarshaling of CAN frames.
type FrameCodec interface {
	FrameMarshaler
	FrameUnmarshaler
}

// pack encodes and seals values as message name of cat. The rolling counter
// is wrapped to the message's modulus. A saturated signal yields a usable
// frame together with an error wrapping dbc.ErrOutOfRange.
func pack(cat *dbc.Catalog, name string, values dbc.Values) (canbus.Frame, error) {
	m, ok := cat.Message(name)
	if !ok {
		return canbus.Frame{}, fmt.Errorf("fca: catalog %s has no %s", cat.Name(), name)
	}
	if c := m.Counter; c != nil {
		if v, ok := values[c.Signal]; ok {
			values = maps.Clone(values)
			values[c.Signal] = float64(c.Wrap(int(v)))
		}
	}
	data, encErr := dbc.Encode(m, values)
	if encErr != nil && !errors.Is(encErr, dbc.ErrOutOfRange) {
		return canbus.Frame{}, encErr
	}
	if err := dbc.Seal(m, data); err != nil {
		return canbus.Frame{}, err
	}
	f, err := canbus.NewFrame(m.Bus, m.Address, data)
	if err != nil {
		return canbus.Frame{}, err
	}
	return f, encErr
}

// unpack decodes f as message name of cat and rejects bad checksums.
func unpack(cat *dbc.Catalog, name string, f canbus.Frame) (dbc.DecodedFrame, error) {
	m, ok := cat.Message(name)
	if !ok {
		return dbc.DecodedFrame{}, fmt.Errorf("fca: catalog %s has no %s", cat.Name(), name)
	}
	if f.ID != m.Address {
		return dbc.DecodedFrame{}, fmt.Errorf("fca: not a %s frame (id=0x%X)", name, f.ID)
	}
	d, err := dbc.NewIngestor(cat).Ingest(f)
	if err != nil {
		return dbc.DecodedFrame{}, err
	}
	if !d.ChecksumValid {
		return d, fmt.Errorf("%w: %s", ErrBadChecksum, name)
	}
	return d, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// LKASCommand is the steering torque request.
type LKASCommand struct {
	Torque  int
	Request bool
	Counter int
}

func (c LKASCommand) values() dbc.Values {
	return dbc.Values{
		"STEERING_TORQUE":  float64(c.Torque),
		"LKAS_REQUEST_BIT": b2f(c.Request),
		"COUNTER":          float64(c.Counter),
	}
}

func (c LKASCommand) MarshalCANFrame() (canbus.Frame, error) {
	return pack(Fastback(), MsgLKASCommand, c.values())
}

func (c *LKASCommand) UnmarshalCANFrame(f canbus.Frame) error {
	d, err := unpack(Fastback(), MsgLKASCommand, f)
	if err != nil {
		return err
	}
	c.Torque = int(d.Values["STEERING_TORQUE"])
	c.Request = d.Values["LKAS_REQUEST_BIT"] == 1
	c.Counter = d.Counter
	return nil
}

// CruiseButtons is a DAS_1 button press sent toward the ACC module.
type CruiseButtons struct {
	Button  int
	Counter int
}

func (c CruiseButtons) values() dbc.Values {
	return dbc.Values{
		"CRUISE_BUTTON_PRESSED": float64(c.Button),
		"COUNTER":               float64(c.Counter),
	}
}

func (c CruiseButtons) MarshalCANFrame() (canbus.Frame, error) {
	return pack(Fastback(), MsgDAS1, c.values())
}

func (c *CruiseButtons) UnmarshalCANFrame(f canbus.Frame) error {
	d, err := unpack(Fastback(), MsgDAS1, f)
	if err != nil {
		return err
	}
	c.Button = int(d.Values["CRUISE_BUTTON_PRESSED"])
	c.Counter = d.Counter
	return nil
}

// LKASHUD drives the lane keeping cluster indicators.
type LKASHUD struct {
	LEDStatus     int
	WarningType   int
	LaneIndicator int
}

// NewLKASHUD derives the HUD from the lateral and fault state.
func NewLKASHUD(latActive, faulted bool) LKASHUD {
	h := LKASHUD{LaneIndicator: 1}
	if latActive {
		h.LaneIndicator = 6
	}
	if faulted {
		h = LKASHUD{LEDStatus: 1, WarningType: 15}
	}
	return h
}

func (h LKASHUD) values() dbc.Values {
	return dbc.Values{
		"LKAS_LED_STATUS":    float64(h.LEDStatus),
		"HUD_WARNING_TYPE":   float64(h.WarningType),
		"LANE_HUD_INDICATOR": float64(h.LaneIndicator),
	}
}

func (h LKASHUD) MarshalCANFrame() (canbus.Frame, error) {
	return pack(Fastback(), MsgLKAHUD2, h.values())
}

func (h *LKASHUD) UnmarshalCANFrame(f canbus.Frame) error {
	d, err := unpack(Fastback(), MsgLKAHUD2, f)
	if err != nil {
		return err
	}
	h.LEDStatus = int(d.Values["LKAS_LED_STATUS"])
	h.WarningType = int(d.Values["HUD_WARNING_TYPE"])
	h.LaneIndicator = int(d.Values["LANE_HUD_INDICATOR"])
	return nil
}

// GasBrake is the longitudinal request carried on ENGINE_1. Throttle is in
// the ACCEL_THRESHOLD scale; negative values request braking.
type GasBrake struct {
	Throttle int
	Counter  int
}

func (g GasBrake) values() dbc.Values {
	braking := g.Throttle < 0
	brake := 0
	if braking {
		brake = 2
		if g.Throttle >= -17 {
			brake = 1
		}
	}
	v := dbc.Values{
		"ACCEL_THRESHOLD":   float64(g.Throttle),
		"ACCEL_THRESHOLD_2": float64(g.Throttle),
		"ACCEL_THRESHOLD_3": float64(g.Throttle),
		"BREAK_PRESSED":     float64(brake),
		"MAYBE_BREAKING":    b2f(brake > 1),
		"COUNTER":           float64(g.Counter),
	}
	if braking {
		v["ACCEL_THRESHOLD"] = -17
		v["ACCEL_THRESHOLD_2"] = -24
		v["ACCEL_THRESHOLD_3"] = 0
	}
	return v
}

func (g GasBrake) MarshalCANFrame() (canbus.Frame, error) {
	return pack(Fastback(), MsgEngine1, g.values())
}

// EPSStatus is the EPS_2 report. It is only ever received from the car;
// marshaling exists for simulation and tests.
type EPSStatus struct {
	MotorTorque    int
	DriverTorque   int
	State          int
	TemporaryFault bool
	Counter        int
}

func (e EPSStatus) MarshalCANFrame() (canbus.Frame, error) {
	return pack(Fastback(), MsgEPS2, dbc.Values{
		"EPS_TORQUE_MOTOR":     float64(e.MotorTorque),
		"DRIVER_TORQUE":        float64(e.DriverTorque),
		"LKAS_STATE":           float64(e.State),
		"LKAS_TEMPORARY_FAULT": b2f(e.TemporaryFault),
		"COUNTER":              float64(e.Counter),
	})
}

func (e *EPSStatus) UnmarshalCANFrame(f canbus.Frame) error {
	d, err := unpack(Fastback(), MsgEPS2, f)
	if err != nil {
		return err
	}
	e.MotorTorque = int(d.Values["EPS_TORQUE_MOTOR"])
	e.DriverTorque = int(d.Values["DRIVER_TORQUE"])
	e.State = int(d.Values["LKAS_STATE"])
	e.TemporaryFault = d.Values["LKAS_TEMPORARY_FAULT"] == 1
	e.Counter = d.Counter
	return nil
}
