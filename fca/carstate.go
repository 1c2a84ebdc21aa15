package fca

import (
	"github.com/pbassut/canbus/control"
	"github.com/pbassut/canbus/dbc"
)

// KphToMs converts km/h to m/s.
const KphToMs = 1 / 3.6

// CarState is the vehicle state assembled from received frames.
type CarState struct {
	DriverTorque int
	EPSTorque    int
	EPSState     int
	// SteerFaultTemporary mirrors LKAS_TEMPORARY_FAULT on EPS_2.
	SteerFaultTemporary bool

	CruiseAvailable bool
	CruiseEngaged   bool
	CruiseSpeed     float64 // m/s

	VehicleSpeed float64 // raw ABS_6 units (1/16 km/h)
	Moving       bool
	BrakePressed bool
	GasPressed   bool

	CruiseButton int
	// ButtonCounter is the COUNTER of the last received DAS_1.
	ButtonCounter int

	// LateralAllowed latches on an LKAS button press.
	LateralAllowed bool
	// HighBeamPressed is set on a high beam stalk press and stays set until
	// the consumer clears it.
	HighBeamPressed bool

	lkasButton control.Edge
	highBeam   control.Edge
}

// FaultCode is the code fed to the steering limiter.
func (s *CarState) FaultCode() int {
	if s.EPSState == EPSStatePermanentFault {
		return s.EPSState
	}
	if s.SteerFaultTemporary {
		return FaultTemporaryBit
	}
	return s.EPSState
}

// Update folds a decoded frame into the state. Frames must be applied in
// arrival order; edge detection depends on it. Frames with a bad checksum
// should be filtered by the caller.
func (s *CarState) Update(d dbc.DecodedFrame) {
	v := d.Values
	switch d.Name() {
	case MsgEPS2:
		s.DriverTorque = int(v["DRIVER_TORQUE"])
		s.EPSTorque = int(v["EPS_TORQUE_MOTOR"])
		s.EPSState = int(v["LKAS_STATE"])
		s.SteerFaultTemporary = v["LKAS_TEMPORARY_FAULT"] == 1
	case MsgDAS2:
		s.CruiseAvailable = v["ACC_STATE"] == 1
		s.CruiseEngaged = v["ACC_ENGAGED"] == 1
		s.CruiseSpeed = v["ACC_SET_SPEED"] * KphToMs
	case MsgABS6:
		s.VehicleSpeed = v["VEHICLE_SPEED"]
		s.Moving = v["VEHICLE_SPEED"] > 0
		s.BrakePressed = v["BRAKE_PRESSURE"] > 0
	case MsgEngine1:
		s.GasPressed = v["ACCEL_PEDAL_THRESHOLD"] > 0
	case MsgDAS1:
		s.CruiseButton = int(v["CRUISE_BUTTON_PRESSED"])
		s.ButtonCounter = d.Counter
	case MsgButtons1:
		var rose bool
		rose, s.lkasButton = s.lkasButton.Rising(v["LKAS_BUTTON"] == 1)
		if rose {
			s.LateralAllowed = true
		}
		rose, s.highBeam = s.highBeam.Rising(v["HIGH_BEAM_PRESSED"] == 1)
		if rose {
			s.HighBeamPressed = true
		}
	}
}

// ClearLateral drops the lateral permission, for example on disengage.
func (s *CarState) ClearLateral() { s.LateralAllowed = false }
