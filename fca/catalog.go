package fca

import (
	"sync"

	"github.com/pbassut/canbus/dbc"
)

// Bus indexes used by the harness.
const (
	BusPT  uint8 = 0 // powertrain: EPS, ABS, steering command
	BusDAS uint8 = 1 // driver assistance: cruise buttons and state
)

// Message names shared by both catalogs.
const (
	MsgLKASCommand = "LKAS_COMMAND"
	MsgLKAHUD2     = "LKA_HUD_2"
	MsgDAS1        = "DAS_1"
	MsgDAS2        = "DAS_2"
	MsgEPS1        = "EPS_1"
	MsgEPS2        = "EPS_2"
	MsgEPS3        = "EPS_3"
	MsgABS2        = "ABS_2"
	MsgABS6        = "ABS_6"
	MsgEngine1     = "ENGINE_1"
	MsgButtons1    = "BUTTONS_1"
)

// Fastback addresses.
const (
	AddrABS6        uint32 = 0x101
	AddrDAS1        uint32 = 0x2FA
	AddrDAS2        uint32 = 0x5A5
	AddrEPS2        uint32 = 0x106
	AddrEngine1     uint32 = 0xFC
	AddrLKASCommand uint32 = 0x1F6
	AddrLKAHUD2     uint32 = 0x547
	AddrButtons1    uint32 = 0x384
)

// Giorgio-only addresses.
const (
	AddrEPS1 uint32 = 0xDE
	AddrEPS3 uint32 = 0x122
	AddrABS2 uint32 = 0xFE
)

// Cruise button codes on DAS_1.
const (
	ButtonCancel = 128
	ButtonResume = 32
)

// EPS_2 LKAS_STATE value reported for a permanent EPS fault.
const EPSStatePermanentFault = 4

func be(name string, start, length int) dbc.Signal {
	return dbc.Signal{Name: name, Start: start, Length: length, Scale: 1}
}

func torque(name string, start int) dbc.Signal {
	return dbc.Signal{Name: name, Start: start, Length: 11, Scale: 1, Offset: -1024}
}

var eps2 = dbc.Message{
	Name: MsgEPS2, Address: AddrEPS2, Bus: BusPT, Length: 7,
	Signals: []dbc.Signal{
		torque("EPS_TORQUE_MOTOR", 7),
		be("EPS_UNKNOWN", 12, 5),
		torque("DRIVER_TORQUE", 23),
		be("LKAS_TEMPORARY_FAULT", 25, 1),
		be("LKAS_STATE", 28, 3),
		be("COUNTER", 43, 4),
		be("CHECKSUM", 55, 8),
	},
	Checksum: dbc.J1850(6, 1),
	Counter:  dbc.Counter("COUNTER", 4),
}

func fastbackMessages() []dbc.Message {
	return []dbc.Message{
		{
			Name: MsgLKASCommand, Address: AddrLKASCommand, Bus: BusPT, Length: 4,
			Signals: []dbc.Signal{
				torque("STEERING_TORQUE", 7),
				be("LKAS_REQUEST_BIT", 12, 1),
				be("COUNTER", 19, 4),
				be("CHECKSUM", 31, 8),
			},
			Checksum: dbc.J1850(3, 1),
			Counter:  dbc.Counter("COUNTER", 4),
		},
		{
			Name: MsgLKAHUD2, Address: AddrLKAHUD2, Bus: BusPT, Length: 8,
			Signals: []dbc.Signal{
				be("SOMETHING_HANDS_ON_WHEEL_2", 7, 2),
				be("BEEP", 5, 1),
				be("LKAS_LED_STATUS", 4, 2),
				be("HUD_WARNING_TYPE", 15, 4),
				be("LANE_HUD_INDICATOR", 11, 4),
				be("LKAS_HUD_STATE", 23, 4),
				be("LKAS_FAULTED_2", 19, 2),
			},
		},
		{
			// The counter byte after the checksum is not covered by the CRC.
			Name: MsgDAS1, Address: AddrDAS1, Bus: BusDAS, Length: 4,
			Signals: []dbc.Signal{
				be("CRUISE_BUTTON_PRESSED", 7, 8),
				be("COUNTER", 11, 4),
				be("CHECKSUM", 23, 8),
			},
			Checksum: dbc.J1850(2, 2),
			Counter:  dbc.Counter("COUNTER", 4),
		},
		{
			Name: MsgDAS2, Address: AddrDAS2, Bus: BusDAS, Length: 8,
			Signals: []dbc.Signal{
				be("ACC_STATE", 7, 1),
				be("ACC_ENGAGED", 21, 1),
				be("ACC_SET_SPEED", 31, 8),
			},
		},
		eps2,
		{
			Name: MsgABS6, Address: AddrABS6, Bus: BusPT, Length: 8,
			Signals: []dbc.Signal{
				{Name: "VEHICLE_SPEED", Start: 15, Length: 11, Scale: 0.0625},
				be("BRAKE_PRESSURE", 20, 11),
				be("COUNTER", 51, 4),
				be("CHECKSUM", 63, 8),
			},
			Checksum: &dbc.ChecksumSpec{Kind: dbc.ChecksumPassthrough, Byte: 7},
			Counter:  dbc.Counter("COUNTER", 4),
		},
		{
			Name: MsgEngine1, Address: AddrEngine1, Bus: BusDAS, Length: 8,
			Signals: []dbc.Signal{
				be("BREAK_PRESSED", 7, 2),
				be("MAYBE_BREAKING", 5, 1),
				{Name: "ACCEL_PEDAL_THRESHOLD", Start: 13, Length: 8, Scale: 1, Order: dbc.LittleEndian},
				{Name: "ACCEL_THRESHOLD", Start: 31, Length: 10, Signed: true, Scale: 1},
				{Name: "ACCEL_THRESHOLD_2", Start: 37, Length: 10, Signed: true, Scale: 1},
				{Name: "ACCEL_THRESHOLD_3", Start: 43, Length: 10, Signed: true, Scale: 1},
				be("COUNTER", 59, 4),
			},
			Checksum: &dbc.ChecksumSpec{Kind: dbc.ChecksumCounterOnly},
			Counter:  dbc.Counter("COUNTER", 4),
		},
		{
			Name: MsgButtons1, Address: AddrButtons1, Bus: BusPT, Length: 8,
			Signals: []dbc.Signal{
				be("HIGH_BEAM_PRESSED", 29, 1),
				be("LKAS_BUTTON", 30, 1),
			},
		},
	}
}

func giorgioMessages() []dbc.Message {
	return []dbc.Message{
		{
			Name: MsgEPS1, Address: AddrEPS1, Bus: BusPT, Length: 6,
			Signals: []dbc.Signal{
				{Name: "STEERING_ANGLE", Start: 7, Length: 16, Signed: true, Scale: 0.1},
				be("STEERING_RATE", 23, 16),
				be("COUNTER", 35, 4),
				be("CHECKSUM", 47, 8),
			},
			Checksum: dbc.J1850(5, 1),
			Counter:  dbc.Counter("COUNTER", 4),
		},
		eps2,
		{
			Name: MsgEPS3, Address: AddrEPS3, Bus: BusPT, Length: 4,
			Signals: []dbc.Signal{
				be("EPS_3_UNKNOWN_1", 7, 8),
				be("EPS_3_UNKNOWN_2", 15, 8),
				be("COUNTER", 19, 4),
				be("CHECKSUM", 31, 8),
			},
			Checksum: dbc.J1850(3, 1),
			Counter:  dbc.Counter("COUNTER", 4),
		},
		{
			Name: MsgABS2, Address: AddrABS2, Bus: BusPT, Length: 8,
			Signals: []dbc.Signal{
				be("UNKNOWN_1", 7, 24),
				be("UNKNOWN_2", 31, 24),
				be("ABS_2_UNKNOWN_STATUS", 55, 4),
				be("COUNTER", 51, 4),
				be("CHECKSUM", 63, 8),
			},
			Checksum: dbc.J1850(7, 1),
			Counter:  dbc.Counter("COUNTER", 4),
		},
	}
}

var (
	fastback = sync.OnceValue(func() *dbc.Catalog { return dbc.MustCatalog("fastback", fastbackMessages()...) })
	giorgio  = sync.OnceValue(func() *dbc.Catalog { return dbc.MustCatalog("giorgio", giorgioMessages()...) })
)

// Fastback returns the catalog of the Fiat Fastback (2024) messages.
func Fastback() *dbc.Catalog { return fastback() }

// Giorgio returns the catalog of the FCA Giorgio platform steering and ABS
// messages.
func Giorgio() *dbc.Catalog { return giorgio() }

// CatalogByName returns a built-in catalog.
func CatalogByName(name string) (*dbc.Catalog, bool) {
	switch name {
	case "fastback":
		return Fastback(), true
	case "giorgio":
		return Giorgio(), true
	}
	return nil, false
}
