// Package fca is the FCA (Fiat Chrysler) vehicle profile: message catalogs
// for the Fiat Fastback and the Giorgio platform, tuning parameters, the car
// state decoded from received frames and the per-tick command assembler.
//
// The Assembler is pure: callers thread TickState and CarState through each
// Tick. Loop wires it to a canbus.Bus at a fixed rate:
//
//	asm, _ := fca.NewAssembler(fca.Fastback(), fca.DefaultParams())
//	loop := fca.NewLoop(bus, asm, law, fca.WithLogger(logger))
//	err := loop.Run(ctx)
//
// Typed frames (LKASCommand, CruiseButtons, LKASHUD, GasBrake, EPSStatus)
// implement FrameMarshaler and FrameUnmarshaler against the Fastback catalog.
package fca
