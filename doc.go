// Package canbus provides the frame transport used by the FCA field-bus
// tooling: a CAN Frame type tagged with its logical bus, a context-aware Bus
// interface and its implementations.
//
// It includes:
//   - A core Frame type with validation and SocketCAN binary marshaling
//   - An in-memory loopback bus for tests and simulations
//   - A Mux that fans received frames out to filtered subscribers
//   - A Harness joining one connection per bus into a single Bus
//   - A zerolog decorator for tracing Send/Receive
//   - A Linux SocketCAN driver (linux-only)
//
// Signal-level encoding lives in the dbc sub-package; actuator limiting in
// control; the FCA vehicle profile and command assembly in fca.
package canbus
