// Package dbc describes CAN messages at the signal level and converts between
// physical signal values and frame payloads.
//
// The building blocks are:
//   - Signal / Message / Catalog: the static layout of every message, the
//     in-memory equivalent of a DBC file, validated once at construction
//   - Encode / Decode: byte-exact packing of Motorola and Intel signals
//   - ComputeChecksum / ValidateChecksum / Seal: per-message checksum
//     strategies selected by a ChecksumKind tag (CRC-8/SAE-J1850 variant,
//     passthrough, counter only)
//   - Ingestor: decode + checksum validation of received frames
//   - CheckCounter / CounterTracker: rolling counter continuity
//
// Nothing in this package blocks or keeps hidden mutable state; the only
// stateful helper, CounterTracker, is owned by its caller.
package dbc
