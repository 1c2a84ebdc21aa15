package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pbassut/canbus"
	"github.com/pbassut/canbus/dbc"
)

// parseFrameArg parses "ID#HEX" as printed by candump.
func parseFrameArg(bus uint8, s string) (canbus.Frame, error) {
	id, data, ok := strings.Cut(strings.TrimSpace(s), "#")
	if !ok {
		return canbus.Frame{}, fmt.Errorf("want ID#DATA, got %q", s)
	}
	addr, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("bad id %q: %w", id, err)
	}
	payload, err := hex.DecodeString(data)
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("bad data %q: %w", data, err)
	}
	return canbus.NewFrame(bus, uint32(addr), payload)
}

// parseAssignments parses NAME=VALUE pairs.
func parseAssignments(args []string) (dbc.Values, error) {
	v := make(dbc.Values, len(args))
	for _, arg := range args {
		name, val, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("want NAME=VALUE, got %q", arg)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v[name] = f
	}
	return v, nil
}

func formatFrame(f canbus.Frame) string {
	return fmt.Sprintf("%03X#%s", f.ID, strings.ToUpper(hex.EncodeToString(f.Payload())))
}

// valueRows lists decoded values in signal order.
func valueRows(m *dbc.Message, v dbc.Values) pterm.TableData {
	rows := pterm.TableData{{"Signal", "Value"}}
	for _, s := range m.Signals {
		rows = append(rows, []string{s.Name, strconv.FormatFloat(v[s.Name], 'g', -1, 64)})
	}
	return rows
}

// catalogBus returns the bus of the only catalog message with id addr.
func catalogBus(cat *dbc.Catalog, addr uint32) (uint8, bool) {
	var (
		bus   uint8
		found int
	)
	for _, m := range cat.Messages() {
		if m.Address == addr {
			bus = m.Bus
			found++
		}
	}
	return bus, found == 1
}

func newDecodeCmd(a *app) *cobra.Command {
	var bus uint8
	cmd := &cobra.Command{
		Use:   "decode ID#DATA",
		Short: "Decode one frame against the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFrameArg(bus, args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("bus") {
				if b, ok := catalogBus(a.cat, f.ID); ok {
					f.Bus = b
				}
			}
			d, err := dbc.NewIngestor(a.cat).Ingest(f)
			if err != nil {
				return err
			}
			pterm.Info.Printfln("%s (0x%03X) on bus %d", d.Name(), d.Address, d.Bus)
			if err := pterm.DefaultTable.WithHasHeader().WithData(valueRows(d.Message, d.Values)).Render(); err != nil {
				return err
			}
			if d.HasCounter {
				pterm.Info.Printfln("counter %d", d.Counter)
			}
			if d.Message.Checksum != nil {
				if d.ChecksumValid {
					pterm.Success.Println("checksum valid")
				} else {
					pterm.Warning.Println("checksum mismatch")
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint8Var(&bus, "bus", 0, "bus index of the frame (default: the bus the catalog places the id on)")
	return cmd
}

func newEncodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encode MESSAGE [SIGNAL=VALUE ...]",
		Short: "Encode a frame, filling in its checksum",
		Long:  "Encode a frame from physical signal values. Missing signals encode as zero and out of range values saturate.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := a.cat.Message(args[0])
			if !ok {
				return fmt.Errorf("catalog %s has no message %q", a.cat.Name(), args[0])
			}
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			f, err := encodeFrame(m, values)
			var rerr *dbc.RangeError
			if errors.As(err, &rerr) {
				pterm.Warning.Printfln("saturated: %s", strings.Join(rerr.Signals, ", "))
			} else if err != nil {
				return err
			}
			fmt.Println(formatFrame(f))
			return nil
		},
	}
}

// encodeFrame encodes and seals a frame. A *dbc.RangeError is returned with
// a usable frame.
func encodeFrame(m *dbc.Message, values dbc.Values) (canbus.Frame, error) {
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

func newChecksumCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checksum MESSAGE HEX",
		Short: "Compute and check the checksum of a payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := a.cat.Message(args[0])
			if !ok {
				return fmt.Errorf("catalog %s has no message %q", a.cat.Name(), args[0])
			}
			payload, err := hex.DecodeString(args[1])
			if err != nil {
				return err
			}
			sum, err := dbc.ComputeChecksum(m, payload)
			if err != nil {
				return err
			}
			fmt.Printf("%02x\n", sum)
			if len(payload) == m.Length {
				if dbc.ValidateChecksum(m, payload) {
					pterm.Success.Println("checksum valid")
				} else {
					pterm.Warning.Printfln("checksum mismatch: frame carries %02x", payload[m.Checksum.Byte])
				}
			}
			return nil
		},
	}
}
