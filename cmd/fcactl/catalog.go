package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pbassut/canbus/dbc"
)

func newCatalogCmd(a *app) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "catalog [MESSAGE]",
		Short: "List catalog messages, or the signals of one message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asYAML {
				out, err := dbc.MarshalCatalog(a.cat)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(out)
				return err
			}
			if len(args) == 1 {
				m, ok := a.cat.Message(args[0])
				if !ok {
					return fmt.Errorf("catalog %s has no message %q", a.cat.Name(), args[0])
				}
				return pterm.DefaultTable.WithHasHeader().WithData(signalTable(m)).Render()
			}
			return pterm.DefaultTable.WithHasHeader().WithData(messageTable(a.cat)).Render()
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the catalog in YAML form")
	return cmd
}

func messageTable(c *dbc.Catalog) pterm.TableData {
	rows := pterm.TableData{{"Message", "Address", "Bus", "Len", "Checksum", "Counter"}}
	for _, m := range c.Messages() {
		rows = append(rows, []string{
			m.Name,
			fmt.Sprintf("0x%03X", m.Address),
			strconv.Itoa(int(m.Bus)),
			strconv.Itoa(m.Length),
			checksumLabel(m),
			counterLabel(m),
		})
	}
	return rows
}

func checksumLabel(m *dbc.Message) string {
	cs := m.Checksum
	if cs == nil {
		return "-"
	}
	if cs.Kind == dbc.ChecksumCRC8J1850 {
		return fmt.Sprintf("%s @%d [%d:%d)", cs.Kind, cs.Byte, cs.Start, m.Length-cs.Exclude)
	}
	return cs.Kind.String()
}

func counterLabel(m *dbc.Message) string {
	if m.Counter == nil {
		return "-"
	}
	return fmt.Sprintf("%s mod %d", m.Counter.Signal, m.Counter.Modulus)
}

func signalTable(m *dbc.Message) pterm.TableData {
	rows := pterm.TableData{{"Signal", "Start", "Len", "Order", "Signed", "Scale", "Offset"}}
	for _, s := range m.Signals {
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.Start),
			strconv.Itoa(s.Length),
			s.Order.String(),
			strconv.FormatBool(s.Signed),
			strconv.FormatFloat(s.Scale, 'g', -1, 64),
			strconv.FormatFloat(s.Offset, 'g', -1, 64),
		})
	}
	return rows
}
