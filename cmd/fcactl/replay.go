package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pbassut/canbus/dbc"
	"github.com/pbassut/canbus/internal/capture"
)

type messageStats struct {
	frames, badChecksum, gaps, stale int
}

// replayer decodes capture records and keeps per-message statistics.
type replayer struct {
	in       *dbc.Ingestor
	counters *dbc.CounterTracker
	only     map[string]bool
	out      io.Writer
	logger   zerolog.Logger

	stats   map[string]*messageStats
	unknown int
}

func newReplayer(cat *dbc.Catalog, only []string, out io.Writer, logger zerolog.Logger) *replayer {
	r := &replayer{
		in:       dbc.NewIngestor(cat),
		counters: dbc.NewCounterTracker(),
		out:      out,
		logger:   logger,
		stats:    make(map[string]*messageStats),
	}
	if len(only) > 0 {
		r.only = make(map[string]bool, len(only))
		for _, n := range only {
			r.only[n] = true
		}
	}
	return r
}

func (r *replayer) handle(rec capture.Record) error {
	d, err := r.in.Ingest(rec.Frame)
	if errors.Is(err, dbc.ErrUnknownAddress) {
		r.unknown++
		return nil
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("frame", rec.Frame.String()).Msg("undecodable frame")
		return nil
	}
	st := r.stats[d.Name()]
	if st == nil {
		st = &messageStats{}
		r.stats[d.Name()] = st
	}
	st.frames++

	var notes []string
	if !d.ChecksumValid {
		st.badChecksum++
		notes = append(notes, "BAD CHECKSUM")
	}
	if d.ChecksumValid && d.HasCounter {
		switch status, missed := r.counters.Observe(d); status {
		case dbc.CounterGap:
			st.gaps++
			notes = append(notes, fmt.Sprintf("gap %d", missed))
		case dbc.CounterStale:
			st.stale++
			notes = append(notes, "stale")
		}
	}
	if r.only != nil && !r.only[d.Name()] {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%06d %s %s", rec.Time.Unix(), rec.Time.Nanosecond()/1000, rec.Iface, d.Name())
	for _, s := range d.Message.Signals {
		fmt.Fprintf(&sb, " %s=%s", s.Name, strconv.FormatFloat(d.Values[s.Name], 'g', -1, 64))
	}
	for _, n := range notes {
		fmt.Fprintf(&sb, " [%s]", n)
	}
	sb.WriteByte('\n')
	_, err = io.WriteString(r.out, sb.String())
	return err
}

func (r *replayer) summary() pterm.TableData {
	names := make([]string, 0, len(r.stats))
	for n := range r.stats {
		names = append(names, n)
	}
	sort.Strings(names)
	rows := pterm.TableData{{"Message", "Frames", "Bad checksum", "Counter gaps", "Stale"}}
	for _, n := range names {
		st := r.stats[n]
		rows = append(rows, []string{n, strconv.Itoa(st.frames), strconv.Itoa(st.badChecksum), strconv.Itoa(st.gaps), strconv.Itoa(st.stale)})
	}
	return rows
}

func newReplayCmd(a *app) *cobra.Command {
	var (
		follow bool
		only   []string
	)
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode a candump log, checking checksums and counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := capture.NewParser(a.cfg.Ifaces...)
			r := newReplayer(a.cat, only, os.Stdout, a.logger)

			if follow {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				a.logger.Info().Str("path", args[0]).Msg("following capture")
				if err := capture.Follow(ctx, args[0], p, a.logger, r.handle); err != nil {
					return err
				}
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if err := capture.Read(f, p, r.handle); err != nil {
					return err
				}
			}

			if r.unknown > 0 {
				pterm.Info.Printfln("%d frames not in catalog %s", r.unknown, a.cat.Name())
			}
			return pterm.DefaultTable.WithHasHeader().WithData(r.summary()).Render()
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep reading as the file grows")
	cmd.Flags().StringSliceVar(&only, "only", nil, "print only these messages (statistics cover all)")
	return cmd
}
