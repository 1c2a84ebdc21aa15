//go:build linux

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pbassut/canbus"
	"github.com/pbassut/canbus/fca"
)

func runLoop(ctx context.Context, a *app) error {
	asm, err := fca.NewAssembler(a.cat, a.params)
	if err != nil {
		return err
	}

	buses := make(map[uint8]canbus.Bus, len(a.cfg.Ifaces))
	closeAll := func() {
		for _, b := range buses {
			b.Close()
		}
	}
	for i, name := range a.cfg.Ifaces {
		if a.cfg.LinkUp {
			if err := linkUp(name); err != nil {
				closeAll()
				return err
			}
		}
		b, err := canbus.DialSocketCAN(name, uint8(i))
		if err != nil {
			closeAll()
			return fmt.Errorf("open %s: %w", name, err)
		}
		buses[uint8(i)] = b
		a.logger.Info().Str("iface", name).Int("bus", i).Msg("interface opened")
	}

	h := canbus.NewHarness(buses)
	defer h.Close()
	var bus canbus.Bus = h
	if a.cfg.LogFrames {
		bus = canbus.NewLoggedBus(h, a.logger, zerolog.DebugLevel, canbus.LogAll, a.cat.Filter())
	}

	loop := fca.NewLoop(bus, asm, benchLaw(a.cfg.Steer),
		fca.WithInterval(a.cfg.Interval),
		fca.WithLogger(a.logger),
		fca.WithTickHook(tickLogger(a)),
	)
	return loop.Run(ctx)
}

func linkUp(name string) error {
	up, err := canbus.IsInterfaceUp(name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if up {
		return nil
	}
	if err := canbus.SetInterfaceUp(name); err != nil {
		return fmt.Errorf("%s: %w", name, canbus.RequireRootOrCapNetAdmin(err))
	}
	return nil
}
