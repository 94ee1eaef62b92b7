// cmd/rackmond/bus.go
package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/rackmond/internal/config"
	"github.com/tamzrod/rackmond/internal/device"
	"github.com/tamzrod/rackmond/internal/engine"
)

// buildBus opens the serial device of b and wraps it in its engine.
// The engine owns the device from here on.
func buildBus(b config.BusConfig, logger zerolog.Logger) (*engine.Engine, error) {
	kind, err := device.ParseKind(b.Type)
	if err != nil {
		return nil, err
	}

	dev, err := device.New(device.Config{
		Path:     b.Device,
		Kind:     kind,
		Baudrate: b.Baudrate,
		Parity:   b.Parity,
		StopBits: b.StopBits,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := dev.Open(); err != nil {
		return nil, err
	}

	e, err := engine.New(dev, engine.Config{
		Name:     b.ID,
		Baudrate: b.Baudrate,
		Timeout:  time.Duration(b.TimeoutMs) * time.Millisecond,
		MinDelay: time.Duration(b.MinDelayMs) * time.Millisecond,
		Ignored:  b.IgnoredAddresses,
	}, logger)
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("bus %q: %w", b.ID, err)
	}
	return e, nil
}
