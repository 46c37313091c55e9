// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package scenario

import (
	"fmt"
	"sort"

	"usbsim/internal/linedriver"
	"usbsim/internal/symbol"
	"usbsim/internal/trace"
	"usbsim/internal/usbpacket"
)

// Harness bundles everything a Scenario needs to drive a transaction: the
// line driver, the device it clocks, and an optional trace sink. Scenarios
// receive it explicitly rather than reaching for a process-wide simulator
// handle.
type Harness struct {
	LineDriver *linedriver.LineDriver
	Device     linedriver.Device
	Trace      trace.Sink
}

// Scenario is a named, self-contained check driven against a Harness.
// Scenarios register themselves by name in an in-process registry instead
// of being located in a shared build artifact by dlopen/dlsym.
type Scenario interface {
	Name() string
	// FixtureConfig returns the device register state this scenario needs
	// in place before it runs.
	FixtureConfig() FixtureConfig
	Run(h *Harness) error
}

// Execute looks up name, builds a fresh Fixture per its FixtureConfig and a
// LineDriver wired to trace, resets/attaches the device, and runs the
// scenario.
func Execute(name string, tr trace.Sink) error {
	s, ok := Get(name)
	if !ok {
		return fmt.Errorf("scenario: unknown scenario %q", name)
	}

	fx := NewFixture(s.FixtureConfig())
	traceFn := func(sym symbol.Symbol) {
		if tr != nil {
			tr.Symbol(sym)
		}
	}
	ld := linedriver.New(fx, traceFn)
	if !ld.ResetAndAttach() {
		return fmt.Errorf("scenario %q: device never attached", name)
	}

	h := &Harness{LineDriver: ld, Device: fx, Trace: tr}
	return s.Run(h)
}

type registry struct {
	scenarios map[string]Scenario
}

var reg = registry{scenarios: make(map[string]Scenario)}

// Register adds s to the in-process registry. It panics on a duplicate
// name, since that is a programming error (two scenarios registered under
// the same name), not a runtime condition callers should handle.
func Register(s Scenario) {
	if _, exists := reg.scenarios[s.Name()]; exists {
		panic(fmt.Sprintf("scenario: duplicate registration for %q", s.Name()))
	}
	reg.scenarios[s.Name()] = s
}

// Get looks up a registered scenario by name.
func Get(name string) (Scenario, bool) {
	s, ok := reg.scenarios[name]
	return s, ok
}

// Names returns every registered scenario name, sorted.
func Names() []string {
	names := make([]string, 0, len(reg.scenarios))
	for name := range reg.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sendToken clocks a single token packet onto the bus.
func (h *Harness) sendToken(kind usbpacket.TokenKind, addr, endp uint8) {
	h.LineDriver.ClockSymbols(usbpacket.Encode(usbpacket.Token(kind, addr, endp)))
}

// sendData clocks a single data packet onto the bus.
func (h *Harness) sendData(kind usbpacket.DataKind, payload []byte) {
	h.LineDriver.ClockSymbols(usbpacket.Encode(usbpacket.Data(kind, payload)))
}

// sendHandshake clocks a single handshake packet onto the bus.
func (h *Harness) sendHandshake(kind usbpacket.HandshakeKind) {
	h.LineDriver.ClockSymbols(usbpacket.Encode(usbpacket.Handshake(kind)))
}

// receive drives idle and decodes whatever the device replies with, if
// anything.
func (h *Harness) receive() (usbpacket.Packet, bool) {
	s, ok := h.LineDriver.TryReceive(0)
	if !ok {
		return usbpacket.Packet{}, false
	}
	return usbpacket.TryDecode(s)
}

// assertf is a scenario's lightweight assertion helper: a failure is
// reported as an error, not a panic, so cmd/usbsim controls the exit path.
func assertf(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return fmt.Errorf(format, args...)
}
