// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package linedriver

import "usbsim/internal/symbol"

// cyclesPerSymbol and edgesPerCycle together give the fixed "one logical
// symbol equals ten device clk cycles" relationship: ten full clock ticks,
// i.e. ten rising and ten falling edges.
const (
	cyclesPerSymbol = 10
	edgesPerCycle   = 2
	edgesPerSymbol  = cyclesPerSymbol * edgesPerCycle

	// defaultMaxIdleSymbols is TryReceive's default idle budget.
	defaultMaxIdleSymbols = 8

	// attachPollBudget bounds reset_and_attach's wait for the device's
	// attach line; it only protects against a device that never attaches.
	attachPollBudget = 4096

	// postAttachIdleSymbols is the small fixed number of additional idle
	// symbols reset_and_attach drives once attach is observed, letting the
	// device settle into a quiescent post-attach state.
	postAttachIdleSymbols = 4
)

// TraceFunc receives every symbol actually clocked onto the bus, in order.
// It is the hook a trace.Sink wires into; LineDriver works fine with a nil
// TraceFunc.
type TraceFunc func(sym symbol.Symbol)

// LineDriver clocks a Device one symbol at a time and reassembles its
// tri-stated output into received symbol streams.
type LineDriver struct {
	dev   Device
	trace TraceFunc
}

// New returns a LineDriver driving dev. trace may be nil.
func New(dev Device, trace TraceFunc) *LineDriver {
	return &LineDriver{dev: dev, trace: trace}
}

func symbolToLines(sym symbol.Symbol) (jNotK, se0 bool) {
	switch sym {
	case symbol.J:
		return true, false
	case symbol.K:
		return false, false
	case symbol.SE0:
		return false, true
	default:
		// SE1 is never driven outbound; callers that attempt to clock it
		// have a programming error.
		panic("linedriver: SE1 is not a valid outbound symbol")
	}
}

func linesToSymbol(jNotK, se0 bool) symbol.Symbol {
	if se0 {
		return symbol.SE0
	}
	if jNotK {
		return symbol.J
	}
	return symbol.K
}

// ClockSymbol drives sym onto the device's input lines and advances the
// simulator by ten full clock ticks. The effect of ClockSymbol(X) is fully
// observed by the device before ClockSymbol(Y) begins.
func (l *LineDriver) ClockSymbol(sym symbol.Symbol) {
	jNotK, se0 := symbolToLines(sym)
	l.dev.SetInputs(jNotK, se0, false)
	for i := 0; i < edgesPerSymbol; i++ {
		l.dev.Step()
	}
	if l.trace != nil {
		l.trace(sym)
	}
}

// ClockSymbols clocks every symbol of s in order.
func (l *LineDriver) ClockSymbols(s *symbol.Stream) {
	for i := 0; i < s.Len(); i++ {
		l.ClockSymbol(s.At(i))
	}
}

// TryReceive drives idle J for up to maxIdleSymbols symbol-times, then, once
// the device asserts OE, samples its output lines every subsequent
// symbol-time for as long as OE stays asserted. It returns an empty stream
// (ok=false) if nothing was received or the received stream fails basic
// framing checks.
func (l *LineDriver) TryReceive(maxIdleSymbols int) (*symbol.Stream, bool) {
	if maxIdleSymbols <= 0 {
		maxIdleSymbols = defaultMaxIdleSymbols
	}

	var recv []symbol.Symbol
	i := 0
	for i < maxIdleSymbols || l.dev.OE() {
		l.clockIdleAndSample(&recv)
		i++
	}

	s := symbol.FromSymbols(recv)
	if s.Len() == 0 || !s.StartsWithSync() || !s.EndsWithEOP() {
		return symbol.New(), false
	}
	return s, true
}

// clockIdleAndSample clocks one idle J symbol-time, and if the device is
// driving the bus, appends the sampled output symbol to recv.
func (l *LineDriver) clockIdleAndSample(recv *[]symbol.Symbol) {
	l.dev.SetInputs(true, false, false)
	for i := 0; i < edgesPerSymbol; i++ {
		l.dev.Step()
	}
	if l.dev.OE() {
		jNotK, se0 := l.dev.Output()
		sym := linesToSymbol(jNotK, se0)
		*recv = append(*recv, sym)
		if l.trace != nil {
			l.trace(sym)
		}
	} else if l.trace != nil {
		l.trace(symbol.J)
	}
}

// ResetAndAttach pulses the device's reset line, releases it, drives idle J
// until the device raises attach, then drives a small fixed number of
// additional idle symbols so the device reaches a quiescent post-attach
// state.
func (l *LineDriver) ResetAndAttach() bool {
	l.dev.SetInputs(true, false, true)
	for i := 0; i < edgesPerSymbol; i++ {
		l.dev.Step()
	}

	attached := false
	for i := 0; i < attachPollBudget; i++ {
		l.dev.SetInputs(true, false, false)
		for j := 0; j < edgesPerSymbol; j++ {
			l.dev.Step()
		}
		if l.dev.Attach() {
			attached = true
			break
		}
	}
	if !attached {
		return false
	}

	for i := 0; i < postAttachIdleSymbols; i++ {
		l.dev.SetInputs(true, false, false)
		for j := 0; j < edgesPerSymbol; j++ {
			l.dev.Step()
		}
	}
	return true
}
