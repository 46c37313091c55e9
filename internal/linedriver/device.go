// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package linedriver

// The device-under-test itself — a logic simulator with input lines
// j_not_k/se0/rst and output lines oe/j_not_k/se0/attach — is an external
// collaborator. This package specifies and consumes that contract via the
// Device interface; it does not implement the simulator.

// Device is the interface contract for the device-under-test: a logic
// simulator clocked one tick at a time, with USB 1.x line-level inputs and
// outputs.
type Device interface {
	// SetInputs drives the device's input lines; they hold for every
	// following Step until the next SetInputs.
	SetInputs(jNotK, se0, rst bool)

	// Step advances the simulator by one clock edge, rising or falling. One
	// logical symbol equals ten device clk cycles, i.e. twenty Steps.
	Step()

	// OE reports the device's output-enable line: high while the device is
	// driving the bus.
	OE() bool

	// Output returns the device's output lines (valid only while OE is
	// high).
	Output() (jNotK, se0 bool)

	// Attach reports the device's attach line, asserted once the device has
	// completed its own power-on/reset sequence.
	Attach() bool
}
