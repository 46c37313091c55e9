// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package simdevice provides an in-memory linedriver.Device test double. It
// is not a logic simulator: it scripts attach timing and canned output
// symbols so internal/linedriver can be tested without a real
// device-under-test.
package simdevice

import "usbsim/internal/symbol"

// Device is a scriptable linedriver.Device. The zero value attaches
// immediately and never drives the bus; configure it with New and
// QueueReply before use.
type Device struct {
	attachAfterSteps int
	stepsSinceReset  int
	resetting        bool

	inputs   InputSample
	inputLog []InputSample

	pending  []symbol.Symbol
	pendingI int
	oe       bool
}

// InputSample records one Step's worth of driven input lines, for test
// assertions on what a LineDriver actually clocked onto the bus.
type InputSample struct {
	JNotK, SE0, Rst bool
}

// New returns a Device that attaches after attachAfterSteps calls to Step
// following a reset pulse (0 means attach on the very first post-reset
// step).
func New(attachAfterSteps int) *Device {
	return &Device{attachAfterSteps: attachAfterSteps}
}

// SetInputs implements linedriver.Device.
func (d *Device) SetInputs(jNotK, se0, rst bool) {
	d.inputs = InputSample{JNotK: jNotK, SE0: se0, Rst: rst}
	if rst {
		d.resetting = true
		d.stepsSinceReset = 0
	} else if d.resetting {
		d.resetting = false
	}
}

// Step implements linedriver.Device. It records the input lines held during
// this edge and advances attach timing; queued reply symbols are fed out by
// Output, not by Step.
func (d *Device) Step() {
	d.inputLog = append(d.inputLog, d.inputs)
	if !d.resetting {
		d.stepsSinceReset++
	}
}

// Attach implements linedriver.Device.
func (d *Device) Attach() bool {
	return !d.resetting && d.stepsSinceReset > d.attachAfterSteps
}

// OE implements linedriver.Device.
func (d *Device) OE() bool {
	return d.oe
}

// Output implements linedriver.Device. Each call consumes one symbol of the
// queued reply, so pair QueueReply with a driver loop that calls Output once
// per symbol-time, matching LineDriver's own sampling cadence.
func (d *Device) Output() (jNotK, se0 bool) {
	if d.pendingI >= len(d.pending) {
		d.oe = false
		return true, false
	}
	sym := d.pending[d.pendingI]
	d.pendingI++
	if d.pendingI >= len(d.pending) {
		d.oe = false
	}
	switch sym {
	case symbol.SE0:
		return false, true
	case symbol.K:
		return false, false
	default:
		return true, false
	}
}

// QueueReply arms the device to drive OE and emit syms, one per call to
// Output, starting on the very next sample.
func (d *Device) QueueReply(syms []symbol.Symbol) {
	d.pending = syms
	d.pendingI = 0
	d.oe = len(syms) > 0
}

// InputLog returns the input lines recorded at every Step so far, one
// sample per Step.
func (d *Device) InputLog() []InputSample {
	return d.inputLog
}
