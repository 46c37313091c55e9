// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package scenario hosts the registry of named, end-to-end scenarios that
// exercise internal/usbpacket and internal/transaction against a
// device-under-test, plus a minimal in-memory fixture standing in for the
// device-side firmware. The fixture only goes as far as the registered
// scenarios need; it is not a logic simulator.
package scenario

import (
	"usbsim/internal/linedriver"
	"usbsim/internal/symbol"
	"usbsim/internal/usbpacket"
)

// FixtureConfig seeds a Fixture's register state before a scenario runs,
// standing in for the address and endpoint-owner register writes a device's
// firmware makes at boot.
type FixtureConfig struct {
	// Addr is the device's initial USB address.
	Addr uint8
	// OutEnabled is a bitmask: bit i means OUT-direction endpoint i (endp 0
	// doubles as the control endpoint) accepts SETUP/OUT tokens and their
	// following DATA packet instead of NAKing them.
	OutEnabled uint16
	// Descriptor is the 18-byte device descriptor control GET_DESCRIPTOR
	// requests are answered with.
	Descriptor []byte
}

// ctrlPhase tracks a control transfer's stage on endpoint 0.
type ctrlPhase int

const (
	ctrlIdle ctrlPhase = iota
	ctrlDataIn
	ctrlAwaitingStatusOut
	ctrlStatusIn
)

type ctrlState struct {
	phase       ctrlPhase
	data        []byte
	toggle      usbpacket.DataKind
	pendingAddr *uint8
	ackArms     bool // true once a reply is sent and the next host ACK must advance state
}

type inSlot struct {
	toggle  usbpacket.DataKind
	data    []byte
	consume int
	armed   bool
}

type lastToken struct {
	valid bool
	kind  usbpacket.TokenKind
	endp  uint8
}

// Fixture is a scriptable linedriver.Device that decodes the host's
// outbound symbol stream packet-by-packet (reusing usbpacket.TryDecodeAny,
// since EOP is never bit-stuffed and unambiguously bounds every packet) and
// replies the way a minimal loopback/enumeration firmware would: NAK on a
// disabled endpoint, ACK+loopback-plus-one on an enabled bulk endpoint, and
// GET_DESCRIPTOR/SET_ADDRESS handling on the control endpoint.
type Fixture struct {
	addr       uint8
	outEnabled uint16
	descriptor []byte

	inSlots map[uint8]*inSlot
	ctrl    ctrlState
	last    lastToken

	frameActive bool
	frameSyms   []symbol.Symbol
	syncWindow  []symbol.Symbol

	pendingOut     []symbol.Symbol
	pendingI       int
	oe             bool
	attached       bool
	pendingAckEndp *uint8
}

// NewFixture returns a Fixture configured per cfg, already attached (the
// fixture skips simulating the attach-detect handshake; ResetAndAttach
// observes Attach() true immediately).
func NewFixture(cfg FixtureConfig) *Fixture {
	return &Fixture{
		addr:       cfg.Addr,
		outEnabled: cfg.OutEnabled,
		descriptor: cfg.Descriptor,
		inSlots:    make(map[uint8]*inSlot),
		attached:   true,
	}
}

var _ linedriver.Device = (*Fixture)(nil)

// Addr returns the device's current USB address (mutated by a completed
// SET_ADDRESS control transfer).
func (f *Fixture) Addr() uint8 { return f.addr }

// SetInputs implements linedriver.Device. Each call carries one symbol's
// worth of driven input lines; the fixture folds it into its framing state
// machine directly rather than waiting for Step, since Step carries no new
// information (one symbol is twenty identical edges as far as this fixture's
// input lines are concerned).
func (f *Fixture) SetInputs(jNotK, se0, rst bool) {
	if rst {
		f.resetFraming()
		return
	}
	sym := linesToSymbol(jNotK, se0)
	f.observe(sym)
}

// Step implements linedriver.Device; the fixture has no per-edge behavior.
func (f *Fixture) Step() {}

// Attach implements linedriver.Device.
func (f *Fixture) Attach() bool { return f.attached }

// OE implements linedriver.Device.
func (f *Fixture) OE() bool { return f.oe }

// Output implements linedriver.Device.
func (f *Fixture) Output() (jNotK, se0 bool) {
	if f.pendingI >= len(f.pendingOut) {
		f.oe = false
		return true, false
	}
	sym := f.pendingOut[f.pendingI]
	f.pendingI++
	if f.pendingI >= len(f.pendingOut) {
		f.oe = false
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

func linesToSymbol(jNotK, se0 bool) symbol.Symbol {
	if se0 {
		return symbol.SE0
	}
	if jNotK {
		return symbol.J
	}
	return symbol.K
}

func (f *Fixture) resetFraming() {
	f.frameActive = false
	f.frameSyms = nil
	f.syncWindow = nil
}

var syncPattern = [8]symbol.Symbol{symbol.K, symbol.J, symbol.K, symbol.J, symbol.K, symbol.J, symbol.K, symbol.K}

// observe folds one incoming symbol into the framing state machine,
// recognizing SYNC by an 8-symbol sliding window and EOP by its unambiguous
// SE0,SE0,J suffix (EOP is appended raw, never part of the NRZI/stuffed bit
// stream, so it cannot appear by coincidence inside a well-formed packet).
func (f *Fixture) observe(sym symbol.Symbol) {
	if !f.frameActive {
		f.syncWindow = append(f.syncWindow, sym)
		if len(f.syncWindow) > 8 {
			f.syncWindow = f.syncWindow[1:]
		}
		if len(f.syncWindow) == 8 && f.syncWindow[0] == syncPattern[0] && sameSyms(f.syncWindow, syncPattern[:]) {
			f.frameActive = true
			f.frameSyms = append([]symbol.Symbol(nil), f.syncWindow...)
			f.syncWindow = nil
		}
		return
	}

	f.frameSyms = append(f.frameSyms, sym)
	n := len(f.frameSyms)
	if n >= 3 && f.frameSyms[n-3] == symbol.SE0 && f.frameSyms[n-2] == symbol.SE0 && f.frameSyms[n-1] == symbol.J {
		stream := symbol.FromSymbols(f.frameSyms)
		f.frameActive = false
		f.frameSyms = nil
		if p, ok := usbpacket.TryDecodeAny(stream); ok {
			f.onPacket(p)
		}
	}
}

func sameSyms(a, b []symbol.Symbol) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *Fixture) queueReply(s *symbol.Stream) {
	f.pendingOut = s.Symbols()
	f.pendingI = 0
	f.oe = len(f.pendingOut) > 0
}

func (f *Fixture) replyACK() { f.queueReply(usbpacket.Encode(usbpacket.Handshake(usbpacket.ACK))) }
func (f *Fixture) replyNAK() { f.queueReply(usbpacket.Encode(usbpacket.Handshake(usbpacket.NAK))) }
func (f *Fixture) replyData(k usbpacket.DataKind, b []byte) {
	f.queueReply(usbpacket.Encode(usbpacket.Data(k, b)))
}

func (f *Fixture) outEnabledFor(endp uint8) bool {
	return f.outEnabled&(1<<endp) != 0
}

func (f *Fixture) onPacket(p usbpacket.Packet) {
	switch p.Kind {
	case usbpacket.KindToken:
		// A token addressed to another device gets no reaction at all, not
		// even a NAK; the bus stays silent and the host times out.
		if p.Addr != f.addr {
			f.last = lastToken{}
			return
		}
		f.last = lastToken{valid: true, kind: p.TokenKind, endp: p.Endp}
		if p.TokenKind == usbpacket.IN {
			f.handleIN(p.Endp)
		}
	case usbpacket.KindData:
		if !f.last.valid {
			return
		}
		switch f.last.kind {
		case usbpacket.SETUP:
			f.handleSetupData(p.Payload)
		case usbpacket.OUT:
			f.handleOutData(f.last.endp, p.Payload)
		}
		f.last.valid = false
	case usbpacket.KindHandshake:
		if p.HandshakeKind == usbpacket.ACK {
			f.handleHostAck()
		}
		f.last.valid = false
	}
}

// handleSetupData processes the 8-byte SETUP DATA0 stage. On the control
// endpoint being disabled it NAKs exactly as a bulk endpoint would;
// otherwise it ACKs and, for the two standard requests the registered
// scenarios exercise, arms the matching data/status stage.
func (f *Fixture) handleSetupData(payload []byte) {
	if !f.outEnabledFor(0) {
		f.replyNAK()
		f.ctrl = ctrlState{}
		return
	}
	f.replyACK()

	if len(payload) != 8 {
		f.ctrl = ctrlState{}
		return
	}
	bmRequestType := payload[0]
	bRequest := payload[1]
	wValue := uint16(payload[2]) | uint16(payload[3])<<8
	wLength := int(uint16(payload[6]) | uint16(payload[7])<<8)
	isIn := bmRequestType&0x80 != 0

	switch {
	case isIn && bRequest == 0x06: // GET_DESCRIPTOR
		data := f.descriptor
		if wLength < len(data) {
			data = data[:wLength]
		}
		f.ctrl = ctrlState{phase: ctrlDataIn, data: data, toggle: usbpacket.DATA1}
	case !isIn && bRequest == 0x05: // SET_ADDRESS
		addr := uint8(wValue & 0x7f)
		f.ctrl = ctrlState{phase: ctrlStatusIn, pendingAddr: &addr}
	default:
		f.ctrl = ctrlState{}
	}
}

// handleOutData processes a DATA packet following an OUT token. On endpoint
// 0 while a control transfer's IN data stage has just finished, this is the
// zero-length DATA1 status stage closing the transfer; otherwise it is
// generic bulk loopback-plus-one data, gated by outEnabled exactly like the
// control endpoint.
func (f *Fixture) handleOutData(endp uint8, payload []byte) {
	if endp == 0 && f.ctrl.phase == ctrlAwaitingStatusOut && len(payload) == 0 {
		f.replyACK()
		f.ctrl = ctrlState{}
		return
	}

	if !f.outEnabledFor(endp) {
		f.replyNAK()
		return
	}
	f.replyACK()

	out := make([]byte, len(payload))
	for i, b := range payload {
		out[i] = b + 1
	}
	f.inSlots[endp+1] = &inSlot{toggle: usbpacket.DATA0, data: out}
}

// handleIN answers an IN token: the control endpoint's status/data stage if
// one is in progress, otherwise whatever bulk reply is queued for endp, or
// NAK.
func (f *Fixture) handleIN(endp uint8) {
	if endp == 0 && f.ctrl.phase == ctrlStatusIn {
		f.replyData(usbpacket.DATA1, nil)
		f.ctrl.ackArms = true
		e := endp
		f.pendingAckEndp = &e
		return
	}
	if endp == 0 && f.ctrl.phase == ctrlDataIn {
		chunk := f.ctrl.data
		if len(chunk) > 8 {
			chunk = chunk[:8]
		}
		f.replyData(f.ctrl.toggle, chunk)
		f.ctrl.ackArms = true
		e := endp
		f.pendingAckEndp = &e
		return
	}

	slot := f.inSlots[endp]
	if slot == nil || (slot.consume == 0 && len(slot.data) == 0 && !slot.armed) {
		f.replyNAK()
		return
	}
	if !slot.armed {
		chunk := slot.data
		if len(chunk) > 8 {
			chunk = chunk[:8]
		}
		slot.consume = len(chunk)
		slot.armed = true
	}
	chunk := slot.data[:slot.consume]
	f.replyData(slot.toggle, chunk)
	e := endp
	f.pendingAckEndp = &e
}

// handleHostAck advances whichever IN reply is awaiting the host's ACK:
// the control endpoint's data/status stage, or a bulk endpoint's queued
// reply.
func (f *Fixture) handleHostAck() {
	if f.pendingAckEndp == nil {
		return
	}
	endp := *f.pendingAckEndp
	f.pendingAckEndp = nil

	if endp == 0 && f.ctrl.ackArms {
		f.ctrl.ackArms = false
		switch f.ctrl.phase {
		case ctrlStatusIn:
			if f.ctrl.pendingAddr != nil {
				f.addr = *f.ctrl.pendingAddr
			}
			f.ctrl = ctrlState{}
		case ctrlDataIn:
			sent := len(f.ctrl.data)
			if sent > 8 {
				sent = 8
			}
			f.ctrl.data = f.ctrl.data[sent:]
			f.ctrl.toggle = f.ctrl.toggle.Toggle()
			if len(f.ctrl.data) == 0 {
				f.ctrl.phase = ctrlAwaitingStatusOut
			}
		}
		return
	}

	slot := f.inSlots[endp]
	if slot == nil {
		return
	}
	slot.data = slot.data[slot.consume:]
	slot.toggle = slot.toggle.Toggle()
	slot.consume = 0
	slot.armed = false
	if len(slot.data) == 0 {
		delete(f.inSlots, endp)
	}
}
