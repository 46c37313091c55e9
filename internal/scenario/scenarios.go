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

	"usbsim/internal/symbol"
	"usbsim/internal/transaction"
	"usbsim/internal/usbpacket"
)

// defaultDescriptor is the 18-byte device descriptor the fixture answers
// GET_DESCRIPTOR(Device) with: a full-speed CDC-style device, 8-byte
// control endpoint, vendor 0x0483.
var defaultDescriptor = []byte{
	0x12, 0x01, 0x00, 0x02, 0x02, 0x02, 0x00, 0x08,
	0x83, 0x04, 0x40, 0x57, 0x00, 0x02, 0x01, 0x02, 0x03, 0x01,
}

func init() {
	Register(disabledEndpointNAK{})
	Register(loopbackPlusOne{})
	Register(getDeviceDescriptor{})
	Register(setAddress{})
	Register(bitStuffingRegression{})
	Register(eopDetectionFailure{})
}

// disabledEndpointNAK checks that every token directed at a disabled
// endpoint 0 gets a NAK, whether it arrives by SETUP, IN or OUT.
type disabledEndpointNAK struct{}

func (disabledEndpointNAK) Name() string { return "s1-nak-disabled-endpoint" }

func (disabledEndpointNAK) FixtureConfig() FixtureConfig {
	return FixtureConfig{Addr: 0, OutEnabled: 0x0}
}

func (disabledEndpointNAK) Run(h *Harness) error {
	payload := []byte{0x23, 0x64, 0x54, 0xaf, 0xca, 0xfe}

	h.sendToken(usbpacket.SETUP, 0, 0)
	h.sendData(usbpacket.DATA0, payload)
	resp, ok := h.receive()
	if err := assertf(ok && resp.Kind == usbpacket.KindHandshake && resp.HandshakeKind == usbpacket.NAK,
		"SETUP+DATA0 to disabled endpoint: want NAK, got %v (ok=%v)", resp, ok); err != nil {
		return err
	}

	h.sendToken(usbpacket.IN, 0, 0)
	resp, ok = h.receive()
	if err := assertf(ok && resp.Kind == usbpacket.KindHandshake && resp.HandshakeKind == usbpacket.NAK,
		"IN to disabled endpoint: want NAK, got %v (ok=%v)", resp, ok); err != nil {
		return err
	}

	h.sendToken(usbpacket.OUT, 0, 0)
	h.sendData(usbpacket.DATA0, payload)
	resp, ok = h.receive()
	return assertf(ok && resp.Kind == usbpacket.KindHandshake && resp.HandshakeKind == usbpacket.NAK,
		"OUT+DATA0 to disabled endpoint: want NAK, got %v (ok=%v)", resp, ok)
}

// loopbackPlusOne checks that an enabled OUT endpoint ACKs, the device
// loops the payload back on endpoint+1 with each byte incremented, and a
// second IN against the now-drained endpoint NAKs.
type loopbackPlusOne struct{}

func (loopbackPlusOne) Name() string { return "s2-loopback-plus-one" }

func (loopbackPlusOne) FixtureConfig() FixtureConfig {
	return FixtureConfig{Addr: 0, OutEnabled: 0x1}
}

func (loopbackPlusOne) Run(h *Harness) error {
	payload := []byte{0x23, 0x64, 0x54, 0xaf, 0xca, 0xfe}
	want := []byte{0x24, 0x65, 0x55, 0xb0, 0xcb, 0xff}

	h.sendToken(usbpacket.OUT, 0, 0)
	h.sendData(usbpacket.DATA0, payload)
	resp, ok := h.receive()
	if err := assertf(ok && resp.Kind == usbpacket.KindHandshake && resp.HandshakeKind == usbpacket.ACK,
		"OUT+DATA0 to enabled endpoint: want ACK, got %v (ok=%v)", resp, ok); err != nil {
		return err
	}

	h.sendToken(usbpacket.IN, 0, 1)
	for i := 0; i < 8; i++ {
		resp, ok = h.receive()
		if ok && resp.Kind == usbpacket.KindHandshake && resp.HandshakeKind == usbpacket.NAK {
			h.sendToken(usbpacket.IN, 0, 1)
			continue
		}
		break
	}
	if err := assertf(ok && resp.Kind == usbpacket.KindData && resp.DataKind == usbpacket.DATA0,
		"IN(0,1): want DATA0, got %v (ok=%v)", resp, ok); err != nil {
		return err
	}
	if err := assertf(bytesEqual(resp.Payload, want),
		"IN(0,1) payload: want % x, got % x", want, resp.Payload); err != nil {
		return err
	}
	h.sendHandshake(usbpacket.ACK)

	h.sendToken(usbpacket.IN, 0, 1)
	resp, ok = h.receive()
	return assertf(ok && resp.Kind == usbpacket.KindHandshake && resp.HandshakeKind == usbpacket.NAK,
		"second IN(0,1): want NAK, got %v (ok=%v)", resp, ok)
}

// getDeviceDescriptor runs a standard GET_DESCRIPTOR control transfer
// returning the 18-byte device descriptor across three IN packets
// (8, 8, 2 bytes) with alternating data toggle.
type getDeviceDescriptor struct{}

func (getDeviceDescriptor) Name() string { return "s3-get-device-descriptor" }

func (getDeviceDescriptor) FixtureConfig() FixtureConfig {
	return FixtureConfig{Addr: 0, OutEnabled: 0x1, Descriptor: defaultDescriptor}
}

func (getDeviceDescriptor) Run(h *Harness) error {
	buf := make([]byte, 64)
	setup := transaction.SetupFields{BmRequestType: 0x80, BRequest: 0x06, WValue: 0x0100, WIndex: 0x0000, WLength: 0x0040}
	n, err := transaction.ControlTransfer(h.LineDriver, 0, setup, buf, nil)
	if err != nil {
		return fmt.Errorf("control transfer: %w", err)
	}
	if err := assertf(n == 18, "transferred length: want 18, got %d", n); err != nil {
		return err
	}
	if err := assertf(buf[0] == 18, "buf[0] (bLength): want 18, got %d", buf[0]); err != nil {
		return err
	}
	if err := assertf(buf[1] == 0x01, "buf[1] (bDescriptorType): want 0x01, got 0x%02x", buf[1]); err != nil {
		return err
	}
	idVendor := uint16(buf[8]) | uint16(buf[9])<<8
	return assertf(idVendor == 0x0483, "idVendor: want 0x0483, got 0x%04x", idVendor)
}

// setAddress checks that a zero-data-stage SET_ADDRESS control transfer
// succeeds and the device subsequently answers requests addressed to the
// new address.
type setAddress struct{}

func (setAddress) Name() string { return "s4-set-address" }

func (setAddress) FixtureConfig() FixtureConfig {
	return FixtureConfig{Addr: 0, OutEnabled: 0x1, Descriptor: defaultDescriptor}
}

func (setAddress) Run(h *Harness) error {
	const newAddr = 27
	setup := transaction.SetupFields{BmRequestType: 0x00, BRequest: 0x05, WValue: newAddr, WIndex: 0, WLength: 0}
	n, err := transaction.ControlTransfer(h.LineDriver, 0, setup, nil, nil)
	if err != nil {
		return fmt.Errorf("control transfer: %w", err)
	}
	if err := assertf(n == 0, "SET_ADDRESS transferred length: want 0, got %d", n); err != nil {
		return err
	}

	if fx, ok := h.Device.(*Fixture); ok {
		if err := assertf(fx.Addr() == newAddr, "device address after SET_ADDRESS: want %d, got %d", newAddr, fx.Addr()); err != nil {
			return err
		}
	}

	// The device must answer at its new address.
	buf := make([]byte, 64)
	getDesc := transaction.SetupFields{BmRequestType: 0x80, BRequest: 0x06, WValue: 0x0100, WIndex: 0x0000, WLength: 0x0040}
	n, err = transaction.ControlTransfer(h.LineDriver, newAddr, getDesc, buf, nil)
	if err != nil {
		return fmt.Errorf("control transfer to new address %d: %w", newAddr, err)
	}
	return assertf(n == 18, "transfer to new address: want 18 bytes, got %d", n)
}

// bitStuffingRegression checks that an all-ones payload forces at least
// eight stuff transitions and the resulting stream still decodes back to
// the original payload.
type bitStuffingRegression struct{}

func (bitStuffingRegression) Name() string { return "s5-bit-stuffing-regression" }

func (bitStuffingRegression) FixtureConfig() FixtureConfig { return FixtureConfig{} }

func (bitStuffingRegression) Run(h *Harness) error {
	payload := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	pkt := usbpacket.Data(usbpacket.DATA0, payload)
	stream := usbpacket.Encode(pkt)

	// Without any bit-stuffing, the wire carries exactly SYNC(8)+PID(8)+
	// payload(64)+CRC16(16)=96 bits as 96 symbols, plus the 3-symbol EOP.
	// Every stuffed "0" inserted by FromBits shows up as one extra symbol.
	unstuffedSymbols := 8 + 8 + len(payload)*8 + 16 + 3
	stuffCount := stream.Len() - unstuffedSymbols
	if err := assertf(stuffCount >= 8, "stuff transitions: want >= 8, got %d", stuffCount); err != nil {
		return err
	}

	decoded, ok := usbpacket.TryDecode(stream)
	if err := assertf(ok && decoded.Kind == usbpacket.KindData && decoded.DataKind == usbpacket.DATA0,
		"decode: want DATA0, ok=%v got %v", ok, decoded); err != nil {
		return err
	}
	return assertf(bytesEqual(decoded.Payload, payload), "decoded payload: want % x, got % x", payload, decoded.Payload)
}

// eopDetectionFailure checks that a symbol stream missing its terminal J
// yields a decode failure.
type eopDetectionFailure struct{}

func (eopDetectionFailure) Name() string { return "s6-eop-detection" }

func (eopDetectionFailure) FixtureConfig() FixtureConfig { return FixtureConfig{} }

func (eopDetectionFailure) Run(*Harness) error {
	pkt := usbpacket.Handshake(usbpacket.ACK)
	stream := usbpacket.Encode(pkt)
	truncated := symbol.FromSymbols(stream.Symbols()[:stream.Len()-1])

	_, ok := usbpacket.TryDecode(truncated)
	return assertf(!ok, "decode of EOP-truncated stream: want failure, got success")
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
