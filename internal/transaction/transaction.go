// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package transaction implements control-transfer sequencing (SETUP/DATA/
// STATUS) on top of internal/linedriver and internal/usbpacket.
package transaction

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"usbsim/internal/linedriver"
	"usbsim/internal/usberr"
	"usbsim/internal/usbpacket"
)

const (
	// DefaultTimeout bounds the ACK/data-toggle retry loops.
	DefaultTimeout = 8

	// DefaultNAKRetryCap bounds retries on an explicit NAK handshake. It
	// keeps a faulted device from hanging a run while still allowing far
	// more NAKs than the general response timeout does.
	DefaultNAKRetryCap = 256

	// MaxPacketSize is the low-speed control endpoint's max packet size; a
	// short packet below this ends the IN data stage early.
	MaxPacketSize = 8

	// SetupPacketLength is the fixed size of a SETUP stage's DATA0 payload.
	SetupPacketLength = 8
)

// SetupFields is the eight-byte USB SETUP packet.
type SetupFields struct {
	BmRequestType byte
	BRequest      byte
	WValue        uint16
	WIndex        uint16
	WLength       uint16
}

// Bytes packs the fields into the wire's lsb-first byte layout.
func (s SetupFields) Bytes() []byte {
	return []byte{
		s.BmRequestType,
		s.BRequest,
		byte(s.WValue), byte(s.WValue >> 8),
		byte(s.WIndex), byte(s.WIndex >> 8),
		byte(s.WLength), byte(s.WLength >> 8),
	}
}

// isInDirection reports whether bmRequestType's direction bit (0x80) marks
// this as a device-to-host transfer.
func (s SetupFields) isInDirection() bool {
	return s.BmRequestType&0x80 != 0
}

// Progress optionally reports control-transfer progress through an mpb bar;
// a nil Progress disables reporting.
type Progress struct {
	bar *mpb.Bar
}

// NewProgress creates an mpb progress bar tracking wLength bytes of a
// control transfer's data stage.
func NewProgress(p *mpb.Progress, wLength int) *Progress {
	if p == nil || wLength <= 0 {
		return &Progress{}
	}
	bar := p.AddBar(int64(wLength),
		mpb.PrependDecorators(
			decor.Name("control transfer: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)
	return &Progress{bar: bar}
}

func (p *Progress) advance(n int) {
	if p != nil && p.bar != nil {
		p.bar.IncrBy(n)
	}
}

// Config tunes the retry budgets of a control transfer. The zero value
// means "use the defaults".
type Config struct {
	// Timeout bounds attempts that got no usable response at all.
	Timeout int
	// NAKRetryCap bounds retries on an explicit NAK handshake.
	NAKRetryCap int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.NAKRetryCap <= 0 {
		c.NAKRetryCap = DefaultNAKRetryCap
	}
	return c
}

// ControlTransfer drives a full control transfer over ld with default retry
// budgets and returns the number of bytes transferred into dataBuf. OUT
// transfers carry no data stage, only SETUP and status, so they always
// report zero.
func ControlTransfer(ld *linedriver.LineDriver, devAddr uint8, setup SetupFields, dataBuf []byte, progress *Progress) (int, error) {
	return ControlTransferCfg(ld, devAddr, setup, dataBuf, progress, Config{})
}

// ControlTransferCfg is ControlTransfer with explicit retry budgets.
func ControlTransferCfg(ld *linedriver.LineDriver, devAddr uint8, setup SetupFields, dataBuf []byte, progress *Progress, cfg Config) (int, error) {
	cfg = cfg.withDefaults()
	if err := setupStage(ld, devAddr, setup, cfg); err != nil {
		return 0, err
	}

	if setup.isInDirection() {
		n, err := dataInStage(ld, devAddr, setup, dataBuf, progress, cfg)
		if err != nil {
			return n, err
		}
		if err := statusOutStage(ld, devAddr, cfg); err != nil {
			return n, err
		}
		return n, nil
	}

	if err := statusInStage(ld, devAddr, cfg); err != nil {
		return 0, err
	}
	return 0, nil
}

// awaitACK polls the bus until the device ACKs, a budget runs out, or an
// unexpected packet kind arrives. NAK replies draw on their own, larger
// budget than silent or malformed responses do.
func awaitACK(ld *linedriver.LineDriver, cfg Config) bool {
	attempts, naks := 0, 0
	for attempts < cfg.Timeout && naks < cfg.NAKRetryCap {
		resp, ok := ld.TryReceive(0)
		if !ok {
			attempts++
			continue
		}
		p, err := usbpacket.TryDecodeErr(resp)
		if err != nil {
			attempts++
			continue
		}
		if p.Kind == usbpacket.KindHandshake && p.HandshakeKind == usbpacket.ACK {
			return true
		}
		if p.Kind == usbpacket.KindHandshake && p.HandshakeKind == usbpacket.NAK {
			naks++
			continue
		}
		attempts++
	}
	return false
}

func setupStage(ld *linedriver.LineDriver, devAddr uint8, setup SetupFields, cfg Config) error {
	ld.ClockSymbols(usbpacket.Encode(usbpacket.Token(usbpacket.SETUP, devAddr, 0)))
	ld.ClockSymbols(usbpacket.Encode(usbpacket.Data(usbpacket.DATA0, setup.Bytes())))

	if !awaitACK(ld, cfg) {
		return usberr.NoResponse("setup stage ACK")
	}
	return nil
}

// dataInStage reads IN data until wLength bytes have accumulated or a short
// packet arrives, alternating the expected data toggle starting at DATA1.
func dataInStage(ld *linedriver.LineDriver, devAddr uint8, setup SetupFields, dataBuf []byte, progress *Progress, cfg Config) (int, error) {
	toggle := usbpacket.DATA1
	total := 0
	wLength := int(setup.WLength)

	for total < wLength {
		payload, ok := readOneIN(ld, devAddr, toggle, cfg)
		if !ok {
			return total, usberr.NAKExhausted(cfg.NAKRetryCap)
		}

		n := copy(dataBuf[total:], payload)
		total += n
		progress.advance(n)

		ld.ClockSymbols(usbpacket.Encode(usbpacket.Handshake(usbpacket.ACK)))

		if len(payload) < MaxPacketSize {
			break
		}
		toggle = toggle.Toggle()
	}
	return total, nil
}

// readOneIN sends a single IN token and retries on NAK (and any other
// non-matching response) until the expected data toggle is observed or a
// budget is exhausted.
func readOneIN(ld *linedriver.LineDriver, devAddr uint8, want usbpacket.DataKind, cfg Config) ([]byte, bool) {
	attempts, naks := 0, 0
	for attempts < cfg.Timeout && naks < cfg.NAKRetryCap {
		ld.ClockSymbols(usbpacket.Encode(usbpacket.Token(usbpacket.IN, devAddr, 0)))
		resp, ok := ld.TryReceive(0)
		if !ok {
			attempts++
			continue
		}
		p, err := usbpacket.TryDecodeErr(resp)
		if err != nil {
			attempts++
			continue
		}
		if p.Kind == usbpacket.KindData && p.DataKind == want {
			return p.Payload, true
		}
		if p.Kind == usbpacket.KindHandshake && p.HandshakeKind == usbpacket.NAK {
			naks++
			continue
		}
		attempts++
	}
	return nil, false
}

// statusOutStage performs the zero-length DATA1 OUT status stage that
// closes a device-to-host control transfer.
func statusOutStage(ld *linedriver.LineDriver, devAddr uint8, cfg Config) error {
	ld.ClockSymbols(usbpacket.Encode(usbpacket.Token(usbpacket.OUT, devAddr, 0)))
	ld.ClockSymbols(usbpacket.Encode(usbpacket.Data(usbpacket.DATA1, nil)))

	if !awaitACK(ld, cfg) {
		return usberr.NoResponse("status OUT stage ACK")
	}
	return nil
}

// statusInStage performs the host-to-device control transfer's status
// stage: an IN expecting a zero-length DATA1, then an ACK.
func statusInStage(ld *linedriver.LineDriver, devAddr uint8, cfg Config) error {
	attempts, naks := 0, 0
	for attempts < cfg.Timeout && naks < cfg.NAKRetryCap {
		ld.ClockSymbols(usbpacket.Encode(usbpacket.Token(usbpacket.IN, devAddr, 0)))
		resp, ok := ld.TryReceive(0)
		if !ok {
			attempts++
			continue
		}
		p, err := usbpacket.TryDecodeErr(resp)
		if err != nil {
			attempts++
			continue
		}
		if p.Kind == usbpacket.KindData && p.DataKind == usbpacket.DATA1 && len(p.Payload) == 0 {
			ld.ClockSymbols(usbpacket.Encode(usbpacket.Handshake(usbpacket.ACK)))
			return nil
		}
		if p.Kind == usbpacket.KindHandshake && p.HandshakeKind == usbpacket.NAK {
			naks++
			continue
		}
		attempts++
	}
	return usberr.UnexpectedPID("status IN stage")
}
