// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package usbpacket

import (
	"fmt"

	"usbsim/internal/bitvec"
	"usbsim/internal/symbol"
)

// Encode converts a Packet into the line-symbol stream that represents it on
// the wire: SYNC, PID, payload (if any), CRC (if any), EOP.
func Encode(p Packet) *symbol.Stream {
	switch p.Kind {
	case KindToken:
		return encodeToken(p)
	case KindData:
		return encodeData(p)
	case KindHandshake:
		return encodeHandshake(p)
	default:
		panic("usbpacket: Encode called on zero-value Packet")
	}
}

func encodeToken(p Packet) *symbol.Stream {
	if p.Addr > 0x7f {
		panic(fmt.Sprintf("usbpacket: token address %d exceeds 7 bits", p.Addr))
	}
	if p.Endp > 0xf {
		panic(fmt.Sprintf("usbpacket: token endpoint %d exceeds 4 bits", p.Endp))
	}

	addrBits := bitvec.FromUint(uint32(p.Addr), 7)
	endpBits := bitvec.FromUint(uint32(p.Endp), 4)

	payload := bitvec.New()
	payload.AppendVec(addrBits)
	payload.AppendVec(endpBits)

	crcBits := bitvec.FromUint(payload.CalcCRC5(), 5).Reverse()

	packet := bitvec.FromLiteral(syncLiteral)
	packet.AppendVec(pidBits(tokenPIDName(p.TokenKind)))
	packet.AppendVec(payload)
	packet.AppendVec(crcBits)

	stream := symbol.FromBits(packet)
	stream.AppendEOP()
	return stream
}

func encodeData(p Packet) *symbol.Stream {
	payload := bitvec.New()
	for _, b := range p.Payload {
		payload.AppendVec(bitvec.FromUint(uint32(b), 8))
	}

	crcBits := bitvec.FromUint(payload.CalcCRC16(), 16).Reverse()

	packet := bitvec.FromLiteral(syncLiteral)
	packet.AppendVec(pidBits(dataPIDName(p.DataKind)))
	packet.AppendVec(payload)
	packet.AppendVec(crcBits)

	stream := symbol.FromBits(packet)
	stream.AppendEOP()
	return stream
}

func encodeHandshake(p Packet) *symbol.Stream {
	packet := bitvec.FromLiteral(syncLiteral)
	packet.AppendVec(pidBits(handshakePIDName(p.HandshakeKind)))

	stream := symbol.FromBits(packet)
	stream.AppendEOP()
	return stream
}

// minHandshakeSymbols is the floor for a valid received stream: an 8-symbol
// SYNC, at least 8 symbols of PID (before any stuffing, which only grows the
// stream), and the 3-symbol EOP.
const minHandshakeSymbols = 8 + 8 + 3

// TryDecode attempts to decode a received symbol.Stream into a typed Packet.
// It tries handshakes and data packets, in that order (tokens are
// host-to-device only; the host-side receiver path accepts only
// handshakes/data). It returns (Packet{}, false) on any decode failure,
// including a CRC16 mismatch; use TryDecodeErr to distinguish the reason.
func TryDecode(s *symbol.Stream) (Packet, bool) {
	p, err := TryDecodeErr(s)
	return p, err == nil
}

// TryDecodeErr is TryDecode with the failure reason preserved. Callers that
// only care whether a response arrived can ignore the error and treat any
// non-nil value as "no response".
func TryDecodeErr(s *symbol.Stream) (Packet, error) {
	if s.HasSE1() {
		return Packet{}, ErrMalformedStream
	}
	if s.Len() < minHandshakeSymbols {
		return Packet{}, ErrMalformedStream
	}
	if !s.StartsWithSync() || !s.EndsWithEOP() {
		return Packet{}, ErrMalformedStream
	}

	s.StripEOP()
	bits, ok := s.ToBitsStrict()
	if !ok {
		return Packet{}, ErrMalformedStream
	}

	if bits.Len() < 16 {
		return Packet{}, ErrMalformedStream
	}
	pid := bits.Slice(8, 16)

	for _, kind := range []HandshakeKind{ACK, NAK} {
		if pid.Equal(pidBits(handshakePIDName(kind))) {
			return Handshake(kind), nil
		}
	}
	for _, kind := range []DataKind{DATA0, DATA1} {
		if pid.Equal(pidBits(dataPIDName(kind))) {
			return decodeDataBodyErr(kind, bits)
		}
	}
	return Packet{}, ErrUnknownPID
}

// TryDecodeAny additionally tries the token PIDs, for device-role test
// doubles that must decode host-originated tokens rather than only
// handshakes and data.
func TryDecodeAny(s *symbol.Stream) (Packet, bool) {
	if s.HasSE1() {
		return Packet{}, false
	}
	if s.Len() < minHandshakeSymbols {
		return Packet{}, false
	}
	if !s.StartsWithSync() || !s.EndsWithEOP() {
		return Packet{}, false
	}

	s.StripEOP()
	bits, ok := s.ToBitsStrict()
	if !ok {
		return Packet{}, false
	}
	if bits.Len() < 16 {
		return Packet{}, false
	}
	pid := bits.Slice(8, 16)

	for _, kind := range []TokenKind{SETUP, OUT, IN} {
		if pid.Equal(pidBits(tokenPIDName(kind))) {
			return decodeTokenBody(kind, bits)
		}
	}
	for _, kind := range []HandshakeKind{ACK, NAK} {
		if pid.Equal(pidBits(handshakePIDName(kind))) {
			return Handshake(kind), true
		}
	}
	for _, kind := range []DataKind{DATA0, DATA1} {
		if pid.Equal(pidBits(dataPIDName(kind))) {
			data, err := decodeDataBodyErr(kind, bits)
			return data, err == nil
		}
	}
	return Packet{}, false
}

func decodeTokenBody(kind TokenKind, bits *bitvec.BitVec) (Packet, bool) {
	// SYNC(8) PID(8) ADDR(7) ENDP(4) CRC5(5), on the wire msb-first.
	if bits.Len() != 8+8+7+4+5 {
		return Packet{}, false
	}
	payload := bits.Slice(16, 27)
	addr := payload.ExtractUint(0, 7)
	endp := payload.ExtractUint(7, 11)

	crcWire := bits.Slice(27, 32).Reverse()
	if crcWire.ExtractUint(0, 5) != payload.CalcCRC5() {
		return Packet{}, false
	}
	return Token(kind, uint8(addr), uint8(endp)), true
}

func decodeDataBodyErr(kind DataKind, bits *bitvec.BitVec) (Packet, error) {
	total := bits.Len()
	if total < 16+16 {
		return Packet{}, ErrMalformedStream
	}
	payloadBitLen := total - 16 - 16
	if payloadBitLen%8 != 0 {
		return Packet{}, ErrMalformedStream
	}

	payload := bits.Slice(16, 16+payloadBitLen)
	nBytes := payloadBitLen / 8
	out := make([]byte, nBytes)
	for i := 0; i < nBytes; i++ {
		out[i] = byte(payload.ExtractUint(i*8, i*8+8))
	}

	crcWire := bits.Slice(16+payloadBitLen, total).Reverse()
	if crcWire.ExtractUint(0, 16) != payload.CalcCRC16() {
		return Packet{}, ErrCRCMismatch
	}

	return Data(kind, out), nil
}
