package usbpacket

import (
	"bytes"
	"errors"
	"testing"

	"usbsim/internal/bitvec"
	"usbsim/internal/symbol"
)

func roundTripThroughWire(p Packet) (Packet, error) {
	s := Encode(p)
	s.StripEOP()
	s.AppendEOP()
	return TryDecodeErr(s)
}

func TestRoundTripAckNak(t *testing.T) {
	for _, kind := range []HandshakeKind{ACK, NAK} {
		got, err := roundTripThroughWire(Handshake(kind))
		if err != nil {
			t.Fatalf("%v: decode failed: %v", kind, err)
		}
		if !got.Equal(Handshake(kind)) {
			t.Errorf("%v: got %+v", kind, got)
		}
	}
}

func TestRoundTripData(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x23, 0x64, 0x54, 0xAF, 0xCA, 0xFE},
		bytes.Repeat([]byte{0xFF}, 64),
	}
	for _, kind := range []DataKind{DATA0, DATA1} {
		for _, payload := range payloads {
			want := Data(kind, payload)
			got, err := roundTripThroughWire(want)
			if err != nil {
				t.Fatalf("%v len=%d: decode failed: %v", kind, len(payload), err)
			}
			if !got.Equal(want) {
				t.Errorf("%v len=%d: got %+v want %+v", kind, len(payload), got, want)
			}
		}
	}
}

func TestEncodeFramingInvariant(t *testing.T) {
	packets := []Packet{
		Handshake(ACK),
		Handshake(NAK),
		Data(DATA0, []byte{1, 2, 3}),
		Data(DATA1, nil),
		Token(SETUP, 0, 0),
		Token(OUT, 0x3A, 0xA),
		Token(IN, 127, 15),
	}
	for _, p := range packets {
		s := Encode(p)
		if !s.StartsWithSync() {
			t.Errorf("%+v: encoded stream does not start with SYNC", p)
		}
		if !s.EndsWithEOP() {
			t.Errorf("%+v: encoded stream does not end with EOP", p)
		}
	}
}

func TestBitStuffingRegressionAllOnesPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xFF}, 8)
	p := Data(DATA0, payload)
	s := Encode(p)

	// Count transitions that break a run of six 1-bits: with an all-ones
	// payload of 64 bits plus framing, expect at least eight stuff bits.
	stuffed := 0
	syms := s.Symbols()
	run := 0
	for i := 1; i < len(syms); i++ {
		if syms[i] == syms[i-1] {
			run++
			if run == 6 {
				stuffed++
				run = 0
			}
		} else {
			run = 0
		}
	}
	if stuffed < 8 {
		t.Errorf("expected at least 8 stuff transitions, got %d", stuffed)
	}

	got, err := roundTripThroughWire(p)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !got.Equal(p) {
		t.Errorf("payload mismatch after stuffing round trip")
	}
}

func TestMissingEOPFailsDecode(t *testing.T) {
	s := Encode(Handshake(ACK))
	// Drop the final EOP symbol (keep SE0 SE0 but not the trailing J).
	syms := s.Symbols()
	broken := symbol.FromSymbols(syms[:len(syms)-1])
	if _, ok := TryDecode(broken); ok {
		t.Fatal("expected decode failure on stream missing trailing EOP")
	}
}

func TestSE1FailsDecode(t *testing.T) {
	s := Encode(Handshake(ACK))
	syms := append([]symbol.Symbol{}, s.Symbols()...)
	syms[4] = symbol.SE1
	broken := symbol.FromSymbols(syms)
	if _, ok := TryDecode(broken); ok {
		t.Fatal("expected decode failure on stream containing SE1")
	}
}

func TestOversizedOnesRunFailsDecode(t *testing.T) {
	// Encode an all-ones payload, then overwrite the first stuff transition
	// with a repeat of its predecessor, creating a run of seven identical
	// symbols on the wire.
	s := Encode(Data(DATA0, bytes.Repeat([]byte{0xFF}, 4)))
	syms := append([]symbol.Symbol{}, s.Symbols()...)
	run := 0
	for i := 1; i < len(syms); i++ {
		if syms[i] == syms[i-1] {
			run++
			if run == 6 {
				syms[i+1] = syms[i]
				break
			}
		} else {
			run = 0
		}
	}
	broken := symbol.FromSymbols(syms)
	_, err := TryDecodeErr(broken)
	if !errors.Is(err, ErrMalformedStream) {
		t.Fatalf("expected ErrMalformedStream for a 7-symbol run, got %v", err)
	}
}

func TestCRCMismatchDetected(t *testing.T) {
	p := Data(DATA0, []byte{0x01, 0x02})
	s := Encode(p)
	s.StripEOP()

	bits := s.ToBits()
	corrupted := bitvec.New()
	for i := 0; i < bits.Len(); i++ {
		bit := bits.At(i)
		if i == 20 {
			bit = !bit
		}
		corrupted.Append(bit)
	}

	corruptedStream := symbol.FromBits(corrupted)
	corruptedStream.AppendEOP()

	_, err := TryDecodeErr(corruptedStream)
	if !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
}

func TestDecodeTokenRoundTrip(t *testing.T) {
	for _, kind := range []TokenKind{SETUP, OUT, IN} {
		want := Token(kind, 0x3A, 0xA)
		s := Encode(want)
		s.StripEOP()
		s.AppendEOP()
		got, ok := TryDecodeAny(s)
		if !ok {
			t.Fatalf("%v: decode failed", kind)
		}
		if !got.Equal(want) {
			t.Errorf("%v: got %+v want %+v", kind, got, want)
		}
	}
}

func TestUnknownPIDFailsDecodeDistinctly(t *testing.T) {
	// A well-formed token packet should fail TryDecode (it only tries
	// handshake/data PIDs) with ErrUnknownPID, not ErrCRCMismatch.
	s := Encode(Token(SETUP, 0, 0))
	_, err := TryDecodeErr(s)
	if !errors.Is(err, ErrUnknownPID) {
		t.Fatalf("expected ErrUnknownPID, got %v", err)
	}
}
