package symbol

import (
	"testing"

	"usbsim/internal/bitvec"
)

func TestSyncLiteralEncodesToSyncPreamble(t *testing.T) {
	bits := bitvec.FromLiteral("0000_0001")
	s := FromBits(bits)
	if !s.StartsWithSync() {
		t.Fatalf("SYNC literal did not encode to KJKJKJKK preamble: %v", s.Symbols())
	}
	want := []Symbol{K, J, K, J, K, J, K, K}
	if s.Len() != len(want) {
		t.Fatalf("len = %d, want %d", s.Len(), len(want))
	}
	for i, w := range want {
		if s.At(i) != w {
			t.Errorf("symbol %d = %v, want %v", i, s.At(i), w)
		}
	}
}

func TestRoundTripBitsToSymbolsToBits(t *testing.T) {
	cases := []string{
		"0000_0001",
		"1100_0011",
		"1111_1111_1111_1111",
		"0000_0000",
		"1010_1010_1010",
	}
	for _, lit := range cases {
		bits := bitvec.FromLiteral(lit)
		s := FromBits(bits)
		got := s.ToBits()
		if !got.Equal(bits) {
			t.Errorf("round trip mismatch for %q: got %v want %v", lit, got.Bits(), bits.Bits())
		}
	}
}

func TestBitStuffingInsertsStuffBit(t *testing.T) {
	// Eight 1-bits in a row requires at least one stuff transition after six.
	bits := bitvec.FromLiteral("1111_1111")
	s := FromBits(bits)
	// 8 bits of '1' plus at least 1 stuff symbol.
	if s.Len() < 9 {
		t.Fatalf("expected stuffing to expand stream, got %d symbols", s.Len())
	}
	back := s.ToBits()
	if !back.Equal(bits) {
		t.Errorf("destuffed bits mismatch: got %v want %v", back.Bits(), bits.Bits())
	}
}

func TestToBitsStrictRejectsOversizedOnesRun(t *testing.T) {
	// Seven identical symbols in a row decode as six 1-bits followed by a
	// stuff position that repeats instead of transitioning.
	s := FromSymbols([]Symbol{J, J, J, J, J, J, J})
	if _, ok := s.ToBitsStrict(); ok {
		t.Fatal("expected ToBitsStrict to reject a run of seven identical symbols")
	}

	// A conforming encoder's output always passes.
	bits := bitvec.FromLiteral("1111_1111_1111")
	enc := FromBits(bits)
	got, ok := enc.ToBitsStrict()
	if !ok {
		t.Fatal("expected encoder output to pass strict destuffing")
	}
	if !got.Equal(bits) {
		t.Errorf("strict destuff mismatch: got %v want %v", got.Bits(), bits.Bits())
	}
}

func TestEOPAppendAndStrip(t *testing.T) {
	s := FromSymbols([]Symbol{J, K, J})
	s.AppendEOP()
	if !s.EndsWithEOP() {
		t.Fatal("expected EndsWithEOP after AppendEOP")
	}
	before := s.Len()
	s.StripEOP()
	if s.Len() != before-3 {
		t.Fatalf("StripEOP did not remove exactly 3 symbols: before=%d after=%d", before, s.Len())
	}
}

func TestStripEOPNoopWithoutEOP(t *testing.T) {
	s := FromSymbols([]Symbol{J, K, J, K})
	before := s.Len()
	s.StripEOP()
	if s.Len() != before {
		t.Fatal("StripEOP should be a no-op when stream doesn't end with EOP")
	}
}

func TestHasSE1(t *testing.T) {
	clean := FromSymbols([]Symbol{J, K, SE0})
	if clean.HasSE1() {
		t.Error("unexpected SE1 in clean stream")
	}
	dirty := FromSymbols([]Symbol{J, SE1, K})
	if !dirty.HasSE1() {
		t.Error("expected HasSE1 true")
	}
}
