package trace

import (
	"strings"
	"testing"

	"usbsim/internal/symbol"
)

func TestCSVSinkWritesFourLinesPerSymbol(t *testing.T) {
	var buf strings.Builder
	sink := NewCSVSink(&buf)
	sink.Symbol(symbol.J)
	sink.Symbol(symbol.K)
	sink.Symbol(symbol.SE0)
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 12 {
		t.Fatalf("expected 12 lines (4 per symbol x 3 symbols), got %d", len(lines))
	}
	for i := 0; i < 4; i++ {
		if lines[i] != "1,0" {
			t.Errorf("J line %d: got %q", i, lines[i])
		}
	}
	for i := 4; i < 8; i++ {
		if lines[i] != "0,1" {
			t.Errorf("K line %d: got %q", i, lines[i])
		}
	}
	for i := 8; i < 12; i++ {
		if lines[i] != "0,0" {
			t.Errorf("SE0 line %d: got %q", i, lines[i])
		}
	}
}

func TestNopSinkDiscards(t *testing.T) {
	var s NopSink
	s.Symbol(symbol.J)
	if err := s.Flush(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
