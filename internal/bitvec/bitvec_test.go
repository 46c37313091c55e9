package bitvec

import "testing"

func TestFromLiteralOrderAndSeparators(t *testing.T) {
	bv := FromLiteral("1011_0100")
	want := []bool{true, false, true, true, false, true, false, false}
	if bv.Len() != len(want) {
		t.Fatalf("len = %d, want %d", bv.Len(), len(want))
	}
	for i, w := range want {
		if bv.At(i) != w {
			t.Errorf("bit %d = %v, want %v", i, bv.At(i), w)
		}
	}
}

func TestFromUintLsbFirst(t *testing.T) {
	bv := FromUint(0b1011, 4)
	want := []bool{true, true, false, true}
	for i, w := range want {
		if bv.At(i) != w {
			t.Errorf("bit %d = %v, want %v", i, bv.At(i), w)
		}
	}
}

func TestExtractUintRoundTrip(t *testing.T) {
	bv := FromUint(0x3A, 8)
	if got := bv.ExtractUint(0, 8); got != 0x3A {
		t.Errorf("ExtractUint = 0x%x, want 0x3A", got)
	}
}

func TestCRC5SpotValues(t *testing.T) {
	// addr=0, endp=0
	payload := FromUint(0, 7)
	payload.AppendVec(FromUint(0, 4))
	if got := payload.CalcCRC5(); got != 0x02 {
		t.Errorf("CRC5(addr=0,endp=0) = 0x%02x, want 0x02", got)
	}

	// addr=0x3A, endp=0xA
	payload2 := FromUint(0x3A, 7)
	payload2.AppendVec(FromUint(0xA, 4))
	if got := payload2.CalcCRC5(); got != 0x1C {
		t.Errorf("CRC5(addr=0x3A,endp=0xA) = 0x%02x, want 0x1c", got)
	}
}

func TestCRC16EmptyPayload(t *testing.T) {
	empty := New()
	if got := empty.CalcCRC16(); got != 0x0000 {
		t.Errorf("CRC16(empty) = 0x%04x, want 0x0000", got)
	}
}

func TestEqual(t *testing.T) {
	a := FromLiteral("1010")
	b := FromLiteral("1010")
	c := FromLiteral("1011")
	if !a.Equal(b) {
		t.Error("expected a == b")
	}
	if a.Equal(c) {
		t.Error("expected a != c")
	}
}

func TestReverse(t *testing.T) {
	a := FromLiteral("1100")
	r := a.Reverse()
	want := []bool{false, false, true, true}
	for i, w := range want {
		if r.At(i) != w {
			t.Errorf("bit %d = %v, want %v", i, r.At(i), w)
		}
	}
}

func TestFromLiteralRejectsGarbage(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on malformed literal")
		}
	}()
	FromLiteral("10x1")
}
