// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package symbol implements the USB 1.x line-level symbol stream: NRZI
// encoding, bit-stuffing, and SYNC/EOP framing.
package symbol

import "usbsim/internal/bitvec"

// Symbol is a four-valued line state.
type Symbol int

const (
	// J is the idle line state.
	J Symbol = iota
	// K is the opposite-of-idle line state.
	K
	// SE0 denotes both differential lines driven low, used in EOP.
	SE0
	// SE1 is invalid on a healthy bus but modelled for completeness.
	SE1
)

func (s Symbol) String() string {
	switch s {
	case J:
		return "J"
	case K:
		return "K"
	case SE0:
		return "0"
	case SE1:
		return "1"
	default:
		return "?"
	}
}

func opposite(s Symbol) Symbol {
	if s == J {
		return K
	}
	return J
}

// Stream is an ordered sequence of line symbols.
type Stream struct {
	syms []Symbol
}

// New returns an empty Stream.
func New() *Stream {
	return &Stream{}
}

// FromSymbols wraps a pre-built symbol slice.
func FromSymbols(syms []Symbol) *Stream {
	out := make([]Symbol, len(syms))
	copy(out, syms)
	return &Stream{syms: out}
}

// Len returns the number of symbols in the stream.
func (s *Stream) Len() int {
	return len(s.syms)
}

// At returns the symbol at position i.
func (s *Stream) At(i int) Symbol {
	return s.syms[i]
}

// Symbols returns the underlying symbol slice. Callers must not mutate it.
func (s *Stream) Symbols() []Symbol {
	return s.syms
}

func (s *Stream) push(sym Symbol) {
	s.syms = append(s.syms, sym)
}

// FromBits performs bit-stuffing and NRZI encoding of bits (lsb-first, in
// insertion order) into a new Stream, starting from idle J.
func FromBits(bits *bitvec.BitVec) *Stream {
	s := &Stream{}
	prev := J
	onesCntr := 0
	for _, bit := range bits.Bits() {
		if bit {
			onesCntr++
			s.push(prev)
			if onesCntr == 6 {
				inv := opposite(prev)
				s.push(inv)
				prev = inv
				onesCntr = 0
			}
		} else {
			inv := opposite(prev)
			s.push(inv)
			prev = inv
			onesCntr = 0
		}
	}
	return s
}

// ToBits performs NRZI decoding and bit-destuffing, recognizing stuff bits by
// position (via the running ones-counter), not by symbol value.
func (s *Stream) ToBits() *bitvec.BitVec {
	out := bitvec.New()
	prev := J
	onesCntr := 0
	for _, sym := range s.syms {
		if onesCntr == 6 {
			// Discard stuff bit.
			onesCntr = 0
		} else if sym == prev {
			out.Append(true)
			onesCntr++
		} else {
			out.Append(false)
			onesCntr = 0
		}
		prev = sym
	}
	return out
}

// ToBitsStrict is ToBits plus stream validation: it reports ok=false when a
// stuff-bit position carries a repeated symbol, meaning the pre-destuff bit
// stream held a run of seven or more consecutive 1-bits. A conforming
// encoder always breaks a run at six, so an oversized run marks a corrupted
// stream.
func (s *Stream) ToBitsStrict() (*bitvec.BitVec, bool) {
	out := bitvec.New()
	prev := J
	onesCntr := 0
	for _, sym := range s.syms {
		if onesCntr == 6 {
			if sym == prev {
				return nil, false
			}
			onesCntr = 0
		} else if sym == prev {
			out.Append(true)
			onesCntr++
		} else {
			out.Append(false)
			onesCntr = 0
		}
		prev = sym
	}
	return out, true
}

// AppendEOP pushes SE0, SE0, J onto the end of the stream.
func (s *Stream) AppendEOP() {
	s.push(SE0)
	s.push(SE0)
	s.push(J)
}

// StripEOP removes the trailing EOP symbols if present.
func (s *Stream) StripEOP() {
	if s.EndsWithEOP() {
		s.syms = s.syms[:len(s.syms)-3]
	}
}

// StartsWithSync reports whether the first eight symbols are the fixed
// K J K J K J K K SYNC preamble.
func (s *Stream) StartsWithSync() bool {
	if len(s.syms) < 8 {
		return false
	}
	want := [8]Symbol{K, J, K, J, K, J, K, K}
	for i, w := range want {
		if s.syms[i] != w {
			return false
		}
	}
	return true
}

// EndsWithEOP reports whether the last three symbols are SE0 SE0 J.
func (s *Stream) EndsWithEOP() bool {
	n := len(s.syms)
	if n < 3 {
		return false
	}
	return s.syms[n-3] == SE0 && s.syms[n-2] == SE0 && s.syms[n-1] == J
}

// HasSE1 reports whether any symbol in the stream is the invalid SE1 state.
func (s *Stream) HasSE1() bool {
	for _, sym := range s.syms {
		if sym == SE1 {
			return true
		}
	}
	return false
}
