// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package firmware loads ROM images into a simulated device and dumps its
// RAM for post-mortem inspection.
package firmware

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Image is a loaded ROM image plus its integrity digest.
type Image struct {
	Bytes  []byte
	Digest [blake2b.Size256]byte
}

// LoadROM reads path into an Image, rejecting anything larger than
// maxSize (the device model's fixed ROM capacity).
func LoadROM(path string, maxSize int) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("firmware: open ROM %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("firmware: stat ROM %s: %w", path, err)
	}
	if int(info.Size()) > maxSize {
		return nil, fmt.Errorf("firmware: ROM %s is %d bytes, exceeds %d-byte device ROM", path, info.Size(), maxSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("firmware: read ROM %s: %w", path, err)
	}

	digest, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("firmware: init digest: %w", err)
	}
	digest.Write(data)

	img := &Image{Bytes: data}
	copy(img.Digest[:], digest.Sum(nil))
	return img, nil
}

// RAMDump is a hex rendering of a RAM snapshot, sixteen bytes per line.
func RAMDump(ram []byte) string {
	var out []byte
	for i := 0; i < len(ram); i++ {
		if i%16 == 0 {
			out = append(out, []byte(fmt.Sprintf("\n%04x:", i))...)
		}
		out = append(out, []byte(fmt.Sprintf(" %02x", ram[i]))...)
	}
	return string(out)
}

// DumpRAMTo writes RAMDump(ram) to w.
func DumpRAMTo(w io.Writer, ram []byte) error {
	_, err := io.WriteString(w, RAMDump(ram)+"\n")
	return err
}
