package firmware

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadROMRejectsOversizedImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	_, err := LoadROM(path, 32)
	require.Error(t, err)
}

func TestLoadROMComputesDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.bin")
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	img, err := LoadROM(path, 4096)
	require.NoError(t, err)
	assert.Equal(t, data, img.Bytes)

	var zero [32]byte
	assert.NotEqual(t, zero, img.Digest)
}

func TestRAMDumpFormat(t *testing.T) {
	ram := make([]byte, 17)
	for i := range ram {
		ram[i] = byte(i)
	}
	dump := RAMDump(ram)
	lines := strings.Split(strings.TrimLeft(dump, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0000:"), "first line %q", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0010:"), "second line %q", lines[1])
}
