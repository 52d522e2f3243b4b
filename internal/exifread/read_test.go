package exifread

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ifdEntry struct {
	tag, typ uint16
	count    uint32
	value    [4]byte
}

func (e ifdEntry) write(b *bytes.Buffer) {
	binary.Write(b, binary.LittleEndian, e.tag)
	binary.Write(b, binary.LittleEndian, e.typ)
	binary.Write(b, binary.LittleEndian, e.count)
	b.Write(e.value[:])
}

func u32(v uint32) [4]byte {
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], v)
	return out
}

func ascii(s string) [4]byte {
	var out [4]byte
	copy(out[:], s)
	return out
}

// writeTIFF builds a little-endian TIFF with an Exif IFD holding
// DateTimeOriginal and a GPS IFD for 33°52'12"S 151°12'36"E.
func writeTIFF(t *testing.T, taken string) string {
	t.Helper()
	const (
		ifd0Offset = 8
		exifOffset = ifd0Offset + 2 + 2*12 + 4
		gpsOffset  = exifOffset + 2 + 12 + 4
		dataOffset = gpsOffset + 2 + 4*12 + 4
		dateOffset = dataOffset + 6*8
	)
	var b bytes.Buffer
	b.WriteString("II")
	binary.Write(&b, binary.LittleEndian, uint16(42))
	binary.Write(&b, binary.LittleEndian, uint32(ifd0Offset))

	binary.Write(&b, binary.LittleEndian, uint16(2))
	ifdEntry{0x8769, 4, 1, u32(exifOffset)}.write(&b)
	ifdEntry{0x8825, 4, 1, u32(gpsOffset)}.write(&b)
	binary.Write(&b, binary.LittleEndian, uint32(0))

	binary.Write(&b, binary.LittleEndian, uint16(1))
	ifdEntry{0x9003, 2, uint32(len(taken) + 1), u32(dateOffset)}.write(&b)
	binary.Write(&b, binary.LittleEndian, uint32(0))

	binary.Write(&b, binary.LittleEndian, uint16(4))
	ifdEntry{0x0001, 2, 2, ascii("S")}.write(&b)
	ifdEntry{0x0002, 5, 3, u32(dataOffset)}.write(&b)
	ifdEntry{0x0003, 2, 2, ascii("E")}.write(&b)
	ifdEntry{0x0004, 5, 3, u32(dataOffset + 24)}.write(&b)
	binary.Write(&b, binary.LittleEndian, uint32(0))

	for _, r := range [][2]uint32{{33, 1}, {52, 1}, {1200, 100}, {151, 1}, {12, 1}, {3600, 100}} {
		binary.Write(&b, binary.LittleEndian, r[0])
		binary.Write(&b, binary.LittleEndian, r[1])
	}
	b.WriteString(taken)
	b.WriteByte(0)

	path := filepath.Join(t.TempDir(), "tagged.tif")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func TestRead(t *testing.T) {
	s, err := Read(writeTIFF(t, "2025:06:16 12:49:00"))
	require.NoError(t, err)
	assert.True(t, s.HasLocation)
	assert.InDelta(t, -33.87, s.Latitude, 1e-9)
	assert.InDelta(t, 151.21, s.Longitude, 1e-9)
	assert.Equal(t, time.Date(2025, 6, 16, 12, 49, 0, 0, time.UTC), s.Taken)
}

func TestReadUnparseableTakenIsZero(t *testing.T) {
	s, err := Read(writeTIFF(t, "not a date"))
	require.NoError(t, err)
	assert.True(t, s.HasLocation)
	assert.True(t, s.Taken.IsZero())
}

func TestReadWithoutExif(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))

	_, err := Read(path)
	assert.Error(t, err)
}
