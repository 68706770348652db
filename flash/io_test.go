package flash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestIO(t *testing.T, areaSize uint32) (*IO, Handle, *MemDevice) {
	t.Helper()
	dev := NewMemDevice(areaSize*2, 4096)
	reg := NewRegistry([]AreaConfig{
		{ID: 1, DeviceID: 0, BaseOffset: 0, Size: areaSize},
	}, map[uint8]Device{0: dev})
	require.NoError(t, reg.Validate())
	h, err := reg.Open(1)
	require.NoError(t, err)
	return NewIO(reg), h, dev
}

func TestReadAligned(t *testing.T) {
	io, h, dev := newTestIO(t, 4096)
	copy(dev.Bytes(), []byte{1, 2, 3, 4, 5, 6, 7, 8})

	dst := make([]byte, 8)
	require.NoError(t, io.Read(h, 0, dst))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst)
}

func TestReadMisalignedMatchesAlignedProjection(t *testing.T) {
	io, h, dev := newTestIO(t, 4096)
	for i := range dev.Bytes()[:64] {
		dev.Bytes()[i] = byte(i)
	}

	// Aligned read of a superset region.
	aligned := make([]byte, 64)
	require.NoError(t, io.Read(h, 0, aligned))

	// Misaligned read within the same region must equal the projection.
	got := make([]byte, 17)
	require.NoError(t, io.Read(h, 3, got))
	require.Equal(t, aligned[3:20], got)
}

func TestReadOutOfBounds(t *testing.T) {
	io, h, _ := newTestIO(t, 4096)
	err := io.Read(h, 4090, make([]byte, 16))
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestWriteOutOfBounds(t *testing.T) {
	io, h, _ := newTestIO(t, 4096)
	err := io.Write(h, 4090, make([]byte, 16))
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestEraseMisaligned(t *testing.T) {
	io, h, dev := newTestIO(t, 8192)
	before := append([]byte(nil), dev.Bytes()...)

	err := io.Erase(h, 10, 4096)
	require.ErrorIs(t, err, ErrMisaligned)
	require.Equal(t, before, dev.Bytes())

	err = io.Erase(h, 0, 10)
	require.ErrorIs(t, err, ErrMisaligned)
	require.Equal(t, before, dev.Bytes())
}

func TestEraseThenErasedValue(t *testing.T) {
	io, h, dev := newTestIO(t, 4096)
	copy(dev.Bytes(), []byte{1, 2, 3, 4})

	require.NoError(t, io.Erase(h, 0, 4096))
	for _, b := range dev.Bytes()[:4096] {
		require.Equal(t, byte(ErasedValue), b)
	}
}

func TestWriteSubWordPreservesSurroundingBytes(t *testing.T) {
	io, h, dev := newTestIO(t, 4096)
	copy(dev.Bytes(), []byte{0xAA, 0xBB, 0xCC, 0xDD})

	require.NoError(t, io.Write(h, 1, []byte{0x11, 0x22}))
	require.Equal(t, []byte{0xAA, 0x11, 0x22, 0xDD}, dev.Bytes()[:4])
}

func TestWriteFullWords(t *testing.T) {
	io, h, dev := newTestIO(t, 4096)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, io.Write(h, 0, data))
	require.Equal(t, data, dev.Bytes()[:8])
}

func TestRegistryOpenUnknownArea(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_, err := reg.Open(7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSectorsTilesWholeArea(t *testing.T) {
	dev := NewMemDevice(8192, 4096)
	reg := NewRegistry([]AreaConfig{{ID: 1, DeviceID: 0, BaseOffset: 0, Size: 8192}}, map[uint8]Device{0: dev})
	sectors, err := reg.Sectors(1)
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	require.Equal(t, uint32(0), sectors[0].OffsetInArea)
	require.Equal(t, uint32(4096), sectors[1].OffsetInArea)
}

func TestAreaForSlot(t *testing.T) {
	id, err := AreaForSlot(2, 0)
	require.NoError(t, err)
	require.Equal(t, PrimaryID(2), id)

	id, err = AreaForSlot(2, 1)
	require.NoError(t, err)
	require.Equal(t, SecondaryID(2), id)

	_, err = AreaForSlot(2, 2)
	require.ErrorIs(t, err, ErrBadSlot)
}

func TestRegistryValidateCatchesOverlap(t *testing.T) {
	dev := NewMemDevice(8192, 4096)
	reg := NewRegistry([]AreaConfig{
		{ID: 1, DeviceID: 0, BaseOffset: 0, Size: 4096},
		{ID: 2, DeviceID: 0, BaseOffset: 2048, Size: 4096},
	}, map[uint8]Device{0: dev})
	require.Error(t, reg.Validate())
}
