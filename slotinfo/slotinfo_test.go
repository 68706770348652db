package slotinfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openenterprise/smpboot/flash"
	"github.com/openenterprise/smpboot/rc"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

func TestSlotInfoReportsSizeAndUploadImageID(t *testing.T) {
	dev := flash.NewMemDevice(8192, 4096)
	reg := flash.NewRegistry(
		[]flash.AreaConfig{
			{ID: flash.PrimaryID(0), DeviceID: 0, BaseOffset: 0, Size: 4096},
			{ID: flash.SecondaryID(0), DeviceID: 0, BaseOffset: 4096, Size: 4096},
		},
		map[uint8]flash.Device{0: dev},
	)
	h := New(reg, Config{NumImages: 1, NumSlots: 2, BufSize: 512, BufCount: 1})

	resp := h.SlotInfo()
	require.Len(t, resp.Images, 1)
	require.Len(t, resp.Images[0].Slots, 2)

	primary := resp.Images[0].Slots[0]
	require.NotNil(t, primary.Size)
	require.Equal(t, uint32(4096), *primary.Size)
	require.Nil(t, primary.UploadImageID)

	secondary := resp.Images[0].Slots[1]
	require.NotNil(t, secondary.UploadImageID)
	require.Equal(t, uint32(1), *secondary.UploadImageID)
}

func TestSlotInfoMissingAreaReportsRC(t *testing.T) {
	dev := flash.NewMemDevice(4096, 4096)
	reg := flash.NewRegistry(
		[]flash.AreaConfig{{ID: flash.PrimaryID(0), DeviceID: 0, BaseOffset: 0, Size: 4096}},
		map[uint8]flash.Device{0: dev},
	)
	h := New(reg, Config{NumImages: 1, NumSlots: 2})

	resp := h.SlotInfo()
	secondary := resp.Images[0].Slots[1]
	require.Nil(t, secondary.Size)
	require.NotNil(t, secondary.RC)
	require.Equal(t, rc.ENOENT, *secondary.RC)
}

func TestParamsReturnsConfiguredBuffer(t *testing.T) {
	h := New(nil, Config{NumImages: 1, BufSize: 256, BufCount: 1})
	p := h.Params()
	require.Equal(t, 256, p.BufSize)
	require.Equal(t, 1, p.BufCount)
}

func TestEncodeSlotInfoOverflowFallsBackToENOMEM(t *testing.T) {
	dev := flash.NewMemDevice(4096, 4096)
	areas := make([]flash.AreaConfig, 0, 64)
	for i := 0; i < 32; i++ {
		areas = append(areas, flash.AreaConfig{ID: flash.PrimaryID(i), DeviceID: 0, BaseOffset: 0, Size: 4096})
		areas = append(areas, flash.AreaConfig{ID: flash.SecondaryID(i), DeviceID: 0, BaseOffset: 0, Size: 4096})
	}
	reg := flash.NewRegistry(areas, map[uint8]flash.Device{0: dev})
	h := New(reg, Config{NumImages: 32, NumSlots: 2})

	enc := wirecbor.NewEncoder(16) // deliberately tiny to force overflow
	payload, code := h.EncodeSlotInfo(enc)
	require.Equal(t, rc.NOMEM, code)
	require.NotEmpty(t, payload)
}
