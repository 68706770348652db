package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openenterprise/smpboot/flash"
	"github.com/openenterprise/smpboot/manifest"
)

func TestDefaultsApplyWhenOverridesEmpty(t *testing.T) {
	require.Equal(t, DefaultNumImages, NumImages())
	require.Equal(t, DefaultUDPPort, UDPPort())
	require.Equal(t, DefaultUDPBindAddr, UDPBindAddr())
	require.Equal(t, manifest.SHA256, HashAlgorithm())
	require.Equal(t, DefaultScratchBufSize, ScratchBufSize())
}

func TestDefaultAreaTableLayout(t *testing.T) {
	areas := DefaultAreaTable(2)
	require.Len(t, areas, 1+2*2+1) // bootloader + 2 images * 2 slots + scratch

	require.Equal(t, uint32(0), areas[0].BaseOffset)

	primary0 := areas[1]
	require.Equal(t, flash.PrimaryID(0), primary0.ID)
}
