package rc

import (
	"testing"

	"github.com/openenterprise/smpboot/flash"
	"github.com/stretchr/testify/require"
)

func TestFromErrorMapsFlashSentinels(t *testing.T) {
	require.Equal(t, ENOENT, FromError(flash.ErrNotFound))
	require.Equal(t, EINVAL, FromError(flash.ErrBadSlot))
	require.Equal(t, EINVAL, FromError(flash.ErrOutOfBounds))
	require.Equal(t, OK, FromError(nil))
}

func TestFromErrorUnknownFallsBackToUnknown(t *testing.T) {
	require.Equal(t, UNKNOWN, FromError(unmappedErr{}))
}

type unmappedErr struct{}

func (unmappedErr) Error() string { return "unmapped" }

func TestStringRendersKnownCodes(t *testing.T) {
	require.Equal(t, "OK", String(OK))
	require.Equal(t, "ENOENT", String(ENOENT))
	require.Equal(t, "rc=99", String(99))
}
