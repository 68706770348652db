package cbor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	RC int `cbor:"rc"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder(64)
	require.NoError(t, enc.Encode(sample{RC: 3}))
	require.Equal(t, enc.Size(), len(enc.Bytes()))

	var out sample
	require.NoError(t, Decode(enc.Bytes(), &out))
	require.Equal(t, 3, out.RC)
}

func TestEncodeOverflowResetsBuffer(t *testing.T) {
	enc := NewEncoder(4)
	err := enc.Encode(sample{RC: 12345})
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, 0, enc.Size())
}

func TestResetClearsPriorPayload(t *testing.T) {
	enc := NewEncoder(64)
	require.NoError(t, enc.Encode(sample{RC: 1}))
	enc.Reset()
	require.Equal(t, 0, enc.Size())
	require.Nil(t, enc.Bytes())
}
