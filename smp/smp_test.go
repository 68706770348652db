package smp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Op: OpWrite, Version: 1, Flags: 0xAB, Length: 42, Group: GroupImage, Seq: 7, ID: IDImageUpload}
	enc := h.Encode()
	got := DecodeHeader(enc[:])
	require.Equal(t, h, got)
}

func TestDecodeFrameTooShortDrops(t *testing.T) {
	_, ok := DecodeFrame([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestDecodeFrameUnknownOpDrops(t *testing.T) {
	h := Header{Op: 7, Group: GroupOS, ID: IDReset}
	enc := h.Encode()
	_, ok := DecodeFrame(enc[:])
	require.False(t, ok)
}

func TestDecodeFrameLengthOverrunDrops(t *testing.T) {
	h := Header{Op: OpRead, Length: 100}
	enc := h.Encode()
	_, ok := DecodeFrame(enc[:])
	require.False(t, ok)
}

func TestDecodeFrameValid(t *testing.T) {
	h := Header{Op: OpRead, Group: GroupOS, ID: IDParams, Seq: 3, Length: 2}
	enc := h.Encode()
	datagram := append(enc[:], []byte{0xA0, 0x01}...)

	f, ok := DecodeFrame(datagram)
	require.True(t, ok)
	require.Equal(t, uint8(3), f.Header.Seq)
	require.Equal(t, []byte{0xA0, 0x01}, f.Payload)
}

func TestEncodeResponsePreservesSeq(t *testing.T) {
	req := Header{Op: OpRead, Group: GroupOS, ID: IDParams, Seq: 77}
	out := EncodeResponse(req, []byte("hi"))
	resp := DecodeHeader(out)
	require.Equal(t, uint8(77), resp.Seq)
	require.Equal(t, uint16(2), resp.Length)
	require.Equal(t, []byte("hi"), out[HeaderSize:])
}
