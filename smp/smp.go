// Package smp implements the 8-byte Simple Management Protocol header
// that frames every request and response: parsing and validating it on
// receive, and stamping it back onto an outbound CBOR payload on send.
package smp

import "encoding/binary"

// Operations recognized on the wire. Anything else causes the datagram
// to be dropped silently.
const (
	OpRead  = 0
	OpWrite = 2
)

// Groups recognized on the wire.
const (
	GroupOS      = 0
	GroupImage   = 1
	GroupPerUser = 64
)

// Command IDs within GroupOS.
const (
	IDReset  = 5
	IDParams = 6
)

// Command IDs within GroupImage.
const (
	IDImageState    = 0
	IDImageUpload   = 1
	IDImageSlotInfo = 6
)

// HeaderSize is the fixed length of the SMP header in bytes.
const HeaderSize = 8

// Header is the decoded form of the 8-byte SMP header:
//
//	byte 0: op:3 | version:2 | reserved:3   (op in the high bits)
//	byte 1: flags
//	bytes 2-3: length, big-endian (payload bytes, excludes header)
//	bytes 4-5: group, big-endian
//	byte 6: seq
//	byte 7: id
type Header struct {
	Op      uint8
	Version uint8
	Flags   uint8
	Length  uint16
	Group   uint16
	Seq     uint8
	ID      uint8
}

// DecodeHeader unpacks the first 8 bytes of raw as a Header. The caller
// must have already checked len(raw) >= HeaderSize.
func DecodeHeader(raw []byte) Header {
	b0 := raw[0]
	return Header{
		Op:      (b0 >> 5) & 0x7,
		Version: (b0 >> 3) & 0x3,
		Flags:   raw[1],
		Length:  binary.BigEndian.Uint16(raw[2:4]),
		Group:   binary.BigEndian.Uint16(raw[4:6]),
		Seq:     raw[6],
		ID:      raw[7],
	}
}

// Encode packs h into an 8-byte header.
func (h Header) Encode() [HeaderSize]byte {
	var out [HeaderSize]byte
	out[0] = (h.Op&0x7)<<5 | (h.Version&0x3)<<3
	out[1] = h.Flags
	binary.BigEndian.PutUint16(out[2:4], h.Length)
	binary.BigEndian.PutUint16(out[4:6], h.Group)
	out[6] = h.Seq
	out[7] = h.ID
	return out
}

// Frame is a fully decoded, validated request: header plus the CBOR
// payload slice (a view into the original datagram, not a copy).
type Frame struct {
	Header  Header
	Payload []byte
}

// DecodeFrame validates and decodes a received datagram per spec §4.4's
// drop rules. The second return value is false when the datagram must be
// dropped silently: too short, an unrecognized op, or a length field
// that overruns the datagram. Callers must never turn a false return
// into a wire reply — there is no peer-visible error for a malformed
// frame, only silence.
func DecodeFrame(datagram []byte) (Frame, bool) {
	if len(datagram) < HeaderSize {
		return Frame{}, false
	}
	h := DecodeHeader(datagram)
	if h.Op != OpRead && h.Op != OpWrite {
		return Frame{}, false
	}
	if int(h.Length) > len(datagram)-HeaderSize {
		return Frame{}, false
	}
	return Frame{Header: h, Payload: datagram[HeaderSize : HeaderSize+int(h.Length)]}, true
}

// EncodeResponse builds an outbound datagram: the request's group/seq/id
// echoed back (seq round-trips unchanged per spec §8 property 7), op also
// echoed from the request (there is no distinct response opcode, so a READ
// request is answered with READ and a WRITE request with WRITE), and
// length set to len(payload).
func EncodeResponse(req Header, payload []byte) []byte {
	resp := Header{
		Op:      req.Op,
		Version: req.Version,
		Flags:   0,
		Length:  uint16(len(payload)),
		Group:   req.Group,
		Seq:     req.Seq,
		ID:      req.ID,
	}
	hdr := resp.Encode()
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, hdr[:]...)
	out = append(out, payload...)
	return out
}
