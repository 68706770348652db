// Package manifest reads the TLV trailer that follows a firmware image,
// extracting the identity hash recorded there by the signing tool.
// Decoding of the fixed-layout header and TLV prefix uses go-restruct,
// the same field-tag-driven byte decoder the teacher's sibling pack
// (dsoprea-go-exfat) uses for its on-disk structures.
package manifest

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-restruct/restruct"

	"github.com/openenterprise/smpboot/flash"
)

// HashAlgorithm selects the expected payload length of the image identity
// hash. The hash TLV's type (hashTLVType) is the same for every algorithm.
type HashAlgorithm uint8

const (
	SHA256 HashAlgorithm = iota
	SHA384
	SHA512
)

// ExpectedSize returns the digest length in bytes for the algorithm.
func (a HashAlgorithm) ExpectedSize() int {
	switch a {
	case SHA256:
		return 32
	case SHA384:
		return 48
	case SHA512:
		return 64
	default:
		return 0
	}
}

// hashTLVType identifies the hash TLV within the manifest trailer. The
// remaining type space belongs to the signing tool and is not
// interpreted here.
const hashTLVType uint16 = 0x10

// ErrNotFound is returned both when no TLV of the configured hash type is
// present and when one is present but its length doesn't match the
// configured algorithm — per spec §4.3, a size mismatch means the image
// is unidentifiable, not that flash I/O failed.
var ErrNotFound = errors.New("manifest: image hash not found")

// Header is the fixed-layout prefix describing where an image's TLV
// trailer begins and how long it runs.
type Header struct {
	Magic       uint32
	LoadAddr    uint32
	HeaderSize  uint16
	ProtectSize uint16
	ImageSize   uint32
	Flags       uint32
	VersMajor   uint8
	VersMinor   uint8
	VersRevision uint16
	VersBuild   uint32
	Pad         uint32
}

// NonBootableFlag, when set, marks an image as not eligible to boot —
// spec §4.5 emits "bootable": true only when this bit is clear.
const NonBootableFlag = 1 << 1

const magicValue = 0x96f3b83c

// RawHeaderSize is the on-flash byte size of Header, i.e. how many bytes
// callers must read before calling DecodeHeader.
const RawHeaderSize = 32

// tlvHeader is the (type, length) prefix of each trailer entry.
type tlvHeader struct {
	Type   uint16
	Length uint16
}

const tlvHeaderSize = 4

// DecodeHeader unpacks the fixed-layout image header from its raw bytes.
func DecodeHeader(raw []byte) (Header, error) {
	var h Header
	if err := restruct.Unpack(raw, binary.LittleEndian, &h); err != nil {
		return Header{}, fmt.Errorf("manifest: decode header: %w", err)
	}
	return h, nil
}

// MagicValid reports whether the header's magic matches the image
// format this manifest reader understands.
func (h Header) MagicValid() bool { return h.Magic == magicValue }

// Version formats the header's version tuple as "M.m.r", with an
// optional ".b" suffix when the build number is non-zero, per spec
// §4.5's version-string rule.
func (h Header) Version() string {
	v := fmt.Sprintf("%d.%d.%d", h.VersMajor, h.VersMinor, h.VersRevision)
	if h.VersBuild != 0 {
		v += fmt.Sprintf(".%d", h.VersBuild)
	}
	return v
}

// GetImageHash walks the TLV trailer of the image stored in area,
// starting at the offset implied by the header's protected/header/image
// sizes, and returns the payload of the first TLV of type hashTLVType,
// provided its length equals algo's expected size (ErrNotFound otherwise).
func GetImageHash(io *flash.IO, area flash.Handle, h Header, algo HashAlgorithm) ([]byte, error) {
	trailerStart := uint32(h.HeaderSize) + h.ImageSize + uint32(h.ProtectSize)
	expected := algo.ExpectedSize()

	off := trailerStart
	limit := area.Size()

	for off+tlvHeaderSize <= limit {
		var raw [tlvHeaderSize]byte
		if err := io.Read(area, off, raw[:]); err != nil {
			return nil, err
		}
		var th tlvHeader
		if err := restruct.Unpack(raw[:], binary.LittleEndian, &th); err != nil {
			return nil, fmt.Errorf("manifest: decode tlv: %w", err)
		}
		off += tlvHeaderSize

		if off+uint32(th.Length) > limit {
			break
		}

		if th.Type == hashTLVType {
			if int(th.Length) != expected {
				return nil, ErrNotFound
			}
			hash := make([]byte, th.Length)
			if err := io.Read(area, off, hash); err != nil {
				return nil, err
			}
			return hash, nil
		}

		off += uint32(th.Length)
	}

	return nil, ErrNotFound
}
