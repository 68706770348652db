// Package flash implements the flash-area registry and aligned flash I/O
// that mediate access to internal non-volatile memory. It is adapted from
// the teacher's direct ROM flash-programming shim (partition offsets,
// sector erase, word-granular writes) generalized to a static table of
// named areas over an injected raw storage device.
package flash

import (
	"errors"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
)

// Errors returned by Registry and IO. None of these are retried locally;
// callers surface ErrNotFound to the peer as ENOENT and the rest as EINVAL
// (see package rc).
var (
	ErrOutOfBounds = errors.New("flash: access out of bounds")
	ErrMisaligned  = errors.New("flash: misaligned access")
	ErrIO          = errors.New("flash: raw device error")
	ErrNotFound    = errors.New("flash: area not found")
	ErrBadSlot     = errors.New("flash: invalid slot")
)

// AlignmentUnit is the minimum write granularity of the target device.
const AlignmentUnit = 4

// ErasedValue is the byte value left behind by a sector erase.
const ErasedValue = 0xFF

// Area identifiers, mirroring spec §3's named areas.
const (
	AreaBootloader = 0xF0
	// AreaPrimary(i) and AreaSecondary(i) are computed, see PrimaryID and
	// SecondaryID below.
	AreaScratch = 0xFE
)

// PrimaryID and SecondaryID compute the conventional identifier for a
// given image's primary/secondary slot. Kept distinct from raw area IDs
// so a Registry can be populated with any numbering scheme; AreaForSlot
// is the spec-mandated lookup that callers should use.
func PrimaryID(image int) uint8   { return uint8(image * 2) }
func SecondaryID(image int) uint8 { return uint8(image*2 + 1) }

// AreaConfig is the immutable, compile-time description of one flash
// area: device, base offset and size. Construction is the only place
// these fields are set; there is no mutation API.
type AreaConfig struct {
	ID         uint8
	DeviceID   uint8
	BaseOffset uint32
	Size       uint32
}

// Sector describes one erase-granularity unit of an area, offset
// relative to the area's own base.
type Sector struct {
	OffsetInArea uint32
	Size         uint32
}

// Device is the out-of-scope raw storage driver: raw_flash_read/write/erase
// plus sector_size, addressed by absolute device offset (not area-relative).
// FIO is the only thing that is allowed to call it directly.
type Device interface {
	ReadAt(dst []byte, addr uint32) error
	WriteAt(addr uint32, src []byte) error
	EraseAt(addr, size uint32) error
	SectorSize() uint32
}

// Handle identifies an opened area. It carries enough information for IO
// to operate without a further registry lookup per call.
type Handle struct {
	area AreaConfig
	dev  Device
}

// Size returns the area's size in bytes.
func (h Handle) Size() uint32 { return h.area.Size }

// Align returns the area's write alignment unit (always 4 on this target).
func (h Handle) Align() uint32 { return AlignmentUnit }

// ErasedByte returns the value left behind by erasing this area.
func (h Handle) ErasedByte() byte { return ErasedValue }

// ID returns the area's identifier.
func (h Handle) ID() uint8 { return h.area.ID }

// Registry is the static, compile-time table mapping area identifiers to
// their (device, base, size) records. Lookup is linear, matching spec
// §9's "compile-time array of records, ≤8 entries" design note.
type Registry struct {
	areas   []AreaConfig
	devices map[uint8]Device
}

// NewRegistry builds a Registry from a static area table and the set of
// devices those areas live on, keyed by AreaConfig.DeviceID.
func NewRegistry(areas []AreaConfig, devices map[uint8]Device) *Registry {
	r := &Registry{areas: append([]AreaConfig(nil), areas...), devices: devices}
	return r
}

// Validate sanity-checks the area table: every area's size must be a
// multiple of its device's sector size (spec §4.1's "violation is a
// configuration error"), and no two areas on the same device may
// overlap. Accumulates every problem found via go-multierror so a
// misconfigured board reports its whole area table at once instead of
// failing on the first bad entry.
func (r *Registry) Validate() error {
	var result *multierror.Error

	for i, a := range r.areas {
		dev, ok := r.devices[a.DeviceID]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("area %#x: unknown device %d", a.ID, a.DeviceID))
			continue
		}
		sector := dev.SectorSize()
		if sector == 0 || a.Size%sector != 0 {
			result = multierror.Append(result, fmt.Errorf("area %#x: size %d not a multiple of sector size %d", a.ID, a.Size, sector))
		}
		for j, b := range r.areas {
			if i == j || a.DeviceID != b.DeviceID {
				continue
			}
			if overlaps(a.BaseOffset, a.Size, b.BaseOffset, b.Size) {
				result = multierror.Append(result, fmt.Errorf("area %#x overlaps area %#x on device %d", a.ID, b.ID, a.DeviceID))
			}
		}
	}

	return result.ErrorOrNil()
}

func overlaps(aOff, aSize, bOff, bSize uint32) bool {
	aEnd := aOff + aSize
	bEnd := bOff + bSize
	return aOff < bEnd && bOff < aEnd
}

// Open looks up an area by identifier. Failure returns a distinct error,
// never a zero-valued handle masquerading as success.
func (r *Registry) Open(id uint8) (Handle, error) {
	for _, a := range r.areas {
		if a.ID == id {
			dev, ok := r.devices[a.DeviceID]
			if !ok {
				return Handle{}, fmt.Errorf("%w: area %#x has no device %d", ErrIO, id, a.DeviceID)
			}
			return Handle{area: a, dev: dev}, nil
		}
	}
	return Handle{}, fmt.Errorf("%w: %#x", ErrNotFound, id)
}

// Close is a no-op, kept for symmetry with Open: areas are static and own
// no per-handle resource.
func (r *Registry) Close(Handle) {}

// Sectors tiles an area with fixed-size sectors. The last sector is never
// truncated — area sizes are multiples of sector size by construction,
// enforced by Validate; an id that doesn't resolve is an error, as is an
// area whose size is not a sector multiple.
func (r *Registry) Sectors(id uint8) ([]Sector, error) {
	h, err := r.Open(id)
	if err != nil {
		return nil, err
	}
	sectorSize := h.dev.SectorSize()
	if sectorSize == 0 || h.area.Size%sectorSize != 0 {
		return nil, fmt.Errorf("%w: area %#x size %d not a sector multiple", ErrMisaligned, id, h.area.Size)
	}
	n := h.area.Size / sectorSize
	out := make([]Sector, n)
	for i := range out {
		out[i] = Sector{OffsetInArea: uint32(i) * sectorSize, Size: sectorSize}
	}
	return out, nil
}

// AreaForSlot resolves the conventional area identifier for a given
// image's slot 0 (primary) or slot 1 (secondary).
func AreaForSlot(image, slot int) (uint8, error) {
	switch slot {
	case 0:
		return PrimaryID(image), nil
	case 1:
		return SecondaryID(image), nil
	default:
		return 0, fmt.Errorf("%w: slot %d", ErrBadSlot, slot)
	}
}
