package flash

import "fmt"

// MemDevice is an in-memory reference implementation of Device, used by
// tests and by any embedder that has no real NVM (a simulator, a CI
// harness). It emulates the raw driver's contract exactly: erased bytes
// read back as ErasedValue, and writes require 4-byte-aligned address
// and length (enforced here so misuse in IO is caught rather than
// silently tolerated).
type MemDevice struct {
	data   []byte
	sector uint32
}

// NewMemDevice allocates a MemDevice of the given size, pre-erased.
func NewMemDevice(size, sectorSize uint32) *MemDevice {
	d := &MemDevice{data: make([]byte, size), sector: sectorSize}
	for i := range d.data {
		d.data[i] = ErasedValue
	}
	return d
}

// SectorSize implements Device.
func (d *MemDevice) SectorSize() uint32 { return d.sector }

// Bytes exposes the backing slice for test assertions. Callers must not
// retain it across subsequent writes.
func (d *MemDevice) Bytes() []byte { return d.data }

// ReadAt implements Device. Requires a 4-byte-aligned address and length,
// matching the raw driver's contract that FIO exists to paper over.
func (d *MemDevice) ReadAt(dst []byte, addr uint32) error {
	if addr%AlignmentUnit != 0 || len(dst)%AlignmentUnit != 0 {
		return fmt.Errorf("raw read: misaligned addr=%d len=%d", addr, len(dst))
	}
	if uint64(addr)+uint64(len(dst)) > uint64(len(d.data)) {
		return fmt.Errorf("raw read: out of range addr=%d len=%d", addr, len(dst))
	}
	copy(dst, d.data[addr:addr+uint32(len(dst))])
	return nil
}

// WriteAt implements Device, programming whole 4-byte words.
func (d *MemDevice) WriteAt(addr uint32, src []byte) error {
	if addr%AlignmentUnit != 0 || len(src)%AlignmentUnit != 0 {
		return fmt.Errorf("raw write: misaligned addr=%d len=%d", addr, len(src))
	}
	if uint64(addr)+uint64(len(src)) > uint64(len(d.data)) {
		return fmt.Errorf("raw write: out of range addr=%d len=%d", addr, len(src))
	}
	copy(d.data[addr:addr+uint32(len(src))], src)
	return nil
}

// EraseAt implements Device, resetting a sector-aligned range to the
// erased value.
func (d *MemDevice) EraseAt(addr, size uint32) error {
	if addr%d.sector != 0 || size%d.sector != 0 {
		return fmt.Errorf("raw erase: misaligned addr=%d size=%d", addr, size)
	}
	if uint64(addr)+uint64(size) > uint64(len(d.data)) {
		return fmt.Errorf("raw erase: out of range addr=%d size=%d", addr, size)
	}
	for i := addr; i < addr+size; i++ {
		d.data[i] = ErasedValue
	}
	return nil
}
