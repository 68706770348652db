// Package slotinfo implements the read-only slot_info and params
// handlers (SIP): static-ish area geometry reporting that never mutates
// flash, grounded in spec §4.7.
package slotinfo

import (
	"github.com/openenterprise/smpboot/flash"
	"github.com/openenterprise/smpboot/rc"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

// Config describes the static image/slot topology reported by slot_info.
type Config struct {
	NumImages int
	NumSlots  int
	BufSize   int
	BufCount  int
}

// Handler implements SlotInfo and Params.
type Handler struct {
	reg *flash.Registry
	cfg Config
}

// New builds a Handler.
func New(reg *flash.Registry, cfg Config) *Handler {
	if cfg.NumSlots == 0 {
		cfg.NumSlots = 2
	}
	if cfg.BufCount == 0 {
		cfg.BufCount = 1
	}
	return &Handler{reg: reg, cfg: cfg}
}

// SlotEntry is one slot's geometry, or the failure code when its area
// could not be opened. Per spec §4.7, a failed slot replaces the
// size/upload_image_id pair with {"rc": code} rather than aborting the
// whole report.
type SlotEntry struct {
	Slot          int  `cbor:"slot"`
	Size          *uint32 `cbor:"size,omitempty"`
	UploadImageID *uint32 `cbor:"upload_image_id,omitempty"`
	RC            *int    `cbor:"rc,omitempty"`
}

// ImageEntry groups an image's slots.
type ImageEntry struct {
	Image int         `cbor:"image"`
	Slots []SlotEntry `cbor:"slots"`
}

// Response is the wire shape of a slot_info reply.
type Response struct {
	Images []ImageEntry `cbor:"images"`
}

// SlotInfo builds the full images/slots report described by spec §4.7.
func (h *Handler) SlotInfo() Response {
	resp := Response{Images: make([]ImageEntry, 0, h.cfg.NumImages)}

	for img := 0; img < h.cfg.NumImages; img++ {
		entry := ImageEntry{Image: img, Slots: make([]SlotEntry, 0, h.cfg.NumSlots)}

		for slot := 0; slot < h.cfg.NumSlots; slot++ {
			areaID, err := flash.AreaForSlot(img, slot)
			if err != nil {
				code := rc.FromError(err)
				entry.Slots = append(entry.Slots, SlotEntry{Slot: slot, RC: &code})
				continue
			}
			area, err := h.reg.Open(areaID)
			if err != nil {
				code := rc.FromError(err)
				entry.Slots = append(entry.Slots, SlotEntry{Slot: slot, RC: &code})
				continue
			}

			size := area.Size()
			se := SlotEntry{Slot: slot, Size: &size}
			if slot == 1 {
				id := uint32(img*2 + 1)
				se.UploadImageID = &id
			}
			entry.Slots = append(entry.Slots, se)
		}

		resp.Images = append(resp.Images, entry)
	}

	return resp
}

// ParamsResponse is the wire shape of a params reply.
type ParamsResponse struct {
	BufSize  int `cbor:"buf_size"`
	BufCount int `cbor:"buf_count"`
}

// Params returns the fixed buffer geometry advertised to the peer.
func (h *Handler) Params() ParamsResponse {
	return ParamsResponse{BufSize: h.cfg.BufSize, BufCount: h.cfg.BufCount}
}

// EncodeSlotInfo builds and encodes the slot_info reply into enc,
// recovering from an overflow per spec §4.7: the scratch buffer is reset
// and re-encoded as a bare {"rc": ENOMEM} reply instead of returning a
// truncated payload.
func (h *Handler) EncodeSlotInfo(enc *wirecbor.Encoder) ([]byte, int) {
	enc.Reset()
	resp := h.SlotInfo()
	if err := enc.Encode(resp); err != nil {
		enc.Reset()
		_ = enc.Encode(struct {
			RC int `cbor:"rc"`
		}{RC: rc.NOMEM})
		return enc.Bytes(), rc.NOMEM
	}
	return enc.Bytes(), rc.OK
}
