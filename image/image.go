// Package image implements the image list/set handler (ILS): it
// enumerates slots, validates each against the external image validator,
// derives slot state from the external swap oracle, and arbitrates the
// hash-addressed pending/confirm command.
package image

import (
	"bytes"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/openenterprise/smpboot/flash"
	"github.com/openenterprise/smpboot/manifest"
	"github.com/openenterprise/smpboot/rc"
)

// SwapType is the bootloader's verdict for the next boot.
type SwapType uint8

const (
	SwapNone SwapType = iota
	SwapTest
	SwapPerm
	SwapRevert
)

// Validator wraps the external, out-of-scope cryptographic image
// validator. It must be treated as a black box returning success or
// failure — never short-circuited based on the header magic alone, per
// spec §9's crash-safety note.
type Validator interface {
	Validate(io *flash.IO, area flash.Handle, header manifest.Header) bool
}

// SwapOracle wraps the external swap-type oracle and slot commitment
// primitive.
type SwapOracle interface {
	SwapType(image int) SwapType
	SetPending(image int, permanent bool) error
}

// StateNotifier receives a best-effort notification whenever a Set call
// commits a new pending/confirmed state. Implementations must not block
// the handler on network I/O; a no-op default is used when none is
// configured.
type StateNotifier interface {
	Notify(event string, attrs map[string]string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, map[string]string) {}

// Config is the static, compile-time configuration of the handler.
type Config struct {
	NumImages int
	NumSlots  int
	HashAlgo  manifest.HashAlgorithm
}

// Handler implements list() and set() from spec §4.5.
type Handler struct {
	reg       *flash.Registry
	io        *flash.IO
	validator Validator
	oracle    SwapOracle
	notifier  StateNotifier
	cfg       Config
}

// New builds a Handler. notifier may be nil, in which case notifications
// are dropped.
func New(reg *flash.Registry, io *flash.IO, validator Validator, oracle SwapOracle, notifier StateNotifier, cfg Config) *Handler {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.NumSlots == 0 {
		cfg.NumSlots = 2
	}
	return &Handler{reg: reg, io: io, validator: validator, oracle: oracle, notifier: notifier, cfg: cfg}
}

// SlotReport is the computed, not-stored SlotDescriptor from spec §3.
type SlotReport struct {
	Image     int
	Slot      int
	Bootable  bool
	Confirmed bool
	Active    bool
	Pending   bool
	Permanent bool
	Hash      []byte
	Version   string
}

// openValidSlot opens the area for (image, slot), reads and validates its
// header, and returns it. It reports ok=false — not an error — for
// any condition spec §4.5 treats as "skip this slot silently": area open
// failure, header read failure, magic mismatch, or validator rejection.
func (h *Handler) openValidSlot(image, slot int) (flash.Handle, manifest.Header, bool) {
	areaID, err := flash.AreaForSlot(image, slot)
	if err != nil {
		return flash.Handle{}, manifest.Header{}, false
	}
	area, err := h.reg.Open(areaID)
	if err != nil {
		return flash.Handle{}, manifest.Header{}, false
	}
	var raw [manifest.RawHeaderSize]byte
	if err := h.io.Read(area, 0, raw[:]); err != nil {
		return flash.Handle{}, manifest.Header{}, false
	}
	hdr, err := manifest.DecodeHeader(raw[:])
	if err != nil || !hdr.MagicValid() {
		return flash.Handle{}, manifest.Header{}, false
	}
	if !h.validator.Validate(h.io, area, hdr) {
		return flash.Handle{}, manifest.Header{}, false
	}
	return area, hdr, true
}

// List enumerates every image's primary and secondary slot, skipping any
// that fails to open or validate. The second return value collects
// non-fatal lookup errors (e.g. a misconfigured area table) for logging;
// it is never surfaced to the peer, since absence of a slot from the
// report is itself the signal.
func (h *Handler) List() ([]SlotReport, error) {
	var result *multierror.Error
	var reports []SlotReport

	for img := 0; img < h.cfg.NumImages; img++ {
		swap := h.oracle.SwapType(img)

		for slot := 0; slot < h.cfg.NumSlots; slot++ {
			areaID, err := flash.AreaForSlot(img, slot)
			if err == nil {
				_, err = h.reg.Open(areaID)
			}
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("image %d slot %d: %w", img, slot, err))
				continue
			}

			area, hdr, ok := h.openValidSlot(img, slot)
			if !ok {
				continue
			}

			rep := SlotReport{
				Image:    img,
				Slot:     slot,
				Version:  hdr.Version(),
				Bootable: hdr.Flags&manifest.NonBootableFlag == 0,
			}

			switch swap {
			case SwapNone:
				if slot == 0 {
					rep.Confirmed, rep.Active = true, true
				}
			case SwapTest:
				if slot == 0 {
					rep.Confirmed = true
				} else {
					rep.Pending = true
				}
			case SwapPerm:
				if slot == 0 {
					rep.Confirmed = true
				} else {
					rep.Pending, rep.Permanent = true, true
				}
			case SwapRevert:
				if slot == 0 {
					rep.Active = true
				} else {
					rep.Confirmed = true
				}
			}

			if hash, err := manifest.GetImageHash(h.io, area, hdr, h.cfg.HashAlgo); err == nil {
				rep.Hash = hash
			}

			reports = append(reports, rep)
		}
	}

	return reports, result.ErrorOrNil()
}

// SlotWire is the CBOR wire shape of one slot_map entry in a list reply.
// Boolean fields use omitempty so only true flags are serialized, per
// spec §4.5's "emit each true flag."
type SlotWire struct {
	Image     *int   `cbor:"image,omitempty"`
	Slot      int    `cbor:"slot"`
	Bootable  bool   `cbor:"bootable,omitempty"`
	Confirmed bool   `cbor:"confirmed,omitempty"`
	Active    bool   `cbor:"active,omitempty"`
	Pending   bool   `cbor:"pending,omitempty"`
	Permanent bool   `cbor:"permanent,omitempty"`
	Hash      []byte `cbor:"hash,omitempty"`
	Version   string `cbor:"version,omitempty"`
}

// ListResponse is the CBOR wire shape of a list reply.
type ListResponse struct {
	Images []SlotWire `cbor:"images"`
}

// BuildListResponse converts List's reports into their wire shape. The
// per-slot "image" key is only populated when more than one image is
// configured — spec §4.5's slot_map has no dedicated single-image case,
// but a single-image board gains nothing from repeating index 0 on every
// entry.
func (h *Handler) BuildListResponse(reports []SlotReport) ListResponse {
	out := make([]SlotWire, len(reports))
	for i, r := range reports {
		w := SlotWire{
			Slot:      r.Slot,
			Bootable:  r.Bootable,
			Confirmed: r.Confirmed,
			Active:    r.Active,
			Pending:   r.Pending,
			Permanent: r.Permanent,
			Hash:      r.Hash,
			Version:   r.Version,
		}
		if h.cfg.NumImages > 1 {
			img := r.Image
			w.Image = &img
		}
		out[i] = w
	}
	return ListResponse{Images: out}
}

// SetRequest is the decoded form of the set() payload.
type SetRequest struct {
	Confirm *bool  `cbor:"confirm"`
	Hash    []byte `cbor:"hash"`
}

// Set applies the hash-addressed pending/confirm command from spec §4.5.
// On success it returns the image index that was committed so the caller
// can build the full-list reply; on failure it returns the error that
// should be mapped to a bare {"rc": code} reply.
func (h *Handler) Set(req SetRequest) (committedImage int, err error) {
	expected := h.cfg.HashAlgo.ExpectedSize()
	if req.Hash != nil && len(req.Hash) != expected {
		return 0, rc.ErrInvalidRequest
	}
	if req.Hash == nil && h.cfg.NumImages > 1 {
		return 0, rc.ErrInvalidRequest
	}

	imageIdx := 0
	if req.Hash != nil {
		found := -1
		for img := 0; img < h.cfg.NumImages; img++ {
			area, hdr, ok := h.openValidSlot(img, 1)
			if !ok {
				continue
			}
			hash, err := manifest.GetImageHash(h.io, area, hdr, h.cfg.HashAlgo)
			if err != nil {
				continue
			}
			if bytes.Equal(hash, req.Hash) {
				found = img
				break
			}
		}
		if found == -1 {
			return 0, rc.ErrNotFound
		}
		imageIdx = found
	}

	confirm := false
	if req.Confirm != nil {
		confirm = *req.Confirm
	}

	if err := h.oracle.SetPending(imageIdx, confirm); err != nil {
		return 0, fmt.Errorf("image: set pending: %w", err)
	}

	h.notifier.Notify("image:set-pending", map[string]string{
		"image":   fmt.Sprint(imageIdx),
		"confirm": fmt.Sprint(confirm),
	})

	return imageIdx, nil
}
