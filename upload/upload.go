// Package upload implements the resumable, chunked image-upload state
// machine (USM): the most delicate piece of the dispatch core, since a
// wedged cursor or a misapplied alignment pad can brick the secondary
// slot it writes into.
package upload

import (
	"fmt"
	"log/slog"

	"github.com/openenterprise/smpboot/flash"
	"github.com/openenterprise/smpboot/rc"
)

// IndicatorFunc toggles an optional external indication signal (e.g. an
// LED) each time the integer upload percentage changes (once per change,
// however many points it moved). Machine calls it with alternating
// true/false on every change; a nil value is treated as a no-op.
type IndicatorFunc func(on bool)

// SwapOracle is the subset of the image package's oracle the upload
// machine needs to mark a freshly committed image for test boot.
type SwapOracle interface {
	SetPending(image int, permanent bool) error
}

// PostUploadHook runs once the final byte of an image has been
// committed, before SetPending is invoked. A non-nil error becomes the
// reply's rc and SetPending is not called — a hook failure (for example
// a post-install checksum recompute) must not leave a pending image with
// a failed hook silently marked for boot.
type PostUploadHook func(imageNum int) error

// Cursor is the per-upload state carried across requests. Spec's design
// note calls the equivalent state "process-wide, singleton" on the
// original target; here it is a plain struct field owned by Machine
// rather than a package global, so a Machine is safe to embed in a
// dispatcher without coordinating hidden shared state.
type Cursor struct {
	active     bool
	imageNum   int
	imageSize  uint32
	currOffset uint32
	area       flash.Handle
	lastPct    int
	indicateOn bool
}

// Request is the decoded form of an upload chunk's CBOR payload.
type Request struct {
	Image *uint32 `cbor:"image"`
	Data  []byte  `cbor:"data"`
	Len   *uint32 `cbor:"len"`
	Off   *uint32 `cbor:"off"`
}

// Response is what HandleChunk returns; the dispatcher is responsible
// for encoding it, omitting Off when RC != 0 per spec §4.6.
type Response struct {
	RC  int
	Off uint32
}

// StateNotifier receives a best-effort notification when an upload
// completes. Implementations must not block HandleChunk on network I/O;
// a no-op default is used when none is configured. Shares its shape with
// image.StateNotifier so a single notify.MQTTNotifier satisfies both.
type StateNotifier interface {
	Notify(event string, attrs map[string]string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, map[string]string) {}

// Machine implements the upload state machine described in spec §4.6.
type Machine struct {
	reg       *flash.Registry
	io        *flash.IO
	oracle    SwapOracle
	hook      PostUploadHook
	indicator IndicatorFunc
	notifier  StateNotifier
	logger    *slog.Logger

	cursor Cursor
}

// New builds a Machine. hook and indicator may be nil.
func New(reg *flash.Registry, io *flash.IO, oracle SwapOracle, hook PostUploadHook, indicator IndicatorFunc, logger *slog.Logger) *Machine {
	if indicator == nil {
		indicator = func(bool) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{reg: reg, io: io, oracle: oracle, hook: hook, indicator: indicator, notifier: noopNotifier{}, logger: logger}
}

// SetNotifier configures the sink notified on upload completion. Passing
// nil restores the no-op default.
func (m *Machine) SetNotifier(n StateNotifier) {
	if n == nil {
		n = noopNotifier{}
	}
	m.notifier = n
}

// HandleChunk applies one upload request to the cursor and returns the
// reply to send, implementing spec §4.6 steps 1-8.
func (m *Machine) HandleChunk(req Request) Response {
	if req.Data == nil || req.Off == nil {
		return Response{RC: rc.FromError(rc.ErrInvalidRequest)}
	}
	off := *req.Off
	chunkLen := uint32(len(req.Data))

	if off == 0 {
		imgNum := 0
		if req.Image != nil {
			imgNum = int(*req.Image)
		}
		if req.Len == nil {
			return Response{RC: rc.FromError(rc.ErrInvalidRequest)}
		}
		imgSize := *req.Len

		areaID, err := flash.AreaForSlot(imgNum, 1)
		if err != nil {
			return Response{RC: rc.FromError(rc.ErrInvalidRequest)}
		}
		area, err := m.reg.Open(areaID)
		if err != nil {
			return Response{RC: rc.FromError(rc.ErrInvalidRequest)}
		}
		if imgSize > area.Size() {
			return Response{RC: rc.FromError(rc.ErrInvalidRequest)}
		}
		if err := m.io.Erase(area, 0, area.Size()); err != nil {
			return Response{RC: rc.FromError(fmt.Errorf("upload: erase: %w", err))}
		}

		m.cursor = Cursor{active: true, imageNum: imgNum, imageSize: imgSize, currOffset: 0, area: area}
		m.logger.Info("upload:erase", "image", imgNum, "size", imgSize)
	} else if !m.cursor.active || off != m.cursor.currOffset {
		// Idempotent replay: either a retransmit of a chunk we already
		// committed, or a chunk that arrived before the opening off==0
		// request. Neither case writes anything.
		return Response{RC: rc.OK, Off: m.cursor.currOffset}
	}

	if m.cursor.currOffset+chunkLen > m.cursor.imageSize {
		return Response{RC: rc.FromError(rc.ErrInvalidRequest)}
	}

	align := m.cursor.area.Align()
	rem := chunkLen % align
	isFinal := m.cursor.currOffset+chunkLen == m.cursor.imageSize

	writeLen := chunkLen - rem
	if err := m.io.Write(m.cursor.area, m.cursor.currOffset, req.Data[:writeLen]); err != nil {
		return Response{RC: rc.FromError(fmt.Errorf("upload: write: %w", err))}
	}

	committed := writeLen
	if isFinal && rem > 0 {
		pad := make([]byte, align)
		for i := range pad {
			pad[i] = flash.ErasedValue
		}
		copy(pad, req.Data[writeLen:])
		padOff := m.cursor.currOffset + writeLen
		if err := m.io.Write(m.cursor.area, padOff, pad); err != nil {
			return Response{RC: rc.FromError(fmt.Errorf("upload: write tail: %w", err))}
		}
		committed = chunkLen
	}

	m.cursor.currOffset += committed
	m.reportProgress()

	if m.cursor.currOffset == m.cursor.imageSize {
		if m.hook != nil {
			if err := m.hook(m.cursor.imageNum); err != nil {
				return Response{RC: rc.FromError(fmt.Errorf("upload: post-upload hook: %w", err))}
			}
		}
		if err := m.oracle.SetPending(m.cursor.imageNum, true); err != nil {
			return Response{RC: rc.FromError(fmt.Errorf("upload: set pending: %w", err))}
		}
		m.notifier.Notify("upload:complete", map[string]string{
			"image": fmt.Sprint(m.cursor.imageNum),
			"size":  fmt.Sprint(m.cursor.imageSize),
		})
	}

	return Response{RC: rc.OK, Off: m.cursor.currOffset}
}

func (m *Machine) reportProgress() {
	if m.cursor.imageSize == 0 {
		return
	}
	pct := int(uint64(m.cursor.currOffset) * 100 / uint64(m.cursor.imageSize))
	if pct == m.cursor.lastPct {
		return
	}
	m.cursor.lastPct = pct
	m.cursor.indicateOn = !m.cursor.indicateOn
	m.indicator(m.cursor.indicateOn)
	m.logger.Info("upload:progress", "image", m.cursor.imageNum, "percent", pct, "offset", m.cursor.currOffset)
}

// Active reports whether an upload is currently in progress.
func (m *Machine) Active() bool { return m.cursor.active }
