// Package dispatch implements the datagram receive loop and routing
// table (DL): the single cooperative goroutine that ties the SMP framer
// to the image, upload, and slotinfo handlers, and triggers a controlled
// reboot on request.
package dispatch

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/openenterprise/smpboot/image"
	"github.com/openenterprise/smpboot/rc"
	"github.com/openenterprise/smpboot/slotinfo"
	"github.com/openenterprise/smpboot/smp"
	"github.com/openenterprise/smpboot/upload"
	wirecbor "github.com/openenterprise/smpboot/wire/cbor"
)

// Rebooter is the out-of-scope reboot primitive, generalized from the
// teacher's ota.RebootToPartition/ota.Reboot pair into an interface so
// this package has no hardware dependency.
type Rebooter interface {
	Reboot()
}

// Config bounds datagram and response sizes and the post-reset delay.
type Config struct {
	MaxDatagramSize    int
	MaxResponsePayload int
	ResetDelay         time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxDatagramSize == 0 {
		c.MaxDatagramSize = 2048
	}
	if c.MaxResponsePayload == 0 {
		c.MaxResponsePayload = 1024
	}
	if c.ResetDelay == 0 {
		c.ResetDelay = 250 * time.Millisecond
	}
	return c
}

// Stats is the ambient diagnostics accessor described in spec §6.
type Stats struct {
	Received       uint64
	Dropped        uint64
	Replied        uint64
	LastClientAddr net.Addr
}

// Loop owns the datagram socket and drives every handler to completion
// before accepting the next datagram, matching spec §5's single-threaded
// cooperative model.
type Loop struct {
	conn     net.PacketConn
	image    *image.Handler
	upload   *upload.Machine
	slotinfo *slotinfo.Handler
	rebooter Rebooter
	enc      *wirecbor.Encoder
	logger   *slog.Logger
	cfg      Config

	mu    sync.Mutex
	stats Stats
}

// New builds a Loop. logger may be nil, in which case slog.Default() is
// used.
func New(conn net.PacketConn, img *image.Handler, up *upload.Machine, si *slotinfo.Handler, rebooter Rebooter, cfg Config, logger *slog.Logger) *Loop {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		conn:     conn,
		image:    img,
		upload:   up,
		slotinfo: si,
		rebooter: rebooter,
		enc:      wirecbor.NewEncoder(cfg.MaxResponsePayload),
		logger:   logger,
		cfg:      cfg,
	}
}

// Stats returns a snapshot of the loop's counters. Safe to call from a
// goroutine other than the one running Run.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Run drives the receive loop until the read deadline elapses with no
// activity — per spec §4.8, a timeout is not an error, it hands control
// back to the rest of the bootloader ("no activity → boot normally").
// Any other receive error is logged and the loop continues.
func (l *Loop) Run(readTimeout time.Duration) error {
	buf := make([]byte, l.cfg.MaxDatagramSize)

	for {
		if err := l.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil
			}
			l.logger.Error("dispatch:recv-error", "error", err)
			continue
		}

		l.mu.Lock()
		l.stats.Received++
		l.stats.LastClientAddr = addr
		l.mu.Unlock()

		frame, ok := smp.DecodeFrame(buf[:n])
		if !ok {
			l.mu.Lock()
			l.stats.Dropped++
			l.mu.Unlock()
			continue
		}

		l.handle(frame, addr)
	}
}

func (l *Loop) handle(frame smp.Frame, addr net.Addr) {
	h := frame.Header

	if h.Group == smp.GroupOS && h.ID == smp.IDReset {
		l.handleReset(h, addr)
		return
	}

	payload, code := l.route(h, frame.Payload)
	l.reply(h, addr, payload, code)
}

func (l *Loop) route(h smp.Header, payload []byte) ([]byte, int) {
	switch {
	case h.Group == smp.GroupOS && h.ID == smp.IDParams:
		l.enc.Reset()
		if err := l.enc.Encode(l.slotinfo.Params()); err != nil {
			l.enc.Reset()
			return nil, rc.NOMEM
		}
		return l.enc.Bytes(), rc.OK

	case h.Group == smp.GroupImage && h.ID == smp.IDImageState:
		if h.Op == smp.OpRead {
			return l.handleList()
		}
		return l.handleSet(payload)

	case h.Group == smp.GroupImage && h.ID == smp.IDImageUpload:
		return l.handleUpload(payload)

	case h.Group == smp.GroupImage && h.ID == smp.IDImageSlotInfo:
		if h.Op != smp.OpRead {
			return nil, rc.ENOTSUP
		}
		out, code := l.slotinfo.EncodeSlotInfo(l.enc)
		return out, code

	default:
		l.logger.Info("dispatch:unroutable", "group", h.Group, "id", h.ID)
		return nil, rc.ENOTSUP
	}
}

func (l *Loop) handleList() ([]byte, int) {
	reports, err := l.image.List()
	if err != nil {
		l.logger.Warn("dispatch:list-scan-errors", "error", err)
	}
	l.enc.Reset()
	if err := l.enc.Encode(l.image.BuildListResponse(reports)); err != nil {
		l.enc.Reset()
		return nil, rc.NOMEM
	}
	return l.enc.Bytes(), rc.OK
}

func (l *Loop) handleSet(payload []byte) ([]byte, int) {
	var req image.SetRequest
	if err := wirecbor.Decode(payload, &req); err != nil {
		return nil, rc.EINVAL
	}

	if _, err := l.image.Set(req); err != nil {
		return nil, rc.FromError(err)
	}

	return l.handleList()
}

type uploadWire struct {
	RC  int     `cbor:"rc"`
	Off *uint32 `cbor:"off,omitempty"`
}

func (l *Loop) handleUpload(payload []byte) ([]byte, int) {
	var req upload.Request
	if err := wirecbor.Decode(payload, &req); err != nil {
		return nil, rc.EINVAL
	}

	resp := l.upload.HandleChunk(req)

	l.enc.Reset()
	wire := uploadWire{RC: resp.RC}
	if resp.RC == rc.OK {
		off := resp.Off
		wire.Off = &off
	}
	if err := l.enc.Encode(wire); err != nil {
		l.enc.Reset()
		return nil, rc.NOMEM
	}
	return l.enc.Bytes(), resp.RC
}

func (l *Loop) handleReset(h smp.Header, addr net.Addr) {
	ack := smp.EncodeResponse(h, nil)
	if _, err := l.conn.WriteTo(ack, addr); err != nil {
		l.logger.Error("dispatch:reset-ack-failed", "error", err)
		return
	}
	l.mu.Lock()
	l.stats.Replied++
	l.mu.Unlock()

	l.logger.Info("dispatch:reset-requested")
	time.Sleep(l.cfg.ResetDelay)
	l.rebooter.Reboot()
}

// reply encodes and sends a bare {"rc": code} when code != OK, or the
// handler's own payload (which already embeds "rc" for upload, or
// carries no rc field at all for list/slot_info/params success
// payloads, matching spec §6's "either a well-formed SMP response ...
// or no response").
func (l *Loop) reply(h smp.Header, addr net.Addr, payload []byte, code int) {
	var out []byte
	if code != rc.OK {
		l.enc.Reset()
		_ = l.enc.Encode(struct {
			RC int `cbor:"rc"`
		}{RC: code})
		out = l.enc.Bytes()
	} else {
		out = payload
	}

	datagram := smp.EncodeResponse(h, out)
	if _, err := l.conn.WriteTo(datagram, addr); err != nil {
		l.logger.Error("dispatch:send-failed", "error", err)
		return
	}
	l.mu.Lock()
	l.stats.Replied++
	l.mu.Unlock()
}
