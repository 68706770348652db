// Package transport is smpctl's SMP-over-UDP client: it frames a request
// with the same 8-byte header the dispatch loop decodes, round-trips it
// over a UDP socket, and hands back the decoded response frame. It knows
// nothing about CBOR payload shapes — that's each subcommand's job.
package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/openenterprise/smpboot/smp"
)

// Client is a single SMP peer connection. Not safe for concurrent use —
// each smpctl invocation issues one request at a time.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	seq     uint8
}

// Dial opens a UDP socket to addr (host:port). timeout bounds both the
// write and the reply read on every Call.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error { return c.conn.Close() }

// Call sends one request and waits for its matching reply, validating
// that the echoed sequence number round-trips per spec §8 property 7.
func (c *Client) Call(op uint8, group uint16, id uint8, payload []byte) (smp.Header, []byte, error) {
	c.seq++
	seq := c.seq

	req := smp.Header{Op: op, Length: uint16(len(payload)), Group: group, Seq: seq, ID: id}
	hdr := req.Encode()
	datagram := make([]byte, 0, smp.HeaderSize+len(payload))
	datagram = append(datagram, hdr[:]...)
	datagram = append(datagram, payload...)

	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return smp.Header{}, nil, err
	}
	if _, err := c.conn.Write(datagram); err != nil {
		return smp.Header{}, nil, fmt.Errorf("transport: write: %w", err)
	}

	buf := make([]byte, 2048)
	n, err := c.conn.Read(buf)
	if err != nil {
		return smp.Header{}, nil, fmt.Errorf("transport: read: %w", err)
	}

	frame, ok := smp.DecodeFrame(buf[:n])
	if !ok {
		return smp.Header{}, nil, fmt.Errorf("transport: malformed response datagram")
	}
	if frame.Header.Seq != seq {
		return smp.Header{}, nil, fmt.Errorf("transport: sequence mismatch: got %d want %d", frame.Header.Seq, seq)
	}
	return frame.Header, frame.Payload, nil
}
