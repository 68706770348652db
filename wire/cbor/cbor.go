// Package cbor is the CBOR codec shim described in spec §4, built on
// fxamacker/cbor/v2 (the same library the SMP-over-Bluetooth reference
// implementation in the retrieval pack uses) rather than a hand-rolled
// encoder. It adds the one piece of behavior spec §4.7/§9 asks for that
// the library doesn't provide out of the box: a bounded scratch buffer
// that can be reset and re-encoded into on overflow, so a handler can
// recover by emitting a minimal {"rc": ENOMEM} reply instead of panicking
// or truncating a half-written response.
package cbor

import (
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// ErrOverflow is returned by Encoder.Encode when the marshaled payload
// would exceed the configured maximum response size.
var ErrOverflow = errors.New("cbor: response exceeds maximum payload size")

// Encoder holds the single scratch buffer shared across one response, per
// spec §5's "the CBOR scratch buffer is reset at the start of every
// response to prevent cross-request leakage."
type Encoder struct {
	max int
	buf []byte
}

// NewEncoder returns an Encoder bounded to maxPayload bytes.
func NewEncoder(maxPayload int) *Encoder {
	return &Encoder{max: maxPayload}
}

// Reset clears the scratch buffer, leaving the Encoder ready for the next
// response.
func (e *Encoder) Reset() { e.buf = nil }

// Size reports the length of the currently held payload.
func (e *Encoder) Size() int { return len(e.buf) }

// Bytes returns the currently held payload.
func (e *Encoder) Bytes() []byte { return e.buf }

// Encode marshals v as a CBOR map and stores the result in the scratch
// buffer. On overflow the buffer is reset (so a stale partial payload can
// never leak into the next response) and ErrOverflow is returned; the
// caller is expected to fall back to a minimal error reply.
func (e *Encoder) Encode(v interface{}) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		e.Reset()
		return err
	}
	if len(data) > e.max {
		e.Reset()
		return ErrOverflow
	}
	e.buf = data
	return nil
}

// Decode unmarshals a CBOR payload into v.
func Decode(payload []byte, v interface{}) error {
	return cbor.Unmarshal(payload, v)
}
