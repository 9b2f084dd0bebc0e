package protocol

import (
	"encoding/binary"
	"fmt"
)

// reader walks a big-endian payload. The first short read latches err and
// every later call returns zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: %s needs %d bytes at offset %d, have %d", ErrShortPayload, what, n, r.off, len(r.buf)-r.off)
		return false
	}
	return true
}

func (r *reader) u8(what string) byte {
	if !r.need(1, what) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u16(what string) uint16 {
	if !r.need(2, what) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) i16(what string) int16 {
	return int16(r.u16(what))
}

func (r *reader) i32(what string) int32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return int32(v)
}

func (r *reader) bytes(n int, what string) []byte {
	if !r.need(n, what) {
		return nil
	}
	v := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return v
}

func (r *reader) string16(what string) string {
	n := r.u16(what + " length")
	return string(r.bytes(int(n), what))
}

// done reports the latched error, or ErrTrailingData if bytes remain.
func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, len(r.buf)-r.off)
	}
	return nil
}
