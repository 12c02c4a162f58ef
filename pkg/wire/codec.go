package wire

import (
	"encoding/binary"
	"io"
)

// reader walks a frame body left to right. All multi-byte integers on the
// wire are little-endian.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, &Error{Kind: ErrShortBuffer, Inner: io.ErrUnexpectedEOF}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// writer accumulates a frame body left to right.
type writer struct {
	buf []byte
}

func (w *writer) u8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}
