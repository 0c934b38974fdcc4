// Package wire provides little-endian serialization helpers for the fixed
// binary records of the npy and zip container formats.
package wire

import "encoding/binary"

// Buffer accumulates the fields of a binary record in order.
type Buffer struct {
	b []byte
}

// Uint16 appends v in little-endian byte order.
func (w *Buffer) Uint16(v uint16) {
	w.b = binary.LittleEndian.AppendUint16(w.b, v)
}

// Uint32 appends v in little-endian byte order.
func (w *Buffer) Uint32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

// Raw appends p verbatim.
func (w *Buffer) Raw(p []byte) {
	w.b = append(w.b, p...)
}

// Str appends the bytes of s verbatim.
func (w *Buffer) Str(s string) {
	w.b = append(w.b, s...)
}

func (w *Buffer) Len() int {
	return len(w.b)
}

func (w *Buffer) Bytes() []byte {
	return w.b
}

// U16 reads a little-endian uint16 at off.
func U16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

// U32 reads a little-endian uint32 at off.
func U32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}
