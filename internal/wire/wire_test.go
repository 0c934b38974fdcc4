package wire

import (
	"bytes"
	"testing"
)

func TestBufferLittleEndian(t *testing.T) {
	var w Buffer
	w.Str("PK")
	w.Uint16(0x0403)
	w.Uint32(0xdeadbeef)
	w.Raw([]byte{0xff})

	want := []byte{'P', 'K', 0x03, 0x04, 0xef, 0xbe, 0xad, 0xde, 0xff}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Bytes() = % x, expected % x", w.Bytes(), want)
	}
	if w.Len() != len(want) {
		t.Errorf("Len() = %d, expected %d", w.Len(), len(want))
	}
}

func TestReadBack(t *testing.T) {
	var w Buffer
	w.Uint16(0x1234)
	w.Uint32(0x56789abc)

	b := w.Bytes()
	if got := U16(b, 0); got != 0x1234 {
		t.Errorf("U16 = %#x, expected 0x1234", got)
	}
	if got := U32(b, 2); got != 0x56789abc {
		t.Errorf("U32 = %#x, expected 0x56789abc", got)
	}
}
