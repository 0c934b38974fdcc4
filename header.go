package npio

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/npiolab/npio/internal/wire"
)

var npyMagic = [6]byte{'\x93', 'N', 'U', 'M', 'P', 'Y'}

const (
	npyMajorVersion = 1
	npyMinorVersion = 0

	// Magic, two version bytes, and the uint16 dictionary length.
	npyPreambleSize = 10
)

// npyHeader is the decoded form of an npy file header.
type npyHeader struct {
	wordSize int
	shape    []int
	fortran  bool
	code     byte

	// length is the total encoded size, preamble included. Always a
	// multiple of 16.
	length int
}

// encodeHeader renders the preamble and header dictionary for a
// little-endian, row-major array. The result is padded with spaces so its
// total length is a multiple of 16 bytes and ends with a newline.
func encodeHeader(kind Kind, wordSize int, shape []int) ([]byte, error) {
	code, _ := kind.class()
	if code == 0 {
		return nil, errors.Wrap(ErrUnknownDtype, "cannot encode a void header")
	}

	var dict strings.Builder
	dict.WriteString("{'descr': '<")
	dict.WriteByte(code)
	dict.WriteString(strconv.Itoa(wordSize))
	dict.WriteString("', 'fortran_order': False, 'shape': (")
	for i, d := range shape {
		if i > 0 {
			dict.WriteString(", ")
		}
		dict.WriteString(strconv.Itoa(d))
	}
	if len(shape) == 1 {
		// One-tuples render with a trailing comma.
		dict.WriteString(",")
	}
	dict.WriteString("), }")

	pad := 16 - (npyPreambleSize+dict.Len())%16
	d := []byte(dict.String() + strings.Repeat(" ", pad))
	d[len(d)-1] = '\n'

	var w wire.Buffer
	w.Raw(npyMagic[:])
	w.Raw([]byte{npyMajorVersion, npyMinorVersion})
	w.Uint16(uint16(len(d)))
	w.Raw(d)
	return w.Bytes(), nil
}

// decodeHeader reads and parses an npy header from r, leaving r positioned
// at the first element byte.
func decodeHeader(r io.Reader) (*npyHeader, error) {
	var pre [npyPreambleSize]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, errors.Wrapf(ErrMalformedHeader, "preamble read: %v", err)
	}
	if !bytes.Equal(pre[:6], npyMagic[:]) {
		return nil, errors.Wrap(ErrMalformedHeader, "bad magic")
	}

	dictLen := int(wire.U16(pre[:], 8))
	dict := make([]byte, dictLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return nil, errors.Wrapf(ErrMalformedHeader, "dictionary read: %v", err)
	}
	if dictLen == 0 || dict[dictLen-1] != '\n' {
		return nil, errors.Wrap(ErrMalformedHeader, "missing terminating newline")
	}
	header := string(dict)

	h := &npyHeader{length: npyPreambleSize + dictLen}

	// The boolean literal sits at a fixed offset past the label.
	loc := strings.Index(header, "fortran_order")
	if loc < 0 {
		return nil, errors.Wrap(ErrMalformedHeader, "missing fortran_order")
	}
	loc += len("fortran_order") + 3
	if loc+4 > len(header) {
		return nil, errors.Wrap(ErrMalformedHeader, "truncated fortran_order")
	}
	h.fortran = header[loc:loc+4] == "True"

	lparen := strings.IndexByte(header, '(')
	rparen := strings.IndexByte(header, ')')
	if lparen < 0 || rparen < lparen {
		return nil, errors.Wrap(ErrMalformedHeader, "missing shape tuple")
	}
	shapeStr := strings.TrimSuffix(header[lparen+1:rparen], ",")
	for _, s := range strings.Split(shapeStr, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || d < 0 {
			return nil, errors.Wrapf(ErrMalformedHeader, "bad shape dimension %q", s)
		}
		h.shape = append(h.shape, d)
	}

	loc = strings.Index(header, "descr")
	if loc < 0 {
		return nil, errors.Wrap(ErrMalformedHeader, "missing descr")
	}
	loc += len("descr") + 4
	if loc+2 >= len(header) {
		return nil, errors.Wrap(ErrMalformedHeader, "truncated descr")
	}
	switch header[loc] {
	case '<', '|':
		// Little-endian, or byte order not applicable.
	case '>':
		return nil, ErrBigEndian
	default:
		return nil, errors.Wrapf(ErrMalformedHeader, "unexpected byte order marker %q", header[loc])
	}
	h.code = header[loc+1]

	rest := header[loc+2:]
	q := strings.IndexByte(rest, '\'')
	if q < 0 {
		return nil, errors.Wrap(ErrMalformedHeader, "unterminated descr")
	}
	ws, err := strconv.Atoi(rest[:q])
	if err != nil || ws <= 0 {
		return nil, errors.Wrapf(ErrMalformedHeader, "bad element width %q", rest[:q])
	}
	h.wordSize = ws

	return h, nil
}
