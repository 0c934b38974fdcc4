package npio

import (
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Mode selects how save operations treat an existing file.
type Mode int

const (
	// Overwrite replaces the target file or archive entry set.
	Overwrite Mode = iota
	// Append grows an existing npy file along its leading dimension, or
	// adds an entry to an existing npz archive.
	Append
)

// NpyLoad reads a complete .npy file into an Array.
func NpyLoad(path string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "npy load")
	}
	defer f.Close()

	arr, err := readNpy(f)
	if err != nil {
		return nil, errors.Wrapf(err, "npy load %s", path)
	}
	return arr, nil
}

// readNpy decodes one complete npy stream: header, then exactly the element
// bytes the header declares.
func readNpy(r io.Reader) (*Array, error) {
	h, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}
	kind, err := kindOf(h.code, h.wordSize)
	if err != nil {
		return nil, err
	}
	data := make([]byte, numElements(h.shape)*h.wordSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrapf(err, "reading %d element bytes", len(data))
	}
	return &Array{
		data:     data,
		shape:    h.shape,
		wordSize: h.wordSize,
		kind:     kind,
		fortran:  h.fortran,
	}, nil
}

// NpySave writes arr to path. With Append and an existing target, the new
// data is appended along the leading dimension; the element width and every
// trailing dimension must match the file exactly, and nothing is written if
// they do not.
func NpySave(path string, arr *Array, mode Mode) error {
	if arr.released {
		return errors.Wrapf(ErrReleased, "npy save %s", path)
	}

	if mode == Append {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		switch {
		case err == nil:
			if err := appendNpy(f, path, arr); err != nil {
				f.Close()
				return err
			}
			return errors.Wrapf(f.Close(), "npy append %s", path)
		case !os.IsNotExist(err):
			return errors.Wrap(err, "npy append")
		}
		// No existing file; fall through to a fresh write.
	}

	hdr, err := encodeHeader(arr.kind, arr.wordSize, arr.shape)
	if err != nil {
		return errors.Wrapf(err, "npy save %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "npy save")
	}
	if err := writeAll(f, hdr, arr.data); err != nil {
		f.Close()
		return errors.Wrapf(err, "npy save %s", path)
	}
	glog.V(2).Infof("Wrote %v array of shape %v to %v", arr.kind, arr.shape, path)
	return errors.Wrapf(f.Close(), "npy save %s", path)
}

// appendNpy grows the leading dimension of the npy file open in f and
// appends arr's element bytes. f is positioned at the start of the file.
func appendNpy(f *os.File, path string, arr *Array) error {
	h, err := decodeHeader(f)
	if err != nil {
		return errors.Wrapf(err, "npy append %s", path)
	}
	if h.fortran {
		return errors.Errorf("npy append %s: cannot append to a fortran-order file", path)
	}
	if h.wordSize != arr.wordSize {
		return &DtypeMismatchError{Path: path, Want: h.wordSize, Got: arr.wordSize}
	}
	if len(h.shape) != len(arr.shape) {
		return &RankMismatchError{Path: path, Want: len(h.shape), Got: len(arr.shape)}
	}
	for i := 1; i < len(arr.shape); i++ {
		if arr.shape[i] != h.shape[i] {
			return &ShapeMismatchError{Path: path, Dim: i, Want: h.shape[i], Got: arr.shape[i]}
		}
	}

	grown := append([]int(nil), h.shape...)
	grown[0] += arr.shape[0]

	hdr, err := encodeHeader(arr.kind, arr.wordSize, grown)
	if err != nil {
		return errors.Wrapf(err, "npy append %s", path)
	}

	if len(hdr) != h.length {
		// The leading dimension gained a decimal digit, so the new header
		// no longer fits the old slot. Shift the payload by rewriting the
		// whole file rather than overlapping the first element bytes.
		glog.V(1).Infof("Rewriting %v: header grew from %d to %d bytes", path, h.length, len(hdr))
		payload, err := io.ReadAll(f)
		if err != nil {
			return errors.Wrapf(err, "npy append %s", path)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "npy append")
		}
		if err := writeAll(f, hdr, payload, arr.data); err != nil {
			return errors.Wrapf(err, "npy append %s", path)
		}
		// The old header may have carried more padding than the fresh one.
		if err := f.Truncate(int64(len(hdr) + len(payload) + len(arr.data))); err != nil {
			return errors.Wrap(err, "npy append")
		}
		return nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "npy append")
	}
	if err := writeAll(f, hdr); err != nil {
		return errors.Wrapf(err, "npy append %s", path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "npy append")
	}
	if err := writeAll(f, arr.data); err != nil {
		return errors.Wrapf(err, "npy append %s", path)
	}
	glog.V(2).Infof("Appended %d rows to %v, now shape %v", arr.shape[0], path, grown)
	return nil
}

// writeAll writes each buffer fully, failing on any short write.
func writeAll(w io.Writer, bufs ...[]byte) error {
	for _, b := range bufs {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n < len(b) {
			return errors.Wrapf(ErrPartialWrite, "wrote %d of %d bytes", n, len(b))
		}
	}
	return nil
}
