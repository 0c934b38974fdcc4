package npio

import (
	"bufio"
	"io"
	"os"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// entryProducer feeds one npz entry to an archiving backend that pulls
// bytes on demand. Reads drain the npy header first and then flip to the
// element payload; the backend chooses how many bytes to pull per call.
type entryProducer struct {
	header    []byte
	payload   []byte
	off       int
	inPayload bool
	modified  time.Time
}

func newEntryProducer(arr *Array) (*entryProducer, error) {
	if arr.released {
		return nil, ErrReleased
	}
	hdr, err := encodeHeader(arr.kind, arr.wordSize, arr.shape)
	if err != nil {
		return nil, err
	}
	return &entryProducer{header: hdr, payload: arr.data, modified: time.Now()}, nil
}

// open resets the producer to the start of the header phase.
func (p *entryProducer) open() {
	p.off = 0
	p.inPayload = false
}

func (p *entryProducer) Read(buf []byte) (int, error) {
	if !p.inPayload {
		if p.off < len(p.header) {
			n := copy(buf, p.header[p.off:])
			p.off += n
			if p.off == len(p.header) {
				p.inPayload = true
				p.off = 0
			}
			return n, nil
		}
		p.inPayload = true
		p.off = 0
	}
	if p.off >= len(p.payload) {
		return 0, io.EOF
	}
	n := copy(buf, p.payload[p.off:])
	p.off += n
	return n, nil
}

// size reports the total entry length, header included.
func (p *entryProducer) size() int64 {
	return int64(len(p.header) + len(p.payload))
}

// ArchiveWriter streams npz entries through an archiving backend that keeps
// the central directory bookkeeping to itself. Entries are stored
// uncompressed.
type ArchiveWriter struct {
	f  *os.File
	bw *bufio.Writer
	zw *zip.Writer
}

// NewArchiveWriter creates a fresh archive at path.
func NewArchiveWriter(path string) (*ArchiveWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "npz create")
	}
	bw := bufio.NewWriter(f)
	return &ArchiveWriter{f: f, bw: bw, zw: zip.NewWriter(bw)}, nil
}

// Add writes arr as the named entry. The backend pulls header and payload
// bytes from the producer in chunks of its own choosing.
func (w *ArchiveWriter) Add(name string, arr *Array) error {
	p, err := newEntryProducer(arr)
	if err != nil {
		return errors.Wrapf(err, "npz add %q", name)
	}
	p.open()

	ew, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name + npySuffix,
		Method:   zip.Store,
		Modified: p.modified,
	})
	if err != nil {
		return errors.Wrapf(err, "npz add %q", name)
	}
	n, err := io.Copy(ew, p)
	if err != nil {
		return errors.Wrapf(err, "npz add %q", name)
	}
	if n != p.size() {
		return errors.Wrapf(ErrPartialWrite, "npz add %q: wrote %d of %d bytes", name, n, p.size())
	}
	glog.V(2).Infof("Added entry %q (%d bytes)", name, n)
	return nil
}

// Close finishes the central directory and flushes the archive.
func (w *ArchiveWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "npz close")
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "npz close")
	}
	return errors.Wrap(w.f.Close(), "npz close")
}

// WriteNPZ writes every array in arrays to a fresh archive at path, in
// name order.
func WriteNPZ(path string, arrays Arrays) error {
	w, err := NewArchiveWriter(path)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := w.Add(name, arrays[name]); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
