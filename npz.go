package npio

import (
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/npiolab/npio/internal/wire"
)

const (
	npySuffix = ".npy"

	zipLocalHeaderSize   = 30
	zipCentralHeaderSize = 46
	zipFooterSize        = 22
	zipVersion           = 20

	// General purpose flag bit 3: sizes and CRC follow the payload in a
	// data descriptor. Streaming backends set this.
	zipFlagDataDescriptor = 0x8
)

// localEntry describes one local file record, with the reader positioned at
// the start of its payload.
type localEntry struct {
	name          string
	size          uint32 // uncompressed size; zero for streamed entries
	hasDescriptor bool
}

// nextEntry reads the next local file header from r. It returns nil once
// the central directory is reached.
func nextEntry(r io.Reader) (*localEntry, error) {
	var hdr [zipLocalHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "local header read: %v", err)
	}
	if hdr[0] != 'P' || hdr[1] != 'K' {
		return nil, errors.Wrap(ErrMalformedArchive, "bad record signature")
	}
	if hdr[2] != 0x03 || hdr[3] != 0x04 {
		return nil, nil
	}

	nameLen := int(wire.U16(hdr[:], 26))
	extraLen := int(wire.U16(hdr[:], 28))
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "entry name read: %v", err)
	}
	if extraLen > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extraLen)); err != nil {
			return nil, errors.Wrapf(ErrMalformedArchive, "extra field read: %v", err)
		}
	}

	return &localEntry{
		name:          string(name),
		size:          wire.U32(hdr[:], 22),
		hasDescriptor: wire.U16(hdr[:], 6)&zipFlagDataDescriptor != 0,
	}, nil
}

// skipDescriptor consumes the data descriptor trailing a streamed entry's
// payload. The leading signature is optional.
func skipDescriptor(r io.Reader) error {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.Wrapf(ErrMalformedArchive, "data descriptor read: %v", err)
	}
	// CRC plus the two size fields; the first word may have been the
	// optional PK\x07\x08 signature instead of the CRC.
	rest := int64(8)
	if buf[0] == 'P' && buf[1] == 'K' && buf[2] == 0x07 && buf[3] == 0x08 {
		rest = 12
	}
	if _, err := io.CopyN(io.Discard, r, rest); err != nil {
		return errors.Wrapf(ErrMalformedArchive, "data descriptor read: %v", err)
	}
	return nil
}

// NpzLoad reads every entry of the archive at path. Duplicate entry names
// are rejected rather than silently shadowed.
func NpzLoad(path string) (Arrays, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "npz load")
	}
	defer f.Close()

	arrays := make(Arrays)
	for {
		e, err := nextEntry(f)
		if err != nil {
			return nil, errors.Wrapf(err, "npz load %s", path)
		}
		if e == nil {
			break
		}
		name := strings.TrimSuffix(e.name, npySuffix)
		if _, ok := arrays[name]; ok {
			return nil, errors.Wrapf(ErrDuplicateEntry, "npz load %s: %q", path, name)
		}
		arr, err := readNpy(f)
		if err != nil {
			return nil, errors.Wrapf(err, "npz load %s: entry %q", path, name)
		}
		if e.hasDescriptor {
			if err := skipDescriptor(f); err != nil {
				return nil, errors.Wrapf(err, "npz load %s: entry %q", path, name)
			}
		}
		glog.V(2).Infof("Loaded entry %q: %v %v", name, arr.kind, arr.shape)
		arrays[name] = arr
	}

	return arrays, nil
}

// NpzLoadEntry reads the single named entry from the archive at path,
// skipping over the payload of every other entry.
func NpzLoadEntry(path, name string) (*Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "npz load")
	}
	defer f.Close()

	for {
		e, err := nextEntry(f)
		if err != nil {
			return nil, errors.Wrapf(err, "npz load %s", path)
		}
		if e == nil {
			break
		}
		if strings.TrimSuffix(e.name, npySuffix) == name {
			arr, err := readNpy(f)
			if err != nil {
				return nil, errors.Wrapf(err, "npz load %s: entry %q", path, name)
			}
			return arr, nil
		}
		if err := skipPayload(f, e); err != nil {
			return nil, errors.Wrapf(err, "npz load %s: entry %q", path, e.name)
		}
	}

	return nil, errors.Wrapf(ErrEntryNotFound, "npz load %s: %q", path, name)
}

// skipPayload advances f past the current entry's payload. Streamed entries
// declare no size up front, so their length is recovered from the npy
// header they contain.
func skipPayload(f *os.File, e *localEntry) error {
	if e.size > 0 {
		if _, err := f.Seek(int64(e.size), io.SeekCurrent); err != nil {
			return errors.Wrap(err, "payload seek")
		}
	} else if e.hasDescriptor {
		h, err := decodeHeader(f)
		if err != nil {
			return err
		}
		if _, err := f.Seek(int64(numElements(h.shape)*h.wordSize), io.SeekCurrent); err != nil {
			return errors.Wrap(err, "payload seek")
		}
	}
	if e.hasDescriptor {
		return skipDescriptor(f)
	}
	return nil
}

// zipFooter is the parsed end-of-central-directory record.
type zipFooter struct {
	entries  uint16
	cdSize   uint32
	cdOffset uint32
}

// parseFooter reads the trailing 22-byte end-of-central-directory record.
// Multi-disk archives and archive comments are rejected.
func parseFooter(f *os.File) (*zipFooter, error) {
	var buf [zipFooterSize]byte
	if _, err := f.Seek(-zipFooterSize, io.SeekEnd); err != nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "footer seek: %v", err)
	}
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "footer read: %v", err)
	}
	if buf[0] != 'P' || buf[1] != 'K' || buf[2] != 0x05 || buf[3] != 0x06 {
		return nil, errors.Wrap(ErrMalformedArchive, "bad footer signature")
	}

	diskNo := wire.U16(buf[:], 4)
	diskStart := wire.U16(buf[:], 6)
	diskEntries := wire.U16(buf[:], 8)
	entries := wire.U16(buf[:], 10)
	commentLen := wire.U16(buf[:], 20)
	if diskNo != 0 || diskStart != 0 || diskEntries != entries || commentLen != 0 {
		return nil, errors.Wrap(ErrMalformedArchive, "multi-disk or commented archive")
	}

	return &zipFooter{
		entries:  entries,
		cdSize:   wire.U32(buf[:], 12),
		cdOffset: wire.U32(buf[:], 16),
	}, nil
}

// cdContains walks the central directory records in cd looking for fname.
func cdContains(cd []byte, fname string) bool {
	off := 0
	for off+zipCentralHeaderSize <= len(cd) {
		if cd[off] != 'P' || cd[off+1] != 'K' || cd[off+2] != 0x01 || cd[off+3] != 0x02 {
			return false
		}
		nameLen := int(wire.U16(cd, off+28))
		extraLen := int(wire.U16(cd, off+30))
		commentLen := int(wire.U16(cd, off+32))
		end := off + zipCentralHeaderSize + nameLen
		if end > len(cd) {
			return false
		}
		if string(cd[off+zipCentralHeaderSize:end]) == fname {
			return true
		}
		off = end + extraLen + commentLen
	}
	return false
}

// NpzSave writes arr as the named entry of the archive at path, assembling
// the zip records directly. Overwrite replaces the whole archive; Append
// inserts the entry before the existing central directory and rewrites the
// directory and footer after it.
func NpzSave(path, name string, arr *Array, mode Mode) error {
	if arr.released {
		return errors.Wrapf(ErrReleased, "npz save %s", path)
	}
	hdr, err := encodeHeader(arr.kind, arr.wordSize, arr.shape)
	if err != nil {
		return errors.Wrapf(err, "npz save %s", path)
	}
	fname := name + npySuffix

	var f *os.File
	var entries uint16
	var cdOffset uint32
	var oldCD []byte

	if mode == Append {
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "npz save")
		}
	}
	if f != nil {
		footer, err := parseFooter(f)
		if err != nil {
			f.Close()
			return errors.Wrapf(err, "npz save %s", path)
		}
		if _, err := f.Seek(int64(footer.cdOffset), io.SeekStart); err != nil {
			f.Close()
			return errors.Wrap(err, "npz save")
		}
		oldCD = make([]byte, footer.cdSize)
		if _, err := io.ReadFull(f, oldCD); err != nil {
			f.Close()
			return errors.Wrapf(ErrMalformedArchive, "npz save %s: central directory read: %v", path, err)
		}
		if cdContains(oldCD, fname) {
			f.Close()
			return errors.Wrapf(ErrEntryReplace, "npz save %s: %q", path, name)
		}
		entries = footer.entries
		cdOffset = footer.cdOffset
		// The new local record overwrites the old central directory.
		if _, err := f.Seek(int64(footer.cdOffset), io.SeekStart); err != nil {
			f.Close()
			return errors.Wrap(err, "npz save")
		}
	} else {
		f, err = os.Create(path)
		if err != nil {
			return errors.Wrap(err, "npz save")
		}
	}

	crc := crc32.ChecksumIEEE(hdr)
	crc = crc32.Update(crc, crc32.IEEETable, arr.data)
	nbytes := uint32(len(hdr) + len(arr.data))

	var local wire.Buffer
	local.Str("PK")
	local.Uint16(0x0403)
	local.Uint16(zipVersion) // min version to extract
	local.Uint16(0)          // general purpose bit flag
	local.Uint16(0)          // compression method: stored
	local.Uint16(0)          // file last mod time
	local.Uint16(0)          // file last mod date
	local.Uint32(crc)
	local.Uint32(nbytes) // compressed size
	local.Uint32(nbytes) // uncompressed size, equal since stored
	local.Uint16(uint16(len(fname)))
	local.Uint16(0) // extra field length
	local.Str(fname)

	var central wire.Buffer
	central.Raw(oldCD)
	central.Str("PK")
	central.Uint16(0x0201)
	central.Uint16(zipVersion) // version made by
	central.Raw(local.Bytes()[4:30])
	central.Uint16(0)        // file comment length
	central.Uint16(0)        // disk number where file starts
	central.Uint16(0)        // internal file attributes
	central.Uint32(0)        // external file attributes
	central.Uint32(cdOffset) // the local record goes where the old directory began
	central.Str(fname)

	var footer wire.Buffer
	footer.Str("PK")
	footer.Uint16(0x0605)
	footer.Uint16(0) // disk number
	footer.Uint16(0) // central directory start disk
	footer.Uint16(entries + 1)
	footer.Uint16(entries + 1)
	footer.Uint32(uint32(central.Len()))
	footer.Uint32(cdOffset + uint32(local.Len()) + nbytes)
	footer.Uint16(0) // comment length

	if err := writeAll(f, local.Bytes(), hdr, arr.data, central.Bytes(), footer.Bytes()); err != nil {
		f.Close()
		return errors.Wrapf(err, "npz save %s", path)
	}
	glog.V(2).Infof("Wrote entry %q (%d bytes) to %v, %d entries total", name, nbytes, path, entries+1)
	return errors.Wrapf(f.Close(), "npz save %s", path)
}
