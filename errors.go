package npio

import (
	"fmt"

	"github.com/pkg/errors"
)

// Format and archive failures. All are unrecoverable by the codec itself;
// they surface to the caller wrapped with the file path involved.
var (
	ErrMalformedHeader  = errors.New("malformed npy header")
	ErrBigEndian        = errors.New("big-endian npy data is not supported")
	ErrUnknownDtype     = errors.New("unknown dtype descriptor")
	ErrMalformedArchive = errors.New("malformed zip archive")
	ErrEntryNotFound    = errors.New("entry not found in archive")
	ErrDuplicateEntry   = errors.New("duplicate entry name in archive")
	ErrEntryReplace     = errors.New("entry already exists and cannot be replaced in place")
	ErrPartialWrite     = errors.New("short write")
	ErrReleased         = errors.New("array data ownership has been released")
)

// DtypeMismatchError is returned when appending data whose element width
// differs from the target file's.
type DtypeMismatchError struct {
	Path string
	Want int // element width recorded in the file
	Got  int // element width of the data being appended
}

func (e *DtypeMismatchError) Error() string {
	return fmt.Sprintf("%s has word size %d but appending data sized %d", e.Path, e.Want, e.Got)
}

// RankMismatchError is returned when appending data whose dimensionality
// differs from the target file's.
type RankMismatchError struct {
	Path string
	Want int
	Got  int
}

func (e *RankMismatchError) Error() string {
	return fmt.Sprintf("appending rank-%d data to %s which has rank %d", e.Got, e.Path, e.Want)
}

// ShapeMismatchError is returned when a non-leading dimension of the data
// being appended differs from the target file's.
type ShapeMismatchError struct {
	Path string
	Dim  int
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("appending data with dimension %d = %d to %s which has %d",
		e.Dim, e.Got, e.Path, e.Want)
}
