package npio

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Array is a contiguous buffer of fixed-width elements plus the shape and
// dtype metadata needed to round-trip it through an npy file.
//
// The Array owns its buffer until TakeData transfers it to the caller.
// After the transfer every further access through the Array fails with
// ErrReleased; the data is never silently shared or read after release.
type Array struct {
	data     []byte
	shape    []int
	wordSize int
	kind     Kind
	fortran  bool
	released bool
}

// Arrays is a fully loaded npz archive, keyed by entry name without the
// ".npy" suffix.
type Arrays map[string]*Array

// New allocates a zero-filled array of the given kind and shape.
func New(kind Kind, shape []int) (*Array, error) {
	code, width := kind.class()
	if code == 0 {
		return nil, errors.Wrap(ErrUnknownDtype, "cannot allocate a void array")
	}
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	return &Array{
		data:     make([]byte, numElements(shape)*width),
		shape:    append([]int(nil), shape...),
		wordSize: width,
		kind:     kind,
	}, nil
}

// NewFrom allocates an array of the given kind and shape and copies data
// into it. The data length must match the shape exactly.
func NewFrom(kind Kind, shape []int, data []byte) (*Array, error) {
	arr, err := New(kind, shape)
	if err != nil {
		return nil, err
	}
	if len(data) != len(arr.data) {
		return nil, errors.Errorf("data is %d bytes but shape %v of %v requires %d",
			len(data), shape, kind, len(arr.data))
	}
	copy(arr.data, data)
	return arr, nil
}

// FromFloat32s builds a Float32 array of the given shape from v.
func FromFloat32s(shape []int, v []float32) (*Array, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	if len(v) != numElements(shape) {
		return nil, errors.Errorf("%d values do not fill shape %v", len(v), shape)
	}
	data := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(x))
	}
	return &Array{data: data, shape: append([]int(nil), shape...), wordSize: 4, kind: Float32}, nil
}

// FromFloat64s builds a Float64 array of the given shape from v.
func FromFloat64s(shape []int, v []float64) (*Array, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	if len(v) != numElements(shape) {
		return nil, errors.Errorf("%d values do not fill shape %v", len(v), shape)
	}
	data := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(x))
	}
	return &Array{data: data, shape: append([]int(nil), shape...), wordSize: 8, kind: Float64}, nil
}

// FromInt64s builds an Int64 array of the given shape from v.
func FromInt64s(shape []int, v []int64) (*Array, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	if len(v) != numElements(shape) {
		return nil, errors.Errorf("%d values do not fill shape %v", len(v), shape)
	}
	data := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(x))
	}
	return &Array{data: data, shape: append([]int(nil), shape...), wordSize: 8, kind: Int64}, nil
}

func (a *Array) Kind() Kind { return a.kind }

// Shape returns a copy of the array's dimension sizes.
func (a *Array) Shape() []int {
	return append([]int(nil), a.shape...)
}

// WordSize returns the element width in bytes.
func (a *Array) WordSize() int { return a.wordSize }

// FortranOrder reports whether the elements are stored column-major. The
// codec only writes row-major data but preserves the flag on read.
func (a *Array) FortranOrder() bool { return a.fortran }

// NumElements returns the product of the array's dimensions.
func (a *Array) NumElements() int { return numElements(a.shape) }

// Size returns the buffer length in bytes.
func (a *Array) Size() int { return numElements(a.shape) * a.wordSize }

// Released reports whether ownership of the buffer has been transferred.
func (a *Array) Released() bool { return a.released }

// Data returns the raw element bytes in little-endian, row-major order.
// The slice aliases the array's buffer; it fails once ownership has been
// released.
func (a *Array) Data() ([]byte, error) {
	if a.released {
		return nil, ErrReleased
	}
	return a.data, nil
}

// TakeData transfers ownership of the buffer to the caller. The array keeps
// its metadata but every later data access fails with ErrReleased.
func (a *Array) TakeData() ([]byte, error) {
	if a.released {
		return nil, ErrReleased
	}
	data := a.data
	a.data = nil
	a.released = true
	return data, nil
}

// Float32s decodes the buffer as little-endian float32 values.
func (a *Array) Float32s() ([]float32, error) {
	if err := a.checkAccess(Float32); err != nil {
		return nil, err
	}
	v := make([]float32, a.NumElements())
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(a.data[4*i:]))
	}
	return v, nil
}

// Float64s decodes the buffer as little-endian float64 values.
func (a *Array) Float64s() ([]float64, error) {
	if err := a.checkAccess(Float64); err != nil {
		return nil, err
	}
	v := make([]float64, a.NumElements())
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(a.data[8*i:]))
	}
	return v, nil
}

// Int64s decodes the buffer as little-endian int64 values.
func (a *Array) Int64s() ([]int64, error) {
	if err := a.checkAccess(Int64); err != nil {
		return nil, err
	}
	v := make([]int64, a.NumElements())
	for i := range v {
		v[i] = int64(binary.LittleEndian.Uint64(a.data[8*i:]))
	}
	return v, nil
}

func (a *Array) checkAccess(want Kind) error {
	if a.released {
		return ErrReleased
	}
	if a.kind != want {
		return errors.Errorf("array holds %v, not %v", a.kind, want)
	}
	return nil
}

func checkShape(shape []int) error {
	if len(shape) == 0 {
		return errors.New("shape must have at least one dimension")
	}
	for _, d := range shape {
		if d < 0 {
			return errors.Errorf("negative dimension in shape %v", shape)
		}
	}
	return nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
