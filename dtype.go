package npio

import (
	"github.com/pkg/errors"
)

// Kind enumerates the element types representable in an npy file.
type Kind int

const (
	// Void is a valid sentinel with undefined size. Arrays of Void kind
	// cannot be allocated or saved.
	Void Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	LongDouble
	Complex64
	Complex128
	ComplexLongDouble
	Bool
)

// class returns the npy descriptor class code and element width in bytes
// for k. Void has no descriptor and maps to (0, 0).
func (k Kind) class() (byte, int) {
	switch k {
	case Int8:
		return 'i', 1
	case Int16:
		return 'i', 2
	case Int32:
		return 'i', 4
	case Int64:
		return 'i', 8
	case Uint8:
		return 'u', 1
	case Uint16:
		return 'u', 2
	case Uint32:
		return 'u', 4
	case Uint64:
		return 'u', 8
	case Float32:
		return 'f', 4
	case Float64:
		return 'f', 8
	case LongDouble:
		return 'f', 16
	case Complex64:
		return 'c', 8
	case Complex128:
		return 'c', 16
	case ComplexLongDouble:
		return 'c', 32
	case Bool:
		return 'b', 1
	}
	return 0, 0
}

// kindOf resolves a descriptor class code and element width back to a Kind.
// It never returns Void: an unmatched pair fails with ErrUnknownDtype.
func kindOf(code byte, width int) (Kind, error) {
	switch code {
	case 'i':
		switch width {
		case 1:
			return Int8, nil
		case 2:
			return Int16, nil
		case 4:
			return Int32, nil
		case 8:
			return Int64, nil
		}
	case 'u':
		switch width {
		case 1:
			return Uint8, nil
		case 2:
			return Uint16, nil
		case 4:
			return Uint32, nil
		case 8:
			return Uint64, nil
		}
	case 'f':
		switch width {
		case 4:
			return Float32, nil
		case 8:
			return Float64, nil
		case 16:
			return LongDouble, nil
		}
	case 'c':
		switch width {
		case 8:
			return Complex64, nil
		case 16:
			return Complex128, nil
		case 32:
			return ComplexLongDouble, nil
		}
	case 'b':
		if width == 1 {
			return Bool, nil
		}
	}

	return Void, errors.Wrapf(ErrUnknownDtype, "descriptor %c%d", code, width)
}

func (k Kind) String() string {
	switch k {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case LongDouble:
		return "longdouble"
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	case ComplexLongDouble:
		return "complexlongdouble"
	case Bool:
		return "bool"
	}
	return "void"
}
