package npio

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestNpySaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.npy")
	want := []float64{1, 2, 3, 4, 5, 6}
	arr, err := FromFloat64s([]int{2, 3}, want)
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, arr, Overwrite); err != nil {
		t.Fatal(err)
	}

	got, err := NpyLoad(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind() != Float64 {
		t.Errorf("loaded kind %v, expected float64", got.Kind())
	}
	if got.WordSize() != 8 {
		t.Errorf("loaded word size %d, expected 8", got.WordSize())
	}
	if !shapeEqual(got.Shape(), []int{2, 3}) {
		t.Errorf("loaded shape %v, expected (2, 3)", got.Shape())
	}
	if got.FortranOrder() {
		t.Error("loaded fortran order true for data written row-major")
	}
	values, err := got.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("value[%d] = %v, expected %v", i, values[i], want[i])
		}
	}

	wantData, _ := arr.Data()
	gotData, _ := got.Data()
	if !bytes.Equal(wantData, gotData) {
		t.Error("loaded bytes differ from saved bytes")
	}
}

func TestNpyRoundTripKinds(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []Kind{Int8, Uint16, Int32, Float32, Complex64, Bool} {
		_, width := kind.class()
		shape := []int{3, 2}
		data := make([]byte, 6*width)
		for i := range data {
			data[i] = byte(i * 7)
		}
		arr, err := NewFrom(kind, shape, data)
		if err != nil {
			t.Fatal(err)
		}

		path := filepath.Join(dir, kind.String()+".npy")
		if err := NpySave(path, arr, Overwrite); err != nil {
			t.Fatalf("%v: %v", kind, err)
		}
		got, err := NpyLoad(path)
		if err != nil {
			t.Fatalf("%v: %v", kind, err)
		}
		if got.Kind() != kind {
			t.Errorf("loaded kind %v, expected %v", got.Kind(), kind)
		}
		gotData, err := got.Data()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(gotData, data) {
			t.Errorf("%v: loaded bytes differ", kind)
		}
	}
}

func TestNpyFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.npy")
	arr, err := FromFloat32s([]int{5}, []float32{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, arr, Overwrite); err != nil {
		t.Fatal(err)
	}

	buf := readFile(t, path)
	if buf[0] != 0x93 || string(buf[1:6]) != "NUMPY" {
		t.Errorf("bad magic: %q", buf[:6])
	}
	if buf[6] != 1 || buf[7] != 0 {
		t.Errorf("version = %d.%d, expected 1.0", buf[6], buf[7])
	}
	dictLen := int(buf[8]) | int(buf[9])<<8
	if (npyPreambleSize+dictLen)%16 != 0 {
		t.Errorf("preamble+dictionary is %d bytes, not a multiple of 16", npyPreambleSize+dictLen)
	}
	if buf[npyPreambleSize+dictLen-1] != '\n' {
		t.Error("dictionary does not end in newline")
	}
	if len(buf) != npyPreambleSize+dictLen+20 {
		t.Errorf("file is %d bytes, expected header plus 20 payload bytes", len(buf))
	}
}

func TestNpyAppendGrowsLeadingDim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.npy")
	first, err := FromFloat64s([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	second, err := FromFloat64s([]int{1, 3}, []float64{7, 8, 9})
	if err != nil {
		t.Fatal(err)
	}

	if err := NpySave(path, first, Overwrite); err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, second, Append); err != nil {
		t.Fatal(err)
	}

	got, err := NpyLoad(path)
	if err != nil {
		t.Fatal(err)
	}
	if !shapeEqual(got.Shape(), []int{3, 3}) {
		t.Errorf("appended shape %v, expected (3, 3)", got.Shape())
	}
	values, err := got.Float64s()
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7, 8, 9} {
		if values[i] != want {
			t.Errorf("value[%d] = %v, expected %v", i, values[i], want)
		}
	}
	if got.Size() != 9*8 {
		t.Errorf("payload is %d bytes, expected %d", got.Size(), 9*8)
	}
}

// Appending one row at a time walks the leading dimension through several
// decimal digit counts, forcing the occasional whole-file rewrite when the
// re-encoded header no longer fits its old slot.
func TestNpyAppendManySmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "many.npy")
	row, err := NewFrom(Uint8, []int{1}, []byte{0})
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, row, Overwrite); err != nil {
		t.Fatal(err)
	}

	const total = 120
	for i := 1; i < total; i++ {
		row, err := NewFrom(Uint8, []int{1}, []byte{byte(i)})
		if err != nil {
			t.Fatal(err)
		}
		if err := NpySave(path, row, Append); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := NpyLoad(path)
	if err != nil {
		t.Fatal(err)
	}
	if !shapeEqual(got.Shape(), []int{total}) {
		t.Fatalf("shape %v, expected (%d,)", got.Shape(), total)
	}
	data, err := got.Data()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < total; i++ {
		if data[i] != byte(i) {
			t.Fatalf("payload[%d] = %d, expected %d", i, data[i], i)
		}
	}
}

func TestNpyAppendDtypeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mismatch.npy")
	first, err := FromFloat64s([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, first, Overwrite); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, path)

	second, err := FromFloat32s([]int{1, 3}, []float32{7, 8, 9})
	if err != nil {
		t.Fatal(err)
	}
	err = NpySave(path, second, Append)
	var mismatch *DtypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("append float32 to float64 file = %v, expected DtypeMismatchError", err)
	}
	if mismatch.Want != 8 || mismatch.Got != 4 {
		t.Errorf("mismatch reports want %d got %d, expected 8 and 4", mismatch.Want, mismatch.Got)
	}
	if mismatch.Path != path {
		t.Errorf("mismatch path %q, expected %q", mismatch.Path, path)
	}

	if !bytes.Equal(before, readFile(t, path)) {
		t.Error("failed append modified the file")
	}
}

func TestNpyAppendRankMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rank.npy")
	first, err := FromFloat64s([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, first, Overwrite); err != nil {
		t.Fatal(err)
	}

	second, err := FromFloat64s([]int{3}, []float64{7, 8, 9})
	if err != nil {
		t.Fatal(err)
	}
	var mismatch *RankMismatchError
	if err := NpySave(path, second, Append); !errors.As(err, &mismatch) {
		t.Fatalf("append rank-1 to rank-2 file = %v, expected RankMismatchError", err)
	}
}

func TestNpyAppendShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shape.npy")
	first, err := FromFloat64s([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, first, Overwrite); err != nil {
		t.Fatal(err)
	}
	before := readFile(t, path)

	second, err := FromFloat64s([]int{1, 4}, []float64{7, 8, 9, 10})
	if err != nil {
		t.Fatal(err)
	}
	err = NpySave(path, second, Append)
	var mismatch *ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("append (1, 4) to (2, 3) file = %v, expected ShapeMismatchError", err)
	}
	if mismatch.Dim != 1 || mismatch.Want != 3 || mismatch.Got != 4 {
		t.Errorf("mismatch reports dim %d want %d got %d, expected 1, 3, 4",
			mismatch.Dim, mismatch.Want, mismatch.Got)
	}

	if !bytes.Equal(before, readFile(t, path)) {
		t.Error("failed append modified the file")
	}
}

func TestNpyAppendToMissingFileCreatesIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.npy")
	arr, err := FromFloat64s([]int{2}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := NpySave(path, arr, Append); err != nil {
		t.Fatal(err)
	}
	got, err := NpyLoad(path)
	if err != nil {
		t.Fatal(err)
	}
	if !shapeEqual(got.Shape(), []int{2}) {
		t.Errorf("shape %v, expected (2,)", got.Shape())
	}
}

func TestNpyLoadMissingFile(t *testing.T) {
	_, err := NpyLoad(filepath.Join(t.TempDir(), "nope.npy"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("NpyLoad of missing file = %v, expected fs.ErrNotExist", err)
	}
}
