package npio

import (
	"bytes"
	"io"
	"testing"
)

func TestEntryProducerSingleBytePulls(t *testing.T) {
	arr, err := FromFloat64s([]int{3}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	p, err := newEntryProducer(arr)
	if err != nil {
		t.Fatal(err)
	}
	p.open()

	var got bytes.Buffer
	buf := make([]byte, 1)
	for {
		n, err := p.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("1-byte pull returned %d bytes", n)
		}
	}

	if int64(got.Len()) != p.size() {
		t.Fatalf("pulled %d bytes, size reports %d", got.Len(), p.size())
	}
	data, _ := arr.Data()
	want := append(append([]byte(nil), p.header...), data...)
	if !bytes.Equal(got.Bytes(), want) {
		t.Error("byte-at-a-time pulls did not reproduce header followed by payload")
	}
}

func TestEntryProducerLargePull(t *testing.T) {
	arr, err := FromFloat64s([]int{2}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	p, err := newEntryProducer(arr)
	if err != nil {
		t.Fatal(err)
	}
	p.open()

	// A pull larger than the whole entry still stops at the header
	// boundary; the payload phase begins on the next call.
	buf := make([]byte, 4096)
	n, err := p.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(p.header) {
		t.Fatalf("first pull returned %d bytes, expected the %d header bytes", n, len(p.header))
	}
	n, err = p.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(p.payload) {
		t.Fatalf("second pull returned %d bytes, expected the %d payload bytes", n, len(p.payload))
	}
	if _, err := p.Read(buf); err != io.EOF {
		t.Fatalf("pull past the end = %v, expected io.EOF", err)
	}
}

func TestEntryProducerReopen(t *testing.T) {
	arr, err := FromFloat64s([]int{2}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	p, err := newEntryProducer(arr)
	if err != nil {
		t.Fatal(err)
	}

	p.open()
	first, err := io.ReadAll(p)
	if err != nil {
		t.Fatal(err)
	}
	p.open()
	second, err := io.ReadAll(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("reopened producer did not restart from the header phase")
	}
}

func TestEntryProducerReleasedArray(t *testing.T) {
	arr, err := FromFloat64s([]int{2}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := arr.TakeData(); err != nil {
		t.Fatal(err)
	}
	if _, err := newEntryProducer(arr); err == nil {
		t.Error("expected error building a producer over a released array")
	}
}
