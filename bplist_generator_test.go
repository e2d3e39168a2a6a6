package plist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// trailer builds the 32 trailer bytes.
func trailer(offSize, refSize uint8, count, top, table uint64) []byte {
	t := bplistTrailer{
		OffsetIntSize:     offSize,
		ObjectRefSize:     refSize,
		NumObjects:        count,
		TopObject:         top,
		OffsetTableOffset: table,
	}
	return t.append(nil)
}

func document(parts ...[]byte) []byte {
	return bytes.Join(append([][]byte{[]byte(bplistHeader)}, parts...), nil)
}

func TestEncodeBinaryArrayOfString(t *testing.T) {
	got, err := EncodeBinary(NewArray(NewString("A")), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := document(
		[]byte{0xA1, 0x01, 0x51, 'A'},
		[]byte{0x08, 0x0A},
		trailer(1, 1, 2, 0, 0x0C),
	)
	if len(got) != 46 {
		t.Errorf("len = %d, want 46", len(got))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document (-want +got):\n%s", diff)
	}
}

func TestEncodeBinaryLengthMarker(t *testing.T) {
	for _, tc := range []struct {
		n      int
		marker []byte
		size   int
	}{
		{14, []byte{0xAE}, 58},
		{15, []byte{0xAF, 0x10, 0x0F}, 61},
	} {
		b := NewBoolean(true)
		a := NewArray()
		for i := 0; i < tc.n; i++ {
			a.Append(b)
		}
		got, err := EncodeBinary(a, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tc.size {
			t.Errorf("%d refs: len = %d, want %d", tc.n, len(got), tc.size)
		}
		if !bytes.HasPrefix(got[8:], tc.marker) {
			t.Errorf("%d refs: marker % x, want % x", tc.n, got[8:8+len(tc.marker)], tc.marker)
		}
	}
}

func TestEncodeBinaryIntegers(t *testing.T) {
	for _, tc := range []struct {
		value *Integer
		want  []byte
	}{
		{NewInteger(0), []byte{0x10, 0x00}},
		{NewInteger(0xFF), []byte{0x10, 0xFF}},
		{NewInteger(0x100), []byte{0x11, 0x01, 0x00}},
		{NewInteger(0xFFFFFFFF), []byte{0x12, 0xFF, 0xFF, 0xFF, 0xFF}},
		{NewInteger(0x100000000), []byte{0x13, 0, 0, 0, 1, 0, 0, 0, 0}},
		{NewInteger(-1), []byte{0x13, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{NewIntegerBits(-1, 8), []byte{0x13, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{NewInteger128(0, 1), []byte{0x14, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}},
	} {
		got, err := EncodeBinary(tc.value, nil)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tc.want, got[8:8+len(tc.want)]); diff != "" {
			t.Errorf("%v (-want +got):\n%s", tc.value, diff)
		}
	}
}

func TestEncodeBinaryScalars(t *testing.T) {
	f32 := make([]byte, 4)
	binary.BigEndian.PutUint32(f32, 0x3FC00000)
	for _, tc := range []struct {
		name  string
		value Value
		want  []byte
	}{
		{"null", NewNull(), []byte{0x00}},
		{"false", NewBoolean(false), []byte{0x08}},
		{"true", NewBoolean(true), []byte{0x09}},
		{"real32", NewReal32(1.5), append([]byte{0x22}, f32...)},
		{"real64", NewReal(1.5), []byte{0x23, 0x3F, 0xF8, 0, 0, 0, 0, 0, 0}},
		{"date", NewDate(0), []byte{0x33, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"data", NewData([]byte{1, 2}), []byte{0x42, 1, 2}},
		{"ascii", NewString("hi"), []byte{0x52, 'h', 'i'}},
		{"utf16", NewString("é"), []byte{0x61, 0x00, 0xE9}},
		{"uid small", NewUID(0x12), []byte{0x80, 0x12}},
		{"uid wide", NewUID(0x1234), []byte{0x81, 0x12, 0x34}},
	} {
		got, err := EncodeBinary(tc.value, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if diff := cmp.Diff(tc.want, got[8:8+len(tc.want)]); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tc.name, diff)
		}
		if table := len(got) - bplistTrailerSize - 1; table != 8+len(tc.want) {
			t.Errorf("%s: object size %d, want %d", tc.name, table-8, len(tc.want))
		}
	}
}

func TestEncodeBinaryDictKeysFirst(t *testing.T) {
	d := NewDict()
	d.Set(NewString("a"), NewInteger(1))
	d.Set(NewString("b"), NewInteger(2))
	got, err := EncodeBinary(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0xD2, 0x01, 0x02, 0x03, 0x04,
		0x51, 'a',
		0x51, 'b',
		0x10, 0x01,
		0x10, 0x02,
	}
	if diff := cmp.Diff(want, got[8:8+len(want)]); diff != "" {
		t.Errorf("objects (-want +got):\n%s", diff)
	}
}

func TestEncodeBinarySharing(t *testing.T) {
	s := NewString("shared")
	inner := NewArray(s)
	root := NewArray(inner, inner, s)

	shared, err := EncodeBinary(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := binary.BigEndian.Uint64(shared[len(shared)-24:]); n != 3 {
		t.Errorf("shared objects = %d, want 3", n)
	}

	dup, err := EncodeBinary(root, &BinaryOptions{Duplicates: DuplicateValues(inner)})
	if err != nil {
		t.Fatal(err)
	}
	if n := binary.BigEndian.Uint64(dup[len(dup)-24:]); n != 4 {
		t.Errorf("duplicated objects = %d, want 4", n)
	}
	decoded, err := DecodeBinary(dup)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(root, decoded) {
		t.Error("duplicated document does not decode to the original")
	}
}

func TestEncodeBinaryCFDuplicates(t *testing.T) {
	tr := NewBoolean(true)
	str := NewString("x")
	root := NewArray(tr, tr, str, str)
	b, err := EncodeBinary(root, &BinaryOptions{Format: BinaryFormat, Duplicates: CFDuplicates})
	if err != nil {
		t.Fatal(err)
	}
	// root, two trues, one string
	if n := binary.BigEndian.Uint64(b[len(b)-24:]); n != 4 {
		t.Errorf("objects = %d, want 4", n)
	}
	// references point at the first slot
	if diff := cmp.Diff([]byte{0xA4, 1, 1, 3, 3}, b[8:13]); diff != "" {
		t.Errorf("refs (-want +got):\n%s", diff)
	}
}

func TestEncodeBinaryDuplicatesInSharedContainer(t *testing.T) {
	inner := NewArray(NewBoolean(true))
	root := NewArray(inner, inner)
	b, err := EncodeBinary(root, &BinaryOptions{Duplicates: DuplicateTypes(TypeBoolean)})
	if err != nil {
		t.Fatal(err)
	}
	// root, inner and the boolean once per visit of inner
	if n := binary.BigEndian.Uint64(b[len(b)-24:]); n != 4 {
		t.Errorf("objects = %d, want 4", n)
	}
	decoded, err := DecodeBinary(b)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(root, decoded) {
		t.Error("decoded document differs")
	}

	cyclic := NewArray()
	shared := NewArray(cyclic)
	cyclic.Append(shared)
	if _, err := EncodeBinary(NewArray(shared, shared), nil); !errors.Is(err, ErrCircularReference) {
		t.Errorf("cycle under a shared container: err = %v", err)
	}
}

func TestEncodeBinaryErrors(t *testing.T) {
	cyclic := NewArray()
	cyclic.Append(NewArray(cyclic))

	badKey := NewDict()
	badKey.Set(NewArray(), NewNull())

	for _, tc := range []struct {
		name   string
		value  Value
		reason error
	}{
		{"cycle", cyclic, ErrCircularReference},
		{"container key", badKey, ErrInvalidKeyType},
		{"nil", nil, ErrInvalidValueType},
	} {
		_, err := EncodeBinary(tc.value, nil)
		var te *TypeError
		if !errors.As(err, &te) || !errors.Is(err, tc.reason) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.reason)
		}
	}

	_, err := EncodeBinary(NewNull(), &BinaryOptions{Format: XMLFormat})
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Format != XMLFormat {
		t.Errorf("xml format: err = %v", err)
	}
}

func TestEncodeBinaryWideOffsets(t *testing.T) {
	a := NewArray()
	for i := 0; i < 300; i++ {
		a.Append(NewInteger(int64(i) + 1000))
	}
	b, err := EncodeBinary(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	if off, ref := b[len(b)-26], b[len(b)-25]; off != 2 || ref != 2 {
		t.Errorf("offset size %d ref size %d, want 2 2", off, ref)
	}
	decoded, err := DecodeBinary(b)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(a, decoded) {
		t.Error("round trip mismatch")
	}
}
