package plist

import "encoding/binary"

const (
	bplistHeader      = "bplist00"
	bplistMagic       = "bplist0"
	bplistTrailerSize = 32
	// smallest document: header, one object byte, one offset byte, trailer
	bplistMinSize = 8 + bplistTrailerSize
)

type bplistTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

func (t *bplistTrailer) append(b []byte) []byte {
	b = append(b, t.Unused[:]...)
	b = append(b, t.SortVersion, t.OffsetIntSize, t.ObjectRefSize)
	b = binary.BigEndian.AppendUint64(b, t.NumObjects)
	b = binary.BigEndian.AppendUint64(b, t.TopObject)
	return binary.BigEndian.AppendUint64(b, t.OffsetTableOffset)
}

func (t *bplistTrailer) read(b []byte) {
	copy(t.Unused[:], b[0:5])
	t.SortVersion = b[5]
	t.OffsetIntSize = b[6]
	t.ObjectRefSize = b[7]
	t.NumObjects = binary.BigEndian.Uint64(b[8:])
	t.TopObject = binary.BigEndian.Uint64(b[16:])
	t.OffsetTableOffset = binary.BigEndian.Uint64(b[24:])
}

const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse   uint8 = 0x08
	bpTagBoolTrue    uint8 = 0x09
	bpTagInteger     uint8 = 0x10
	bpTagReal        uint8 = 0x20
	bpTagDate        uint8 = 0x30
	bpTagData        uint8 = 0x40
	bpTagASCIIString uint8 = 0x50
	bpTagUTF16String uint8 = 0x60
	bpTagUID         uint8 = 0x80
	bpTagArray       uint8 = 0xA0
	bpTagSet         uint8 = 0xC0
	bpTagDictionary  uint8 = 0xD0

	bpTagInteger128 = bpTagInteger | 4
	bpTagReal32     = bpTagReal | 2
	bpTagReal64     = bpTagReal | 3
	bpTagDate64     = bpTagDate | 3

	// low nibble marking a length stored in a following integer object
	bpLengthFollows uint8 = 0x0F
)

// minimumSizeForInt returns the smallest of 1, 2, 4 and 8 bytes that can
// hold n.
func minimumSizeForInt(n uint64) int {
	switch {
	case n <= 0xFF:
		return 1
	case n <= 0xFFFF:
		return 2
	case n <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

// sizeNibble is log2 of a 1, 2, 4, 8 or 16 byte width.
func sizeNibble(n int) uint8 {
	switch n {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	return 4
}

func appendSizedUint(b []byte, n int, v uint64) []byte {
	switch n {
	case 1:
		return append(b, uint8(v))
	case 2:
		return binary.BigEndian.AppendUint16(b, uint16(v))
	case 4:
		return binary.BigEndian.AppendUint32(b, uint32(v))
	}
	return binary.BigEndian.AppendUint64(b, v)
}

// readSizedUint reads an n byte big-endian unsigned integer, n <= 8.
func readSizedUint(b []byte, n int) uint64 {
	var v uint64
	for _, c := range b[:n] {
		v = v<<8 | uint64(c)
	}
	return v
}
