package plist

import (
	"encoding/binary"
	"errors"
	"math"
	"math/bits"
	"runtime"

	"go.uber.org/zap"
)

type bplistParser struct {
	buf     []byte
	trailer bplistTrailer

	// decoded objects by table index
	objects []Value
	// table indexes of the containers on the active path
	resolving []bool
}

// a container whose references are still being resolved
type bplistFrame struct {
	index    uint64
	offset   uint64
	marker   uint8
	refs     uint64
	count    uint64
	keys     uint64
	next     uint64
	children []Value
}

// DecodeBinary decodes a binary property list. Malformed input is reported
// as a *SyntaxError carrying the offset of the first inconsistency.
func DecodeBinary(data []byte) (Value, error) {
	p := &bplistParser{buf: data}
	v, err := p.parseDocument()
	if err != nil {
		Logger().Debug("binary decode failed", zap.Int("bytes", len(data)), zap.Error(err))
		return nil, err
	}
	Logger().Debug("binary decode",
		zap.Int("bytes", len(data)),
		zap.Uint64("objects", p.trailer.NumObjects))
	return v, nil
}

func (p *bplistParser) parseDocument() (pval Value, parseError error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			parseError = r.(error)
		}
	}()
	p.validate()
	return p.resolve(p.trailer.TopObject), nil
}

func (p *bplistParser) errorAt(off uint64, msg string) error {
	return &SyntaxError{Format: BinaryFormat, Offset: int64(off), Err: errors.New(msg)}
}

// validate checks the header, trailer and offset table before any object
// is decoded.
func (p *bplistParser) validate() {
	l := uint64(len(p.buf))
	if l < 8 || string(p.buf[:len(bplistMagic)]) != bplistMagic {
		panic(p.errorAt(0, "missing bplist header"))
	}
	if l < bplistMinSize {
		panic(p.errorAt(8, "document too short"))
	}
	p.trailer.read(p.buf[l-bplistTrailerSize:])
	t := &p.trailer
	count, top, table := t.NumObjects, t.TopObject, t.OffsetTableOffset
	offSize, refSize := uint64(t.OffsetIntSize), uint64(t.ObjectRefSize)

	if count > math.MaxInt64 {
		panic(p.errorAt(l-24, "object count too large"))
	}
	if table > math.MaxInt64 {
		panic(p.errorAt(l-8, "offset table offset too large"))
	}
	if count == 0 {
		panic(p.errorAt(l-24, "no objects"))
	}
	if top >= count {
		panic(p.errorAt(l-16, "top object out of range"))
	}
	if table < 9 || table > l-bplistTrailerSize {
		panic(p.errorAt(l-8, "offset table offset out of range"))
	}
	if offSize == 0 || offSize > 8 {
		panic(p.errorAt(l-26, "invalid offset size"))
	}
	if refSize == 0 || refSize > 8 {
		panic(p.errorAt(l-25, "invalid reference size"))
	}
	if hi, size := bits.Mul64(count, offSize); hi != 0 || size != l-bplistTrailerSize-table {
		panic(p.errorAt(l-24, "offset table does not end at the trailer"))
	}
	if refSize < 8 && count>>(8*refSize) != 0 {
		panic(p.errorAt(l-25, "reference size too small for object count"))
	}
	if offSize < 8 && table>>(8*offSize) != 0 {
		panic(p.errorAt(l-26, "offset size too small for offset table"))
	}
	for pos := table; pos < l-bplistTrailerSize; pos += offSize {
		off := readSizedUint(p.buf[pos:], int(offSize))
		if off < uint64(len(bplistHeader)) || off >= table {
			panic(p.errorAt(pos, "object offset out of range"))
		}
	}
	p.objects = make([]Value, count)
	p.resolving = make([]bool, count)
}

func (p *bplistParser) objectOffset(index uint64) uint64 {
	size := uint64(p.trailer.OffsetIntSize)
	return readSizedUint(p.buf[p.trailer.OffsetTableOffset+index*size:], int(size))
}

// resolve decodes the object at index. Containers are expanded with an
// explicit stack so nesting depth is bounded by memory, not the call stack.
func (p *bplistParser) resolve(index uint64) Value {
	v, f := p.parseObject(index, 0, false)
	if f == nil {
		return v
	}
	stack := []*bplistFrame{f}
	for {
		f := stack[len(stack)-1]
		if f.next == f.count {
			v := f.finish()
			p.objects[f.index] = v
			p.resolving[f.index] = false
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return v
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, v)
			continue
		}
		ref := p.ref(f)
		asKey := f.next < f.keys
		f.next++
		v, child := p.parseObject(ref, f.offset, asKey)
		if child != nil {
			stack = append(stack, child)
			continue
		}
		f.children = append(f.children, v)
	}
}

func (p *bplistParser) ref(f *bplistFrame) uint64 {
	size := uint64(p.trailer.ObjectRefSize)
	ref := readSizedUint(p.buf[f.refs+f.next*size:], int(size))
	if ref >= p.trailer.NumObjects {
		panic(p.errorAt(f.offset, "reference out of range"))
	}
	return ref
}

func (f *bplistFrame) finish() Value {
	switch f.marker & 0xF0 {
	case bpTagArray:
		return NewArray(f.children...)
	case bpTagSet:
		return NewSet(f.children...)
	}
	d := NewDict()
	for i := uint64(0); i < f.keys; i++ {
		d.Set(f.children[i], f.children[f.keys+i])
	}
	return d
}

// need panics unless n bytes remain in the object table after pos.
func (p *bplistParser) need(off, pos, n uint64) {
	if pos > p.trailer.OffsetTableOffset || n > p.trailer.OffsetTableOffset-pos {
		panic(p.errorAt(off, "object extends past the object table"))
	}
}

// length decodes the element count of the object at off.
func (p *bplistParser) length(marker uint8, off, pos uint64) (n, next uint64) {
	n = uint64(marker & 0x0F)
	if n != uint64(bpLengthFollows) {
		return n, pos
	}
	p.need(off, pos, 1)
	m := p.buf[pos]
	pos++
	if m&0xF0 != bpTagInteger || m&0x0F > 3 {
		panic(p.errorAt(off, "invalid length marker"))
	}
	size := uint64(1) << (m & 0x0F)
	p.need(off, pos, size)
	return readSizedUint(p.buf[pos:], int(size)), pos + size
}

// parseObject returns the decoded object at index, or a frame when it is
// a non-empty container whose children still need resolving. parent is the
// offset of the referencing container, used for cycle and key errors.
func (p *bplistParser) parseObject(index, parent uint64, asKey bool) (Value, *bplistFrame) {
	if p.resolving[index] {
		panic(p.errorAt(parent, "cyclic reference"))
	}
	if v := p.objects[index]; v != nil {
		if asKey && isContainer(v) {
			panic(p.errorAt(parent, "container used as dictionary key"))
		}
		return v, nil
	}

	off := p.objectOffset(index)
	marker := p.buf[off]
	pos := off + 1
	var v Value
	switch marker & 0xF0 {
	case 0x00:
		switch marker {
		case bpTagNull:
			v = NewNull()
		case bpTagBoolFalse:
			v = NewBoolean(false)
		case bpTagBoolTrue:
			v = NewBoolean(true)
		default:
			panic(p.errorAt(off, "unknown marker"))
		}
	case bpTagInteger:
		nibble := marker & 0x0F
		if nibble > 4 {
			panic(p.errorAt(off, "invalid integer size"))
		}
		size := uint64(1) << nibble
		p.need(off, pos, size)
		if size == 16 {
			v = NewInteger128(binary.BigEndian.Uint64(p.buf[pos:]), binary.BigEndian.Uint64(p.buf[pos+8:]))
		} else {
			v = NewInteger(int64(readSizedUint(p.buf[pos:], int(size))))
		}
	case bpTagReal:
		switch marker {
		case bpTagReal32:
			p.need(off, pos, 4)
			v = NewReal32(math.Float32frombits(binary.BigEndian.Uint32(p.buf[pos:])))
		case bpTagReal64:
			p.need(off, pos, 8)
			v = NewReal(math.Float64frombits(binary.BigEndian.Uint64(p.buf[pos:])))
		default:
			panic(p.errorAt(off, "invalid real size"))
		}
	case bpTagDate:
		if marker != bpTagDate64 {
			panic(p.errorAt(off, "invalid date size"))
		}
		p.need(off, pos, 8)
		v = NewDate(math.Float64frombits(binary.BigEndian.Uint64(p.buf[pos:])))
	case bpTagData:
		n, pos := p.length(marker, off, pos)
		p.need(off, pos, n)
		b := make([]byte, n)
		copy(b, p.buf[pos:])
		v = NewData(b)
	case bpTagASCIIString:
		n, pos := p.length(marker, off, pos)
		p.need(off, pos, n)
		units := make([]uint16, n)
		for i := range units {
			units[i] = uint16(p.buf[pos+uint64(i)])
		}
		v = NewStringUTF16(units)
	case bpTagUTF16String:
		n, pos := p.length(marker, off, pos)
		if n > math.MaxInt64/2 {
			panic(p.errorAt(off, "object extends past the object table"))
		}
		p.need(off, pos, 2*n)
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(p.buf[pos+2*uint64(i):])
		}
		v = NewStringUTF16(units)
	case bpTagUID:
		size := uint64(marker&0x0F) + 1
		if size > 8 {
			panic(p.errorAt(off, "invalid uid size"))
		}
		p.need(off, pos, size)
		u := readSizedUint(p.buf[pos:], int(size))
		if u > math.MaxUint32 {
			panic(p.errorAt(off, "uid out of range"))
		}
		v = NewUID(uint32(u))
	case bpTagArray, bpTagSet, bpTagDictionary:
		if asKey {
			panic(p.errorAt(parent, "container used as dictionary key"))
		}
		n, pos := p.length(marker, off, pos)
		refs, keys := n, uint64(0)
		if marker&0xF0 == bpTagDictionary {
			if n > math.MaxInt64/2 {
				panic(p.errorAt(off, "object extends past the object table"))
			}
			refs, keys = 2*n, n
		}
		size := uint64(p.trailer.ObjectRefSize)
		if hi, total := bits.Mul64(refs, size); hi != 0 {
			panic(p.errorAt(off, "object extends past the object table"))
		} else {
			p.need(off, pos, total)
		}
		f := &bplistFrame{
			index:    index,
			offset:   off,
			marker:   marker,
			refs:     pos,
			count:    refs,
			keys:     keys,
			children: make([]Value, 0, refs),
		}
		if refs == 0 {
			v = f.finish()
			break
		}
		p.resolving[index] = true
		return nil, f
	default:
		panic(p.errorAt(off, "unknown marker"))
	}
	p.objects[index] = v
	return v, nil
}
