package plist

import (
	"encoding/binary"
	"math"

	"go.uber.org/zap"
)

// BinaryOptions configures EncodeBinary.
type BinaryOptions struct {
	// Format must be AutomaticFormat or BinaryFormat.
	Format Format
	// Duplicates reports values that get a new object table slot every
	// time they are reached instead of being shared. References still
	// point at the first slot. Nil shares everything.
	Duplicates func(Value) bool
}

// DuplicateTypes returns a Duplicates predicate matching the given types.
func DuplicateTypes(types ...Type) func(Value) bool {
	var set [TypeSet + 1]bool
	for _, t := range types {
		if t <= TypeSet {
			set[t] = true
		}
	}
	return func(v Value) bool {
		t := typeOf(v)
		return t <= TypeSet && set[t]
	}
}

// DuplicateValues returns a Duplicates predicate matching the given
// instances.
func DuplicateValues(values ...Value) func(Value) bool {
	set := make(map[Value]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return func(v Value) bool {
		_, ok := set[v]
		return ok
	}
}

// CFDuplicates duplicates the types CoreFoundation writes once per
// occurrence, producing output identical to CFPropertyListWrite.
var CFDuplicates = DuplicateTypes(TypeArray, TypeBoolean, TypeDict, TypeUID)

type bplistGenerator struct {
	duplicates func(Value) bool

	objects   []Value
	index     map[Value]uint64
	ancestors map[Value]struct{}

	// bytes of the header and every object, excluding references
	size uint64
	// number of references written by containers
	refs uint64
	err  error
}

func newBplistGenerator(duplicates func(Value) bool) *bplistGenerator {
	return &bplistGenerator{
		duplicates: duplicates,
		index:      make(map[Value]uint64),
		ancestors:  make(map[Value]struct{}),
	}
}

// EncodeBinary encodes v as a binary property list.
func EncodeBinary(v Value, opts *BinaryOptions) ([]byte, error) {
	var o BinaryOptions
	if opts != nil {
		o = *opts
	}
	if o.Format != AutomaticFormat && o.Format != BinaryFormat {
		return nil, &FormatError{Format: o.Format}
	}
	g := newBplistGenerator(o.Duplicates)
	b, err := g.generateDocument(v)
	if err != nil {
		Logger().Debug("binary encode failed", zap.Error(err))
		return nil, err
	}
	Logger().Debug("binary encode",
		zap.Int("objects", len(g.objects)),
		zap.Uint64("references", g.refs),
		zap.Int("bytes", len(b)))
	return b, nil
}

func (g *bplistGenerator) generateDocument(root Value) ([]byte, error) {
	g.size = uint64(len(bplistHeader))
	Walk(root, &Walker{
		Enter: Visitors{Default: g.enter},
		Value: Visitors{Default: g.value},
		Leave: Visitors{Default: g.leave},
	})
	if g.err != nil {
		return nil, g.err
	}

	count := uint64(len(g.objects))
	refSize := minimumSizeForInt(count)
	tableOffset := g.size + uint64(refSize)*g.refs
	offSize := minimumSizeForInt(tableOffset)

	buf := make([]byte, 0, tableOffset+uint64(offSize)*count+bplistTrailerSize)
	buf = append(buf, bplistHeader...)
	offsets := make([]uint64, count)
	for i, v := range g.objects {
		offsets[i] = uint64(len(buf))
		buf = g.appendObject(buf, v, refSize)
	}
	for _, off := range offsets {
		buf = appendSizedUint(buf, offSize, off)
	}
	trailer := bplistTrailer{
		OffsetIntSize:     uint8(offSize),
		ObjectRefSize:     uint8(refSize),
		NumObjects:        count,
		TopObject:         0,
		OffsetTableOffset: tableOffset,
	}
	return trailer.append(buf), nil
}

func (g *bplistGenerator) fail(reason error, t Type) int {
	g.err = &TypeError{Format: BinaryFormat, Type: t, Err: reason}
	return WalkStop
}

// add gives v a slot unless it already has one and is not duplicated.
func (g *bplistGenerator) add(v Value) bool {
	if _, ok := g.index[v]; ok {
		if g.duplicates == nil || !g.duplicates(v) {
			return false
		}
	} else {
		g.index[v] = uint64(len(g.objects))
	}
	g.objects = append(g.objects, v)
	return true
}

func (g *bplistGenerator) enter(v Visit) int {
	c := v.Value
	if _, ok := g.ancestors[c]; ok {
		return g.fail(ErrCircularReference, c.Type())
	}
	// a shared container keeps its first slot but its children are still
	// visited, so duplicated descendants get a slot per occurrence
	slotted := g.add(c)
	switch c := c.(type) {
	case *Array:
		if slotted {
			g.size += lengthSize(len(c.values))
			g.refs += uint64(len(c.values))
		}
	case *Set:
		if slotted {
			g.size += lengthSize(len(c.values))
			g.refs += uint64(len(c.values))
		}
	case *Dict:
		if slotted {
			g.size += lengthSize(len(c.keys))
			g.refs += 2 * uint64(len(c.keys))
		}
		// keys are slotted before any value, as CoreFoundation does
		for _, k := range c.keys {
			if !isScalar(k) {
				return g.fail(ErrInvalidKeyType, typeOf(k))
			}
			if g.add(k) {
				g.size += scalarSize(k)
			}
		}
	}
	g.ancestors[c] = struct{}{}
	return WalkContinue
}

func (g *bplistGenerator) value(v Visit) int {
	if !isScalar(v.Value) {
		return g.fail(ErrInvalidValueType, typeOf(v.Value))
	}
	if g.add(v.Value) {
		g.size += scalarSize(v.Value)
	}
	return WalkContinue
}

func (g *bplistGenerator) leave(v Visit) int {
	delete(g.ancestors, v.Value)
	return WalkContinue
}

// lengthSize is the size of a marker carrying a count of n.
func lengthSize(n int) uint64 {
	if n < int(bpLengthFollows) {
		return 1
	}
	return 2 + uint64(minimumSizeForInt(uint64(n)))
}

func scalarSize(v Value) uint64 {
	switch v := v.(type) {
	case *Null, *Boolean:
		return 1
	case *Integer:
		switch {
		case v.bits == 128:
			return 17
		case int64(v.lo) < 0:
			return 9
		}
		return 1 + uint64(minimumSizeForInt(v.lo))
	case *Real:
		if v.bits == 32 {
			return 5
		}
		return 9
	case *Date:
		return 9
	case *Data:
		return lengthSize(len(v.bytes)) + uint64(len(v.bytes))
	case *String:
		n := uint64(len(v.units))
		if !v.isASCII() {
			n *= 2
		}
		return lengthSize(len(v.units)) + n
	case *UID:
		return 1 + uint64(minimumSizeForInt(uint64(v.value)))
	}
	return 0
}

func appendUint(b []byte, v uint64) []byte {
	n := minimumSizeForInt(v)
	b = append(b, bpTagInteger|sizeNibble(n))
	return appendSizedUint(b, n, v)
}

func appendLength(b []byte, tag uint8, n int) []byte {
	if n < int(bpLengthFollows) {
		return append(b, tag|uint8(n))
	}
	b = append(b, tag|bpLengthFollows)
	return appendUint(b, uint64(n))
}

func (g *bplistGenerator) appendRefs(b []byte, refSize int, values []Value) []byte {
	for _, v := range values {
		b = appendSizedUint(b, refSize, g.index[v])
	}
	return b
}

func (g *bplistGenerator) appendObject(b []byte, v Value, refSize int) []byte {
	switch v := v.(type) {
	case *Null:
		return append(b, bpTagNull)
	case *Boolean:
		if v.value {
			return append(b, bpTagBoolTrue)
		}
		return append(b, bpTagBoolFalse)
	case *Integer:
		switch {
		case v.bits == 128:
			b = append(b, bpTagInteger128)
			b = binary.BigEndian.AppendUint64(b, v.hi)
			return binary.BigEndian.AppendUint64(b, v.lo)
		case int64(v.lo) < 0:
			b = append(b, bpTagInteger|sizeNibble(8))
			return binary.BigEndian.AppendUint64(b, v.lo)
		}
		return appendUint(b, v.lo)
	case *Real:
		if v.bits == 32 {
			b = append(b, bpTagReal32)
			return binary.BigEndian.AppendUint32(b, math.Float32bits(float32(v.value)))
		}
		b = append(b, bpTagReal64)
		return binary.BigEndian.AppendUint64(b, math.Float64bits(v.value))
	case *Date:
		b = append(b, bpTagDate64)
		return binary.BigEndian.AppendUint64(b, math.Float64bits(v.seconds))
	case *Data:
		b = appendLength(b, bpTagData, len(v.bytes))
		return append(b, v.bytes...)
	case *String:
		if v.isASCII() {
			b = appendLength(b, bpTagASCIIString, len(v.units))
			for _, u := range v.units {
				b = append(b, uint8(u))
			}
			return b
		}
		b = appendLength(b, bpTagUTF16String, len(v.units))
		for _, u := range v.units {
			b = binary.BigEndian.AppendUint16(b, u)
		}
		return b
	case *UID:
		n := minimumSizeForInt(uint64(v.value))
		b = append(b, bpTagUID|uint8(n-1))
		return appendSizedUint(b, n, uint64(v.value))
	case *Array:
		b = appendLength(b, bpTagArray, len(v.values))
		return g.appendRefs(b, refSize, v.values)
	case *Set:
		b = appendLength(b, bpTagSet, len(v.values))
		return g.appendRefs(b, refSize, v.values)
	case *Dict:
		b = appendLength(b, bpTagDictionary, len(v.keys))
		b = g.appendRefs(b, refSize, v.keys)
		return g.appendRefs(b, refSize, v.values)
	}
	return b
}
