package plist

import (
	"fmt"
	"math"
	"math/big"
)

// IntegerBits is the declared width of an Integer.
type IntegerBits uint8

// RealBits is the declared width of a Real.
type RealBits uint8

// Integer is a signed integer of a declared width. Values are stored as
// 128-bit two's complement and truncated to the width.
type Integer struct {
	hi, lo uint64
	bits   IntegerBits
}

// NewInteger returns a 64-bit integer.
func NewInteger(v int64) *Integer {
	return NewIntegerBits(v, 64)
}

// NewIntegerBits returns an integer of the given width, truncating v.
// It panics if bits is not one of 8, 16, 32, 64 or 128.
func NewIntegerBits(v int64, bits IntegerBits) *Integer {
	i := &Integer{hi: signWord(v), lo: uint64(v)}
	i.SetBits(bits)
	return i
}

// NewIntegerUint64 returns a 64-bit integer when v fits in an int64 and
// a 128-bit integer otherwise.
func NewIntegerUint64(v uint64) *Integer {
	if v > math.MaxInt64 {
		return &Integer{lo: v, bits: 128}
	}
	return &Integer{lo: v, bits: 64}
}

// NewInteger128 returns a 128-bit integer from its two's complement
// high and low words.
func NewInteger128(hi, lo uint64) *Integer {
	return &Integer{hi: hi, lo: lo, bits: 128}
}

func signWord(v int64) uint64 {
	if v < 0 {
		return math.MaxUint64
	}
	return 0
}

func (*Integer) Type() Type { return TypeInteger }

// Bits returns the declared width.
func (i *Integer) Bits() IntegerBits { return i.bits }

// SetBits changes the declared width, truncating the value when narrowing.
func (i *Integer) SetBits(bits IntegerBits) {
	switch bits {
	case 8:
		i.setInt64(int64(int8(i.lo)))
	case 16:
		i.setInt64(int64(int16(i.lo)))
	case 32:
		i.setInt64(int64(int32(i.lo)))
	case 64:
		i.setInt64(int64(i.lo))
	case 128:
	default:
		panic(fmt.Sprintf("plist: invalid integer bits %d", bits))
	}
	i.bits = bits
}

func (i *Integer) setInt64(v int64) {
	i.hi, i.lo = signWord(v), uint64(v)
}

// SetInt64 replaces the value, truncating it to the declared width.
func (i *Integer) SetInt64(v int64) {
	i.setInt64(v)
	i.SetBits(i.bits)
}

// Words returns the two's complement high and low words.
func (i *Integer) Words() (hi, lo uint64) { return i.hi, i.lo }

// Int64 returns the low 64 bits as a signed integer.
func (i *Integer) Int64() int64 { return int64(i.lo) }

// Uint64 returns the low 64 bits.
func (i *Integer) Uint64() uint64 { return i.lo }

// Negative reports whether the value is below zero.
func (i *Integer) Negative() bool { return int64(i.hi) < 0 }

// IsInt64 reports whether the value fits in an int64 without loss.
func (i *Integer) IsInt64() bool { return i.hi == signWord(int64(i.lo)) }

// BigInt returns the value as a big.Int.
func (i *Integer) BigInt() *big.Int {
	hi := new(big.Int).SetUint64(i.hi)
	n := new(big.Int).Lsh(hi, 64)
	n.Or(n, new(big.Int).SetUint64(i.lo))
	if i.Negative() {
		n.Sub(n, two128)
	}
	return n
}

var (
	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	maxUint64W = new(big.Int).SetUint64(math.MaxUint64)
)

// integerFromBig returns a 64-bit integer when n fits in an int64 and a
// 128-bit integer when it fits in 128 bits. ok is false otherwise.
func integerFromBig(n *big.Int) (i *Integer, ok bool) {
	if n.IsInt64() {
		return NewInteger(n.Int64()), true
	}
	if n.Cmp(minInt128) < 0 || n.Cmp(maxInt128) > 0 {
		return nil, false
	}
	m := new(big.Int).Set(n)
	if m.Sign() < 0 {
		m.Add(m, two128)
	}
	lo := new(big.Int).And(m, maxUint64W).Uint64()
	hi := new(big.Int).Rsh(m, 64).Uint64()
	return NewInteger128(hi, lo), true
}

func (i *Integer) String() string {
	if i.IsInt64() {
		return fmt.Sprint(i.Int64())
	}
	return i.BigInt().String()
}

// Real is a floating point number of a declared width.
type Real struct {
	value float64
	bits  RealBits
}

// NewReal returns a 64-bit real.
func NewReal(v float64) *Real { return &Real{value: v, bits: 64} }

// NewReal32 returns a 32-bit real.
func NewReal32(v float32) *Real { return &Real{value: float64(v), bits: 32} }

// NewRealBits returns a real of the given width. It panics if bits is
// not 32 or 64.
func NewRealBits(v float64, bits RealBits) *Real {
	r := &Real{value: v, bits: 64}
	r.SetBits(bits)
	return r
}

func (*Real) Type() Type { return TypeReal }

// Value returns the number.
func (r *Real) Value() float64 { return r.value }

// Set replaces the number, rounding it for 32-bit reals.
func (r *Real) Set(v float64) {
	if r.bits == 32 {
		v = float64(float32(v))
	}
	r.value = v
}

// Bits returns the declared width.
func (r *Real) Bits() RealBits { return r.bits }

// SetBits changes the declared width.
func (r *Real) SetBits(bits RealBits) {
	switch bits {
	case 32:
		r.value = float64(float32(r.value))
	case 64:
	default:
		panic(fmt.Sprintf("plist: invalid real bits %d", bits))
	}
	r.bits = bits
}
