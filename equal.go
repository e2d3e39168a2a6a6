package plist

import "math"

// Equal reports whether a and b are structurally equal: same variants,
// same values and widths, and containers with equal children in the same
// order. Reals and dates compare by bit pattern, so NaN equals NaN.
func Equal(a, b Value) bool {
	return equalValue(a, b, make(map[[2]Value]bool))
}

func equalValue(a, b Value, seen map[[2]Value]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch a := a.(type) {
	case *Null:
		_, ok := b.(*Null)
		return ok
	case *Boolean:
		b, ok := b.(*Boolean)
		return ok && a.value == b.value
	case *Integer:
		b, ok := b.(*Integer)
		return ok && *a == *b
	case *Real:
		b, ok := b.(*Real)
		return ok && a.bits == b.bits && math.Float64bits(a.value) == math.Float64bits(b.value)
	case *Date:
		b, ok := b.(*Date)
		return ok && math.Float64bits(a.seconds) == math.Float64bits(b.seconds)
	case *Data:
		b, ok := b.(*Data)
		return ok && string(a.bytes) == string(b.bytes)
	case *String:
		b, ok := b.(*String)
		if !ok || len(a.units) != len(b.units) {
			return false
		}
		for i, u := range a.units {
			if b.units[i] != u {
				return false
			}
		}
		return true
	case *UID:
		b, ok := b.(*UID)
		return ok && a.value == b.value
	}

	// containers; a pair already under comparison is assumed equal
	pair := [2]Value{a, b}
	if seen[pair] {
		return true
	}
	seen[pair] = true
	switch a := a.(type) {
	case *Array:
		b, ok := b.(*Array)
		return ok && equalValues(a.values, b.values, seen)
	case *Set:
		b, ok := b.(*Set)
		return ok && equalValues(a.values, b.values, seen)
	case *Dict:
		b, ok := b.(*Dict)
		return ok && equalValues(a.keys, b.keys, seen) && equalValues(a.values, b.values, seen)
	}
	return false
}

func equalValues(a, b []Value, seen map[[2]Value]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalValue(a[i], b[i], seen) {
			return false
		}
	}
	return true
}
