package plist

import (
	"math"
	"strconv"
	"time"
)

// Type identifies the variant of a Value.
type Type uint8

// Property list value types.
const (
	TypeInvalid Type = iota
	TypeNull
	TypeBoolean
	TypeInteger
	TypeReal
	TypeDate
	TypeData
	TypeString
	TypeUID
	TypeArray
	TypeDict
	TypeSet
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeNull:    "null",
	TypeBoolean: "boolean",
	TypeInteger: "integer",
	TypeReal:    "real",
	TypeDate:    "date",
	TypeData:    "data",
	TypeString:  "string",
	TypeUID:     "uid",
	TypeArray:   "array",
	TypeDict:    "dict",
	TypeSet:     "set",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Value is a node of a property list. Values are compared by identity:
// every implementation in this package is a pointer type.
type Value interface {
	Type() Type
}

func typeOf(v Value) Type {
	if v == nil {
		return TypeInvalid
	}
	return v.Type()
}

// Null is the binary-only null value.
type Null struct {
	// keeps the struct non-zero-sized so distinct nulls are distinct pointers
	_ byte
}

// NewNull returns a new null value.
func NewNull() *Null { return &Null{} }

func (*Null) Type() Type { return TypeNull }

// Boolean holds a bool.
type Boolean struct {
	value bool
}

// NewBoolean returns a new boolean value.
func NewBoolean(b bool) *Boolean { return &Boolean{value: b} }

func (*Boolean) Type() Type { return TypeBoolean }

// Value returns the boolean.
func (b *Boolean) Value() bool { return b.value }

// Set replaces the boolean.
func (b *Boolean) Set(v bool) { b.value = v }

// Date is a point in time stored as seconds since the plist epoch.
// The seconds may be any float64, including infinities and NaN.
type Date struct {
	seconds float64
}

// Epoch is the zero point of Date: 2001-01-01T00:00:00Z.
var Epoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// unix seconds of Epoch
const epochUnix = 978307200

// NewDate returns a date the given number of seconds after Epoch.
func NewDate(seconds float64) *Date { return &Date{seconds: seconds} }

// DateFromTime converts t to a Date.
func DateFromTime(t time.Time) *Date {
	secs := float64(t.Unix()-epochUnix) + float64(t.Nanosecond())/1e9
	return &Date{seconds: secs}
}

func (*Date) Type() Type { return TypeDate }

// Seconds returns the offset from Epoch in seconds.
func (d *Date) Seconds() float64 { return d.seconds }

// SetSeconds replaces the offset from Epoch.
func (d *Date) SetSeconds(s float64) { d.seconds = s }

// Time converts the date to a time.Time in UTC. ok is false when the
// date is NaN, infinite or outside the range time.Time can represent.
func (d *Date) Time() (t time.Time, ok bool) {
	s := d.seconds
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return time.Time{}, false
	}
	whole, frac := math.Modf(s)
	if frac < 0 {
		whole--
		frac++
	}
	if whole > math.MaxInt64/2 || whole < math.MinInt64/2 {
		return time.Time{}, false
	}
	return time.Unix(int64(whole)+epochUnix, int64(frac*1e9)).UTC(), true
}

// Data holds raw bytes.
type Data struct {
	bytes []byte
}

// NewData returns a data value that takes ownership of b.
func NewData(b []byte) *Data { return &Data{bytes: b} }

func (*Data) Type() Type { return TypeData }

// Bytes returns the underlying bytes.
func (d *Data) Bytes() []byte { return d.bytes }

// SetBytes replaces the underlying bytes.
func (d *Data) SetBytes(b []byte) { d.bytes = b }

// Len returns the number of bytes.
func (d *Data) Len() int { return len(d.bytes) }

// UID is a keyed-archiver object reference.
type UID struct {
	value uint32
}

// NewUID returns a new UID value.
func NewUID(v uint32) *UID { return &UID{value: v} }

func (*UID) Type() Type { return TypeUID }

// Value returns the reference.
func (u *UID) Value() uint32 { return u.value }

// Set replaces the reference.
func (u *UID) Set(v uint32) { u.value = v }

// MarshalJSON writes the reference the way XML property lists spell it.
func (u *UID) MarshalJSON() ([]byte, error) {
	return []byte(`{"CF$UID":` + strconv.FormatUint(uint64(u.value), 10) + `}`), nil
}

func isContainer(v Value) bool {
	switch v.(type) {
	case *Array, *Dict, *Set:
		return true
	}
	return false
}

func isScalar(v Value) bool {
	switch v.(type) {
	case *Null, *Boolean, *Integer, *Real, *Date, *Data, *String, *UID:
		return true
	}
	return false
}
