package plist

import "unicode/utf16"

// String holds text as UTF-16 code units. Unpaired surrogates are kept
// as they are.
type String struct {
	units []uint16
}

// NewString returns a string value holding s.
func NewString(s string) *String {
	return &String{units: utf16.Encode([]rune(s))}
}

// NewStringUTF16 returns a string value holding the code units. The slice
// is owned by the value afterwards.
func NewStringUTF16(units []uint16) *String {
	return &String{units: units}
}

func (*String) Type() Type { return TypeString }

// String returns the text as UTF-8. Unpaired surrogates become U+FFFD.
func (s *String) String() string {
	if s.isASCII() {
		b := make([]byte, len(s.units))
		for i, u := range s.units {
			b[i] = byte(u)
		}
		return string(b)
	}
	return string(utf16.Decode(s.units))
}

// UTF16 returns the code units.
func (s *String) UTF16() []uint16 { return s.units }

// Set replaces the text.
func (s *String) Set(v string) { s.units = utf16.Encode([]rune(v)) }

// Len returns the number of UTF-16 code units.
func (s *String) Len() int { return len(s.units) }

func (s *String) isASCII() bool {
	for _, u := range s.units {
		if u > 0x7F {
			return false
		}
	}
	return true
}

func (s *String) equalString(v string) bool {
	return s.String() == v
}
