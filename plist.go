// Package plist implements encoding and decoding of Apple property lists.
//
// Property lists are held as trees of typed Values. The binary format
// (bplist00) is the primary codec; the XML format is also supported.
// Values can be converted to and from plain Go values with Native,
// FromNative and Assign, or through Marshal and Unmarshal.
package plist

import (
	"bytes"
	"strconv"
)

// Format is a property list encoding.
type Format int

// Property list formats. AutomaticFormat selects the format from the data
// when decoding and the default format when encoding.
const (
	AutomaticFormat Format = iota
	XMLFormat
	BinaryFormat
	OpenStepFormat
)

// FormatNames maps formats to their names.
var FormatNames = map[Format]string{
	AutomaticFormat: "automatic",
	XMLFormat:       "XML",
	BinaryFormat:    "binary",
	OpenStepFormat:  "OpenStep",
}

func (f Format) String() string {
	if name, ok := FormatNames[f]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(f)) + ")"
}

// detectFormat reports the format of an encoded document.
func detectFormat(data []byte) Format {
	if bytes.HasPrefix(data, []byte(bplistMagic)) {
		return BinaryFormat
	}
	return XMLFormat
}

// Marshal returns the encoding of v in the given format. v may be a Value
// or any Go value FromNative accepts.
func Marshal(v interface{}, format Format) ([]byte, error) {
	return MarshalIndent(v, format, "\t")
}

// MarshalIndent works like Marshal, indenting XML output with indent.
func MarshalIndent(v interface{}, format Format, indent string) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := NewEncoderForFormat(buf, format)
	enc.Indent(indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data and stores the result in v, returning the format
// that was found. v may be a *Value, which receives the decoded tree, or
// a pointer to any Go value Assign accepts.
func Unmarshal(data []byte, v interface{}) (Format, error) {
	format := detectFormat(data)
	pval, err := decodeFormat(data, format)
	if err != nil {
		return format, err
	}
	if out, ok := v.(*Value); ok {
		*out = pval
		return format, nil
	}
	return format, Assign(pval, v)
}

func decodeFormat(data []byte, format Format) (Value, error) {
	switch format {
	case BinaryFormat:
		return DecodeBinary(data)
	case XMLFormat:
		return DecodeXML(data)
	}
	return nil, &FormatError{Format: format}
}
