package plist

import (
	"io"
)

// An Encoder writes a property list to an output stream.
type Encoder struct {
	writer     io.Writer
	format     Format
	indent     string
	duplicates func(Value) bool
}

// NewEncoder returns an Encoder that writes an XML property list to w.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderForFormat(w, XMLFormat)
}

// NewEncoderForFormat returns an Encoder that writes a property list of
// the given format to w. AutomaticFormat selects XML.
func NewEncoderForFormat(w io.Writer, format Format) *Encoder {
	if format == AutomaticFormat {
		format = XMLFormat
	}
	return &Encoder{
		writer: w,
		format: format,
		indent: "\t",
	}
}

// Indent sets the indentation of XML output.
func (e *Encoder) Indent(indent string) {
	e.indent = indent
}

// Duplicates sets the predicate of values written once per occurrence in
// binary output. See BinaryOptions.
func (e *Encoder) Duplicates(fn func(Value) bool) {
	e.duplicates = fn
}

// Encode writes v. It may be a Value or any Go value FromNative accepts.
func (e *Encoder) Encode(v interface{}) error {
	pval, ok := v.(Value)
	if !ok {
		var err error
		if pval, err = FromNative(v); err != nil {
			return err
		}
	}

	switch e.format {
	case XMLFormat:
		g := newXMLPlistGenerator(e.writer)
		g.Indent(e.indent)
		return g.generateDocument(pval)
	case BinaryFormat:
		b, err := EncodeBinary(pval, &BinaryOptions{Format: BinaryFormat, Duplicates: e.duplicates})
		if err != nil {
			return err
		}
		_, err = e.writer.Write(b)
		return err
	}
	return &FormatError{Format: e.format}
}
