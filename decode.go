package plist

import (
	"io"
)

// A Decoder reads a property list from an input stream.
type Decoder struct {
	// Format is the format of the last decoded document.
	Format Format

	reader io.Reader
}

// NewDecoder returns a Decoder that reads from r. The format is detected
// from the data.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// Decode reads the whole input and decodes it.
func (d *Decoder) Decode() (Value, error) {
	data, err := io.ReadAll(d.reader)
	if err != nil {
		return nil, err
	}
	d.Format = detectFormat(data)
	return decodeFormat(data, d.Format)
}

// DecodeInto decodes the input and assigns the result to v.
func (d *Decoder) DecodeInto(v interface{}) error {
	pval, err := d.Decode()
	if err != nil {
		return err
	}
	if out, ok := v.(*Value); ok {
		*out = pval
		return nil
	}
	return Assign(pval, v)
}
