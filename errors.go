package plist

import (
	"errors"
	"fmt"
)

// Reasons carried by a TypeError.
var (
	ErrCircularReference = errors.New("circular reference")
	ErrInvalidKeyType    = errors.New("invalid key type")
	ErrInvalidValueType  = errors.New("invalid value type")
)

// SyntaxError reports malformed encoded data. Offset is the byte offset of
// the first inconsistency, or -1 when unknown.
type SyntaxError struct {
	Format Format
	Offset int64
	Err    error
}

func (e *SyntaxError) Error() string {
	s := fmt.Sprintf("plist: invalid %s property list", e.Format)
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// TypeError reports a value graph that cannot be encoded in a format.
type TypeError struct {
	Format Format
	Type   Type
	Err    error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("plist: cannot encode %s property list: %v: %s", e.Format, e.Err, e.Type)
}

func (e *TypeError) Unwrap() error { return e.Err }

// FormatError reports a format the operation does not support.
type FormatError struct {
	Format Format
}

func (e *FormatError) Error() string {
	return "plist: unsupported format " + e.Format.String()
}
