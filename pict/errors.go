package pict

import "fmt"

// Kind classifies decode failures. A Kind is itself an error so that
// errors.Is(err, pict.RowSizeMismatch) works on any error returned by this
// package.
type Kind int

const (
	UnexpectedEndOfData Kind = iota + 1
	InvalidHeader
	UnsupportedPixelDepth
	RowSizeMismatch
	PaletteIndexOutOfRange
	MalformedOpcodePayload
	PackbitsLengthMismatch
)

var kindName = map[Kind]string{
	UnexpectedEndOfData:    "unexpected end of data",
	InvalidHeader:          "invalid header",
	UnsupportedPixelDepth:  "unsupported pixel depth",
	RowSizeMismatch:        "row size mismatch",
	PaletteIndexOutOfRange: "palette index out of range",
	MalformedOpcodePayload: "malformed opcode payload",
	PackbitsLengthMismatch: "packbits length mismatch",
}

func (k Kind) String() string {
	if s, ok := kindName[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Error() string {
	return "pict: " + k.String()
}

// Error is the error returned for malformed or unsupported pictures.
type Error struct {
	Kind   Kind
	Offset int // byte offset in the picture data
	Opcode int // opcode being parsed, -1 if none
	Detail string

	err error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("pict: %s at offset %#x", e.Kind, e.Offset)
	if e.Opcode >= 0 {
		s += fmt.Sprintf(" (opcode %04x)", e.Opcode)
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.err != nil {
		s += ": " + e.err.Error()
	}
	return s
}

// Unwrap returns the kind and, when present, the underlying cause.
func (e *Error) Unwrap() []error {
	if e.err != nil {
		return []error{e.Kind, e.err}
	}
	return []error{e.Kind}
}

func newError(kind Kind, offset int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: offset, Opcode: -1, Detail: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, offset int, err error, format string, args ...interface{}) *Error {
	e := newError(kind, offset, format, args...)
	e.err = err
	return e
}
