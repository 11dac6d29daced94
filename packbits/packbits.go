// Package packbits implements the PackBits run-length scheme used by
// QuickDraw pictures, MacPaint and TIFF.
//
// A stream is a sequence of groups. The control byte n of a group is read
// as a signed 8-bit value:
//
//	0 <= n <= 127     n+1 literal bytes follow
//	-127 <= n <= -1   one byte follows, repeated 1-n times
//	n == -128         no operation
package packbits

import (
	"errors"
	"fmt"
)

const (
	minRepeat  = 3
	maxRepeat  = 128
	maxLiteral = 128
	noOp       = 0x80
)

var (
	// ErrLengthMismatch reports that the decoded length differs from the
	// expected one.
	ErrLengthMismatch = errors.New("packbits: length mismatch")

	// ErrTruncated reports that a group needs more payload bytes than the
	// input holds. It matches ErrLengthMismatch.
	ErrTruncated = fmt.Errorf("%w: truncated run", ErrLengthMismatch)

	// ErrOverflow reports that a group would write past the output capacity.
	// It matches ErrLengthMismatch.
	ErrOverflow = fmt.Errorf("%w: run exceeds output capacity", ErrLengthMismatch)
)

// Unpack decodes groups from src into dst. It stops when src is exhausted or
// when dst is full and the next group is not a no-op. It returns the number
// of bytes written to dst and consumed from src.
func Unpack(dst, src []byte) (nDst, nSrc int, err error) {
	return unpack(dst, src, 1)
}

// Decode inflates src, which must expand to exactly n bytes.
func Decode(src []byte, n int) ([]byte, error) {
	return decode(src, n, 1)
}

// UnpackWords is Unpack with 16-bit units: counts refer to 2-byte words.
func UnpackWords(dst, src []byte) (nDst, nSrc int, err error) {
	return unpack(dst, src, 2)
}

// DecodeWords inflates src written with 16-bit units into exactly n bytes.
func DecodeWords(src []byte, n int) ([]byte, error) {
	return decode(src, n, 2)
}

func decode(src []byte, n, unit int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrLengthMismatch, n)
	}
	dst := make([]byte, n)
	nDst, nSrc, err := unpack(dst, src, unit)
	if err != nil {
		return nil, err
	}
	if nSrc != len(src) {
		return nil, fmt.Errorf("%w: %d input bytes left after %d output bytes", ErrLengthMismatch, len(src)-nSrc, n)
	}
	if nDst != n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, nDst, n)
	}
	return dst, nil
}

func unpack(dst, src []byte, unit int) (int, int, error) {
	d, s := 0, 0
	for s < len(src) {
		n := int(int8(src[s]))
		if n == -128 {
			s++
			continue
		}
		if d == len(dst) {
			break
		}
		if n >= 0 {
			count := (n + 1) * unit
			if len(src)-s-1 < count {
				return d, s, ErrTruncated
			}
			if len(dst)-d < count {
				return d, s, ErrOverflow
			}
			copy(dst[d:], src[s+1:s+1+count])
			d += count
			s += 1 + count
			continue
		}
		count := (1 - n) * unit
		if len(src)-s-1 < unit {
			return d, s, ErrTruncated
		}
		if len(dst)-d < count {
			return d, s, ErrOverflow
		}
		val := src[s+1 : s+1+unit]
		for i := 0; i < count; i += unit {
			copy(dst[d+i:], val)
		}
		d += count
		s += 1 + unit
	}
	return d, s, nil
}
