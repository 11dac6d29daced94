package packbits

import "fmt"

// Encode compresses src. Runs of three or more identical bytes become repeat
// groups, everything else literal groups.
func Encode(src []byte) []byte {
	return AppendEncode(make([]byte, 0, len(src)+len(src)/maxLiteral+1), src)
}

// AppendEncode appends the encoding of src to dst.
func AppendEncode(dst, src []byte) []byte {
	return encode(dst, src, 1)
}

// EncodeWords compresses src as a sequence of 16-bit units.
func EncodeWords(src []byte) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, fmt.Errorf("packbits: odd length %d for word encoding", len(src))
	}
	return encode(make([]byte, 0, len(src)+len(src)/maxLiteral+1), src, 2), nil
}

func encode(dst, src []byte, unit int) []byte {
	n := len(src) / unit
	at := func(i int) []byte { return src[i*unit : (i+1)*unit] }
	same := func(i, j int) bool {
		a, b := at(i), at(j)
		for k := range a {
			if a[k] != b[k] {
				return false
			}
		}
		return true
	}
	runAt := func(i int) int {
		r := 1
		for i+r < n && r < maxRepeat && same(i, i+r) {
			r++
		}
		return r
	}

	for i := 0; i < n; {
		if r := runAt(i); r >= minRepeat {
			dst = append(dst, byte(int8(1-r)))
			dst = append(dst, at(i)...)
			i += r
			continue
		}
		j := i + 1
		for j < n && j-i < maxLiteral && runAt(j) < minRepeat {
			j++
		}
		dst = append(dst, byte(j-i-1))
		dst = append(dst, src[i*unit:j*unit]...)
		i = j
	}
	return dst
}
