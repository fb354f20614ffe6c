// Package conv appends integers to byte slices without fmt or strconv, for
// MCU log lines built in place.
package conv

// AppendUint appends the base-10 form of n to dst.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// AppendInt appends the base-10 form of n to dst.
func AppendInt(dst []byte, n int64) []byte {
	if n < 0 {
		// -n overflows for MinInt64; uint64 negation does not.
		return AppendUint(append(dst, '-'), -uint64(n))
	}
	return AppendUint(dst, uint64(n))
}

// AppendHex appends n as "0x" followed by at least width lowercase digits.
func AppendHex(dst []byte, n uint64, width int) []byte {
	const digits = "0123456789abcdef"
	var tmp [16]byte
	i := len(tmp)
	for n > 0 || len(tmp)-i < width {
		if i == 0 {
			break
		}
		i--
		tmp[i] = digits[n&0xF]
		n >>= 4
	}
	if i == len(tmp) {
		i--
		tmp[i] = '0'
	}
	return append(append(dst, '0', 'x'), tmp[i:]...)
}
