package helpers

// GetBit reports whether bit n of b is set.
func GetBit(b uint8, n int) bool {
	return b&(1<<n) != 0
}

func SetBit(b *uint8, n int, v bool) {
	if v {
		*b |= 1 << n
	} else {
		*b &^= 1 << n
	}
}

// HasFlag reports whether any bit of flag is set in b.
func HasFlag(b, flag uint8) bool {
	return b&flag != 0
}
