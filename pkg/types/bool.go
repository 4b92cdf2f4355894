package types

type Bool struct{}

func (Bool) Name() string { return "bool" }
func (Bool) Size() int    { return 2 }

func (Bool) Encode(v bool) ([]byte, error) {
	buf := []byte{validByte, 0}
	if v {
		buf[1] = 1
	}
	return buf, nil
}

func (Bool) Decode(b []byte) bool {
	return b[1] == 1
}

func (Bool) IsEmpty(b []byte) bool {
	return b[0] != validByte
}

func (Bool) Compare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
