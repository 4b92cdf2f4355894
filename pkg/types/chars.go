package types

import (
	"bytes"
	"fmt"
	"strings"

	"go-bpindex/pkg/customerrors"

	"github.com/pkg/errors"
)

// Chars stores strings of at most n bytes, zero padded. Strings containing
// a NUL byte are rejected since the padding could not be told apart.
type Chars struct {
	n int
}

func NewChars(n int) *Chars {
	return &Chars{n: n}
}

func (c *Chars) Name() string { return fmt.Sprintf("char(%d)", c.n) }
func (c *Chars) Size() int    { return c.n + 1 }

func (c *Chars) Encode(v string) ([]byte, error) {
	if len(v) > c.n {
		return nil, errors.Wrapf(customerrors.ErrInvalidEncoding, "%q is longer than %d bytes", v, c.n)
	}
	if strings.IndexByte(v, 0) >= 0 {
		return nil, errors.Wrap(customerrors.ErrInvalidEncoding, "string contains NUL byte")
	}

	buf := make([]byte, c.Size())
	buf[0] = validByte
	copy(buf[1:], v)
	return buf, nil
}

func (c *Chars) Decode(b []byte) string {
	body := b[1 : c.n+1]
	if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	return string(body)
}

func (c *Chars) IsEmpty(b []byte) bool {
	return b[0] != validByte
}

func (c *Chars) Compare(a, b string) int {
	return strings.Compare(a, b)
}
