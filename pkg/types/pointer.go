package types

import (
	"go-bpindex/pkg/pointer"
)

// Pointer stores slot addresses, e.g. as the value of a secondary index
// pointing at row data.
type Pointer struct{}

func (Pointer) Name() string { return "pointer" }
func (Pointer) Size() int    { return pointer.Size }

func (Pointer) Encode(v pointer.Pointer) ([]byte, error) {
	return v.MarshalBinary()
}

func (Pointer) Decode(b []byte) pointer.Pointer {
	return pointer.Read(b)
}

func (Pointer) IsEmpty(b []byte) bool {
	return b[0] == 0
}

func (Pointer) Compare(a, b pointer.Pointer) int {
	if a.Chunk != b.Chunk {
		return Uint32().Compare(a.Chunk, b.Chunk)
	}
	if a.Position != b.Position {
		return Uint64().Compare(a.Position, b.Position)
	}
	return int(a.Kind) - int(b.Kind)
}
