package pointer

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

var bin = binary.BigEndian

// Size of a pointer on disk: kind (1) + position (8) + chunk (4).
const Size = 13

type Kind uint8

const (
	KindNode Kind = 0x01
	KindData Kind = 0x02
)

// Pointer is the address of one fixed-size slot: a position relative to the
// owning table's region within the given chunk.
type Pointer struct {
	Kind     Kind
	Position uint64
	Chunk    uint32
}

func Node(chunk uint32, position uint64) Pointer {
	return Pointer{Kind: KindNode, Position: position, Chunk: chunk}
}

// IsEmpty reports whether p is the zero pointer (no kind tag).
func (p Pointer) IsEmpty() bool {
	return p.Kind == 0
}

// Put writes p into buf[:Size].
func (p Pointer) Put(buf []byte) {
	buf[0] = byte(p.Kind)
	bin.PutUint64(buf[1:9], p.Position)
	bin.PutUint32(buf[9:13], p.Chunk)
}

func (p Pointer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	p.Put(buf)
	return buf, nil
}

func (p *Pointer) UnmarshalBinary(d []byte) error {
	if len(d) < Size {
		return errors.Errorf("pointer needs %d bytes, got %d", Size, len(d))
	}
	*p = Read(d)
	return nil
}

// Read decodes the pointer stored in buf[:Size]. An empty slot decodes to
// the zero pointer.
func Read(buf []byte) Pointer {
	if buf[0] == 0 {
		return Pointer{}
	}
	return Pointer{
		Kind:     Kind(buf[0]),
		Position: bin.Uint64(buf[1:9]),
		Chunk:    bin.Uint32(buf[9:13]),
	}
}

func (p Pointer) String() string {
	if p.IsEmpty() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", p.Position, p.Chunk)
}
