package storage

import (
	"context"
	"os"

	"go-bpindex/pkg/customerrors"
	"go-bpindex/pkg/header"
	"go-bpindex/pkg/node"
	"go-bpindex/pkg/pager"
	"go-bpindex/pkg/pointer"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxChunks bounds how many chunks allocation walks through before giving up.
const maxChunks = 1 << 16

// allocate stores data in a free slot of table and returns its address.
func (m *FileManager) allocate(ctx context.Context, table int, data []byte) (pointer.Pointer, error) {
	batch := int64(len(data) * m.opts.GrowthNodeCount)
	maxSize := m.opts.MaxChunkSize
	if !m.layout.chunked() {
		maxSize = 0
	}
	if maxSize > 0 && batch > maxSize {
		return pointer.Pointer{}, errors.Wrapf(customerrors.ErrAllocationExhausted,
			"growth batch of %s exceeds max chunk size %s", humanize.Bytes(uint64(batch)), humanize.Bytes(uint64(maxSize)))
	}

	chunk := uint32(0)
	if chunks := m.registry.Chunks(table); len(chunks) > 0 {
		chunk = chunks[len(chunks)-1]
		if m.opts.ReclaimScan == ReclaimRegion {
			chunk = chunks[0]
		}
	}

	for i := 0; i < maxChunks; i++ {
		ptr, ok, err := m.allocateIn(ctx, table, chunk, data, batch, maxSize)
		if err != nil || ok {
			return ptr, err
		}
		if !m.layout.chunked() {
			break
		}
		chunk++
	}
	return pointer.Pointer{}, errors.Wrapf(customerrors.ErrAllocationExhausted, "no chunk can hold table %d", table)
}

// allocateIn tries to place data in the given chunk. It reports false when
// the chunk file is full and has no free slot for the table.
func (m *FileManager) allocateIn(
	ctx context.Context,
	table int,
	chunk uint32,
	data []byte,
	batch, maxSize int64,
) (ptr pointer.Pointer, ok bool, err error) {
	path := m.layout.path(table, chunk)
	l := m.lock(path)
	l.Lock()
	defer l.Unlock()

	log := m.log.WithFields(logrus.Fields{"table": table, "chunk": chunk})

	err = m.withFile(ctx, path, func(f *os.File) error {
		size, err := pager.Size(f)
		if err != nil {
			return err
		}
		full := maxSize > 0 && size+batch > maxSize

		start, hasRegion := m.registry.Region(table, chunk)
		if !hasRegion {
			if full {
				return nil
			}
			off, err := pager.Append(f, batch)
			if err != nil {
				return err
			}
			if err := m.registry.SetRegions(header.Region{Table: table, Chunk: chunk, Offset: off}); err != nil {
				return errors.Wrap(err, "failed to record region")
			}
			log.WithField("offset", off).Debugf("created region of %s", humanize.Bytes(uint64(batch)))
			ptr, ok = pointer.Node(chunk, 0), true
			return pager.Write(f, off, data)
		}

		end := m.regionEnd(table, chunk, start, size)
		from := start
		if m.opts.ReclaimScan == ReclaimTail && end-batch > start {
			from = end - batch
		}

		pos, found, err := scanFree(f, from, end, batch, len(data))
		if err != nil {
			return err
		}
		if found {
			ptr, ok = pointer.Node(chunk, uint64(pos-start)), true
			return pager.Write(f, pos, data)
		}
		if full {
			return nil
		}

		if err := m.grow(f, table, chunk, end, size, batch); err != nil {
			return err
		}
		log.WithField("offset", end).Debugf("grew region by %s", humanize.Bytes(uint64(batch)))
		ptr, ok = pointer.Node(chunk, uint64(end-start)), true
		return pager.Write(f, end, data)
	})
	return ptr, ok, err
}

// grow adds batch zero bytes at the end of the table's region. When other
// tables follow in the same file their regions are shifted forward.
func (m *FileManager) grow(f *os.File, table int, chunk uint32, end, size, batch int64) error {
	if end == size {
		_, err := pager.Append(f, batch)
		return err
	}

	if err := pager.Insert(f, end, batch); err != nil {
		return err
	}

	shifted := []header.Region{}
	for _, r := range m.registry.Regions(chunk) {
		if r.Table != table && r.Offset >= end {
			r.Offset += batch
			shifted = append(shifted, r)
		}
	}
	return errors.Wrap(m.registry.SetRegions(shifted...), "failed to shift regions")
}

// regionEnd returns the offset where the region starting at start ends: the
// start of the next table's region in the same file, or the file size.
func (m *FileManager) regionEnd(table int, chunk uint32, start, size int64) int64 {
	if !m.layout.shared() {
		return size
	}
	for _, r := range m.registry.Regions(chunk) {
		if r.Table != table && r.Offset > start {
			return r.Offset
		}
	}
	return size
}

// scanFree looks for the first slot in [from, end) whose header has neither
// the leaf nor the internal flag, reading at most batch bytes at a time.
func scanFree(f *os.File, from, end, batch int64, nodeSize int) (int64, bool, error) {
	step := batch - batch%int64(nodeSize)
	for off := from; off < end; off += step {
		n := min(step, end-off)
		buf, err := pager.Read(f, off, int(n))
		if err != nil {
			return 0, false, errors.Wrap(err, "failed to scan free slots")
		}
		for i := 0; i+nodeSize <= len(buf); i += nodeSize {
			if node.IsFree(buf[i]) {
				return off + int64(i), true, nil
			}
		}
	}
	return 0, false, nil
}
