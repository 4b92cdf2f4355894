// Package pager implements positional block I/O on growable files.
package pager

import (
	"io"
	"os"

	"go-bpindex/pkg/customerrors"

	"github.com/pkg/errors"
)

// copyBufSize bounds the memory used when shifting a file's tail.
const copyBufSize = 64 * 1024

// File is the subset of *os.File used by the pager.
type File interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
}

func Size(f File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, customerrors.IO(err, "failed to stat file")
	}
	return fi.Size(), nil
}

// Read reads exactly n bytes at off.
func Read(f File, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, customerrors.IO(err, "failed to read block")
	}
	return buf, nil
}

func Write(f File, off int64, data []byte) error {
	if _, err := f.WriteAt(data, off); err != nil {
		return customerrors.IO(err, "failed to write block")
	}
	return nil
}

// Append grows the file by n zero bytes and returns the offset of the new
// block.
func Append(f File, n int64) (int64, error) {
	size, err := Size(f)
	if err != nil {
		return 0, err
	}
	if err := writeZeros(f, size, n); err != nil {
		return 0, errors.Wrap(err, "failed to append block")
	}
	return size, nil
}

// Insert grows the file by n zero bytes at off, moving everything from off to
// the end of the file forward by n.
func Insert(f File, off, n int64) error {
	size, err := Size(f)
	if err != nil {
		return err
	}
	if off > size {
		return errors.Errorf("insert offset %d beyond file size %d", off, size)
	}

	// copy tail backwards so that no byte is overwritten before it is moved
	buf := make([]byte, copyBufSize)
	for end := size; end > off; {
		start := end - copyBufSize
		if start < off {
			start = off
		}
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil {
			return customerrors.IO(err, "failed to read tail")
		}
		if _, err := f.WriteAt(chunk, start+n); err != nil {
			return customerrors.IO(err, "failed to move tail")
		}
		end = start
	}

	return errors.Wrap(writeZeros(f, off, n), "failed to clear inserted block")
}

func writeZeros(f File, off, n int64) error {
	zeros := make([]byte, min(n, copyBufSize))
	for written := int64(0); written < n; {
		chunk := zeros[:min(n-written, int64(len(zeros)))]
		if _, err := f.WriteAt(chunk, off+written); err != nil {
			return customerrors.IO(err, "failed to write zeros")
		}
		written += int64(len(chunk))
	}
	return nil
}
