package header

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go-bpindex/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// File is a Registry persisted as JSON. Every mutation rewrites the whole
// document through a temporary file and an atomic rename.
type File struct {
	*Memory
	path string
}

// OpenFile loads the registry stored at path, starting empty if the file does
// not exist yet.
func OpenFile(path string) (*File, error) {
	f := &File{Memory: NewMemory(), path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, customerrors.IO(err, "failed to read header")
	}

	s := newState()
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to parse header %s", path)
	}
	f.Memory.s = s
	return f, nil
}

func (f *File) SetRoot(table int, loc Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.Roots[table] = loc
	return f.persist()
}

func (f *File) SetRegions(regions ...Region) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s.setRegions(regions)
	return f.persist()
}

// persist must be called with f.mu held.
func (f *File) persist() error {
	data, err := json.Marshal(f.s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	tmp := filepath.Join(filepath.Dir(f.path), "."+filepath.Base(f.path)+"."+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return customerrors.IO(err, "failed to write header")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return customerrors.IO(err, "failed to replace header")
	}
	return nil
}
