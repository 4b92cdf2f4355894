package header

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, r Registry) {
	_, ok := r.Root(1)
	require.False(t, ok)

	require.NoError(t, r.SetRoot(1, Location{Chunk: 0, Position: 68}))
	loc, ok := r.Root(1)
	require.True(t, ok)
	require.Equal(t, Location{Chunk: 0, Position: 68}, loc)

	require.NoError(t, r.SetRegions(
		Region{Table: 2, Chunk: 0, Offset: 680},
		Region{Table: 1, Chunk: 0, Offset: 0},
		Region{Table: 1, Chunk: 3, Offset: 0},
	))

	off, ok := r.Region(2, 0)
	require.True(t, ok)
	require.EqualValues(t, 680, off)
	_, ok = r.Region(2, 3)
	require.False(t, ok)

	require.Equal(t, []Region{
		{Table: 1, Chunk: 0, Offset: 0},
		{Table: 2, Chunk: 0, Offset: 680},
	}, r.Regions(0))
	require.Empty(t, r.Regions(7))
	require.Equal(t, []uint32{0, 3}, r.Chunks(1))
	require.Equal(t, []uint32{0}, r.Chunks(2))
}

func TestMemory(t *testing.T) {
	testRegistry(t, NewMemory())
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "header.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	testRegistry(t, f)
	require.NoError(t, f.Close())

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	loc, ok := reopened.Root(1)
	require.True(t, ok)
	require.EqualValues(t, 68, loc.Position)
	require.Equal(t, []uint32{0, 3}, reopened.Chunks(1))

	// only the header itself is left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = OpenFile(path)
	require.Error(t, err)
}
