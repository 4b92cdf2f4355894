// Package header keeps the per-table bookkeeping of the storage layer: where
// each table's root node lives and where its region starts in every chunk.
package header

import (
	"sort"
	"sync"
)

// Location addresses a node relative to its table's region in a chunk.
type Location struct {
	Chunk    uint32 `json:"chunk"`
	Position uint64 `json:"position"`
}

// Region is the start offset of a table's slots inside a chunk file.
type Region struct {
	Table  int    `json:"table"`
	Chunk  uint32 `json:"chunk"`
	Offset int64  `json:"offset"`
}

type Registry interface {
	Root(table int) (Location, bool)
	SetRoot(table int, loc Location) error

	Region(table int, chunk uint32) (int64, bool)
	SetRegions(regions ...Region) error
	// Regions lists the regions of a chunk ordered by offset.
	Regions(chunk uint32) []Region
	// Chunks lists the chunks a table has a region in, ascending.
	Chunks(table int) []uint32

	Close() error
}

type state struct {
	Roots   map[int]Location         `json:"roots"`
	Regions map[uint32]map[int]int64 `json:"regions"`
}

func newState() state {
	return state{
		Roots:   map[int]Location{},
		Regions: map[uint32]map[int]int64{},
	}
}

// Memory is a Registry kept in memory only.
type Memory struct {
	mu sync.RWMutex
	s  state
}

func NewMemory() *Memory {
	return &Memory{s: newState()}
}

func (m *Memory) Root(table int) (Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.s.Roots[table]
	return loc, ok
}

func (m *Memory) SetRoot(table int, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Roots[table] = loc
	return nil
}

func (m *Memory) Region(table int, chunk uint32) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	off, ok := m.s.Regions[chunk][table]
	return off, ok
}

func (s state) setRegions(regions []Region) {
	for _, r := range regions {
		tables, ok := s.Regions[r.Chunk]
		if !ok {
			tables = map[int]int64{}
			s.Regions[r.Chunk] = tables
		}
		tables[r.Table] = r.Offset
	}
}

func (m *Memory) SetRegions(regions ...Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.setRegions(regions)
	return nil
}

func (m *Memory) Regions(chunk uint32) []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	regions := make([]Region, 0, len(m.s.Regions[chunk]))
	for table, off := range m.s.Regions[chunk] {
		regions = append(regions, Region{Table: table, Chunk: chunk, Offset: off})
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Offset < regions[j].Offset
	})
	return regions
}

func (m *Memory) Chunks(table int) []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chunks := []uint32{}
	for chunk, tables := range m.s.Regions {
		if _, ok := tables[table]; ok {
			chunks = append(chunks, chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i] < chunks[j] })
	return chunks
}

func (m *Memory) Close() error {
	return nil
}
