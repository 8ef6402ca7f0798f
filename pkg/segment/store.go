package segment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

// ErrNotFound is returned when a segment is not in the store.
var ErrNotFound = errors.New("segment not found")

// Store holds classified segments, addressable both by (kind, ordinal) and by
// file index.
type Store interface {
	// Put stores a segment. Index, Ordinal and Kind must be set.
	Put(seg Segment) error
	// Get returns the segment with the given kind and ordinal.
	Get(kind Kind, ordinal int) (Segment, error)
	// At returns the segment at the given file index.
	At(index int) (Segment, error)
	// Heads returns all head segments in ordinal order.
	Heads() ([]Segment, error)
	// Len returns the number of stored segments.
	Len() int
}

type storeKey struct {
	kind    Kind
	ordinal int
}

// MemoryStore is an index-addressed arena of segments.
type MemoryStore struct {
	mu      sync.RWMutex
	byIndex map[int]Segment
	byKind  map[storeKey]int
	heads   []int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byIndex: make(map[int]Segment),
		byKind:  make(map[storeKey]int),
	}
}

// Put stores a copy of the segment.
func (s *MemoryStore) Put(seg Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIndex[seg.Index]; ok {
		return fmt.Errorf("segment %d already stored", seg.Index)
	}
	data := make([]byte, len(seg.Data))
	copy(data, seg.Data)
	seg.Data = data

	s.byIndex[seg.Index] = seg
	s.byKind[storeKey{seg.Kind, seg.Ordinal}] = seg.Index
	if seg.Kind == KindHead {
		s.heads = append(s.heads, seg.Index)
	}
	return nil
}

// Get returns the segment with the given kind and ordinal.
func (s *MemoryStore) Get(kind Kind, ordinal int) (Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byKind[storeKey{kind, ordinal}]
	if !ok {
		return Segment{}, fmt.Errorf("%s %d: %w", kind, ordinal, ErrNotFound)
	}
	return s.byIndex[idx], nil
}

// At returns the segment at the given file index.
func (s *MemoryStore) At(index int) (Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seg, ok := s.byIndex[index]
	if !ok {
		return Segment{}, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	return seg, nil
}

// Heads returns all head segments in ordinal order.
func (s *MemoryStore) Heads() ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	heads := make([]Segment, 0, len(s.heads))
	for _, idx := range s.heads {
		heads = append(heads, s.byIndex[idx])
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].Ordinal < heads[j].Ordinal })
	return heads, nil
}

// Len returns the number of stored segments.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byIndex)
}

// DirStore keeps one file per segment in a directory:
//
//	000_header.bin
//	001_head_000.bin
//	002_body_000.bin
//
// File names carry the file index and the ordinal within the kind, so an
// existing directory can be reopened with OpenDirStore.
type DirStore struct {
	dir string

	mu    sync.RWMutex
	paths map[int]string
	kinds map[int]Kind
	ords  map[int]int
	byKey map[storeKey]int
}

var segmentFilePattern = regexp.MustCompile(`^(\d+)_(header|head|body)(?:_(\d+))?\.bin$`)

// NewDirStore creates the directory and returns an empty store.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}
	return &DirStore{
		dir:   dir,
		paths: make(map[int]string),
		kinds: make(map[int]Kind),
		ords:  make(map[int]int),
		byKey: make(map[storeKey]int),
	}, nil
}

// OpenDirStore indexes the segment files already present in dir.
func OpenDirStore(dir string) (*DirStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read segment dir: %w", err)
	}

	s, err := NewDirStore(dir)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := segmentFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("segment file %s: %w", e.Name(), err)
		}
		kind := parseKind(m[2])
		ordinal := 0
		if m[3] != "" {
			if ordinal, err = strconv.Atoi(m[3]); err != nil {
				return nil, fmt.Errorf("segment file %s: %w", e.Name(), err)
			}
		}
		s.index(index, ordinal, kind, filepath.Join(dir, e.Name()))
	}
	return s, nil
}

func parseKind(s string) Kind {
	switch s {
	case "head":
		return KindHead
	case "body":
		return KindBody
	default:
		return KindHeader
	}
}

func segmentFileName(seg Segment) string {
	if seg.Kind == KindHeader {
		return fmt.Sprintf("%03d_header.bin", seg.Index)
	}
	return fmt.Sprintf("%03d_%s_%03d.bin", seg.Index, seg.Kind, seg.Ordinal)
}

func (s *DirStore) index(index, ordinal int, kind Kind, path string) {
	s.paths[index] = path
	s.kinds[index] = kind
	s.ords[index] = ordinal
	s.byKey[storeKey{kind, ordinal}] = index
}

// Put writes the segment to its own file.
func (s *DirStore) Put(seg Segment) error {
	path := filepath.Join(s.dir, segmentFileName(seg))
	if err := os.WriteFile(path, seg.Data, 0644); err != nil {
		return fmt.Errorf("write segment %d: %w", seg.Index, err)
	}

	s.mu.Lock()
	s.index(seg.Index, seg.Ordinal, seg.Kind, path)
	s.mu.Unlock()
	return nil
}

// Get returns the segment with the given kind and ordinal.
func (s *DirStore) Get(kind Kind, ordinal int) (Segment, error) {
	s.mu.RLock()
	idx, ok := s.byKey[storeKey{kind, ordinal}]
	s.mu.RUnlock()
	if !ok {
		return Segment{}, fmt.Errorf("%s %d: %w", kind, ordinal, ErrNotFound)
	}
	return s.At(idx)
}

// At reads the segment at the given file index.
func (s *DirStore) At(index int) (Segment, error) {
	s.mu.RLock()
	path, ok := s.paths[index]
	kind := s.kinds[index]
	ordinal := s.ords[index]
	s.mu.RUnlock()
	if !ok {
		return Segment{}, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Segment{}, fmt.Errorf("read segment %d: %w", index, err)
	}
	return Segment{Index: index, Ordinal: ordinal, Kind: kind, Data: data}, nil
}

// Heads reads all head segments in ordinal order.
func (s *DirStore) Heads() ([]Segment, error) {
	s.mu.RLock()
	var indexes []int
	for idx, kind := range s.kinds {
		if kind == KindHead {
			indexes = append(indexes, idx)
		}
	}
	s.mu.RUnlock()
	sort.Ints(indexes)

	heads := make([]Segment, 0, len(indexes))
	for _, idx := range indexes {
		seg, err := s.At(idx)
		if err != nil {
			return nil, err
		}
		heads = append(heads, seg)
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].Ordinal < heads[j].Ordinal })
	return heads, nil
}

// Len returns the number of stored segments.
func (s *DirStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}
