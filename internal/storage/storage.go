package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
)

// Package storage provides the durable index of fetched recipe identifiers.

// Backend persists index entries. Load returns entries in insertion order;
// Append must be durable when it returns.
type Backend interface {
	Load() ([]domain.IndexEntry, error)
	Append(entry domain.IndexEntry) error
	Close() error
}

// Supported backend types.
const (
	TypeFile   = "file"
	TypeBBolt  = "bbolt"
	TypeSQLite = "sqlite"
	TypeMemory = "memory"
)

// Index is the in-memory view of a Backend: fully loaded at open, flushed on
// every Add. An identifier is stored at most once.
type Index struct {
	mu      sync.RWMutex
	backend Backend
	entries map[domain.RecipeID]time.Time
	order   []domain.RecipeID
	now     func() time.Time
}

// Open creates the configured backend at path and loads it.
func Open(typ, path string) (*Index, error) {
	backend, err := NewBackend(typ, path)
	if err != nil {
		return nil, err
	}
	idx, err := Load(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return idx, nil
}

// NewBackend creates the backend for typ.
func NewBackend(typ, path string) (Backend, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case TypeMemory, "none":
		return &memoryBackend{}, nil
	case "", TypeFile, TypeBBolt, TypeSQLite:
	default:
		return nil, fmt.Errorf("%w: unsupported index type %q", domain.ErrArgument, typ)
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: %s index requires a path", domain.ErrArgument, typ)
	}

	switch typ {
	case TypeBBolt:
		return openBolt(path)
	case TypeSQLite:
		return openSQLite(path)
	default:
		return openFile(path)
	}
}

// Load reads every entry from backend into a new Index.
func Load(backend Backend) (*Index, error) {
	entries, err := backend.Load()
	if err != nil {
		return nil, err
	}
	idx := &Index{
		backend: backend,
		entries: make(map[domain.RecipeID]time.Time, len(entries)),
		order:   make([]domain.RecipeID, 0, len(entries)),
		now:     time.Now,
	}
	for _, e := range entries {
		if _, dup := idx.entries[e.ID]; dup {
			continue
		}
		idx.entries[e.ID] = e.FetchedAt
		idx.order = append(idx.order, e.ID)
	}
	return idx, nil
}

// Contains reports whether id was fetched before.
func (i *Index) Contains(id domain.RecipeID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.entries[id]
	return ok
}

// Add records id. Adding a known id is a no-op. The entry is durable once Add
// returns nil; on error nothing is recorded in memory either.
func (i *Index) Add(id domain.RecipeID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.entries[id]; ok {
		return nil
	}
	entry := domain.IndexEntry{ID: id, FetchedAt: i.now().UTC()}
	if err := i.backend.Append(entry); err != nil {
		return fmt.Errorf("%w: index append %s: %v", domain.ErrFilesystem, id, err)
	}
	i.entries[id] = entry.FetchedAt
	i.order = append(i.order, id)
	return nil
}

// FetchedAt returns when id was recorded.
func (i *Index) FetchedAt(id domain.RecipeID) (time.Time, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	t, ok := i.entries[id]
	return t, ok
}

// AllIDs returns all identifiers in insertion order.
func (i *Index) AllIDs() []domain.RecipeID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]domain.RecipeID, len(i.order))
	copy(out, i.order)
	return out
}

// Len returns the number of indexed identifiers.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.order)
}

// Close releases the backend.
func (i *Index) Close() error {
	if i == nil || i.backend == nil {
		return nil
	}
	return i.backend.Close()
}

type memoryBackend struct {
	entries []domain.IndexEntry
}

func (m *memoryBackend) Load() ([]domain.IndexEntry, error) {
	return append([]domain.IndexEntry(nil), m.entries...), nil
}

func (m *memoryBackend) Append(e domain.IndexEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryBackend) Close() error { return nil }
