package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps partitions in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	order      []string
	partitions map[string]*memoryPartition
}

type memoryPartition struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Entry
	deleted bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]*memoryPartition),
	}
}

// Open returns the named partition, creating it when missing.
func (s *MemoryStore) Open(_ context.Context, name string) (Partition, error) {
	if err := validatePartitionName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[name]; ok {
		return p, nil
	}
	p := &memoryPartition{name: name, entries: make(map[string]*Entry)}
	s.partitions[name] = p
	s.order = append(s.order, name)
	return p, nil
}

// Has reports whether the named partition exists.
func (s *MemoryStore) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.partitions[name]
	return ok, nil
}

// Names lists partitions in creation order.
func (s *MemoryStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// Delete removes the named partition.
func (s *MemoryStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[name]
	if !ok {
		return false, nil
	}
	p.mu.Lock()
	p.deleted = true
	p.entries = nil
	p.mu.Unlock()

	delete(s.partitions, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	PartitionsDeleted.WithLabelValues(BackendMemory).Inc()
	return true, nil
}

// Match returns the first entry for key across all partitions.
func (s *MemoryStore) Match(ctx context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	parts := make([]*memoryPartition, 0, len(s.order))
	for _, name := range s.order {
		parts = append(parts, s.partitions[name])
	}
	s.mu.RUnlock()

	for _, p := range parts {
		entry, err := p.Match(ctx, key)
		if err == nil {
			return entry, nil
		}
	}
	return nil, ErrCacheMiss
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (p *memoryPartition) Name() string {
	return p.name
}

func (p *memoryPartition) Match(_ context.Context, key Key) (*Entry, error) {
	p.mu.RLock()
	entry, ok := p.entries[key.String()]
	p.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues(BackendMemory).Inc()
	return entry.Clone(), nil
}

func (p *memoryPartition) Put(_ context.Context, key Key, entry *Entry) error {
	if err := validatePut(key, entry); err != nil {
		return err
	}

	stored := entry.Clone()
	p.mu.Lock()
	if p.deleted {
		p.mu.Unlock()
		return ErrPartitionDeleted
	}
	p.entries[key.String()] = stored
	p.mu.Unlock()

	CacheWrittenBytes.WithLabelValues(BackendMemory).Add(float64(stored.Size()))
	return nil
}

func (p *memoryPartition) Delete(_ context.Context, key Key) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key.String()
	if _, ok := p.entries[k]; !ok {
		return false, nil
	}
	delete(p.entries, k)
	return true, nil
}

func (p *memoryPartition) Keys(_ context.Context) ([]string, error) {
	p.mu.RLock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}
