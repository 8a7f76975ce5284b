package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	p:<partition>            -> creation sequence (uint64, big endian)
//	e:<partition>\x00<key>   -> JSON entry
const (
	levelPartitionPrefix = "p:"
	levelEntryPrefix     = "e:"
)

// LevelStore keeps partitions in a LevelDB database on local disk.
type LevelStore struct {
	db *leveldb.DB

	// mu serializes partition creation, deletion and entry writes
	mu  sync.Mutex
	seq uint64
}

type levelPartition struct {
	store *LevelStore
	name  string

	// seq identifies this incarnation of the partition record
	seq uint64
}

// OpenLevelStore opens (or creates) a LevelDB store at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}

	s := &LevelStore{db: db}
	if err := s.loadSequence(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LevelStore) loadSequence() error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelPartitionPrefix)), nil)
	defer it.Release()

	for it.Next() {
		if v := decodeSeq(it.Value()); v > s.seq {
			s.seq = v
		}
	}
	return it.Error()
}

func encodeSeq(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeSeq(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func partitionRecord(name string) []byte {
	return []byte(levelPartitionPrefix + name)
}

func entryPrefix(name string) []byte {
	return []byte(levelEntryPrefix + name + "\x00")
}

func entryRecord(name, key string) []byte {
	return append(entryPrefix(name), key...)
}

// Open returns the named partition, creating it when missing.
func (s *LevelStore) Open(_ context.Context, name string) (Partition, error) {
	if err := validatePartitionName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.partitionSeq(name)
	if err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "open").Inc()
		return nil, err
	}
	if seq == 0 {
		s.seq++
		seq = s.seq
		if err := s.db.Put(partitionRecord(name), encodeSeq(seq), nil); err != nil {
			CacheErrors.WithLabelValues(BackendLevelDB, "open").Inc()
			return nil, fmt.Errorf("leveldb put: %w", err)
		}
	}
	return &levelPartition{store: s, name: name, seq: seq}, nil
}

// partitionSeq returns the creation sequence of the named partition, or 0
// when it does not exist.
func (s *LevelStore) partitionSeq(name string) (uint64, error) {
	data, err := s.db.Get(partitionRecord(name), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("leveldb get: %w", err)
	}
	return decodeSeq(data), nil
}

// Has reports whether the named partition exists.
func (s *LevelStore) Has(_ context.Context, name string) (bool, error) {
	ok, err := s.db.Has(partitionRecord(name), nil)
	if err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "names").Inc()
		return false, fmt.Errorf("leveldb has: %w", err)
	}
	return ok, nil
}

// Names lists partitions in creation order.
func (s *LevelStore) Names(_ context.Context) ([]string, error) {
	type named struct {
		name string
		seq  uint64
	}

	it := s.db.NewIterator(util.BytesPrefix([]byte(levelPartitionPrefix)), nil)
	defer it.Release()

	var all []named
	for it.Next() {
		name := string(bytes.TrimPrefix(it.Key(), []byte(levelPartitionPrefix)))
		all = append(all, named{name: name, seq: decodeSeq(it.Value())})
	}
	if err := it.Error(); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "names").Inc()
		return nil, fmt.Errorf("leveldb iterate: %w", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	names := make([]string, len(all))
	for i, n := range all {
		names[i] = n.name
	}
	return names, nil
}

// Delete removes the partition record and every entry in a single batch.
func (s *LevelStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.db.Has(partitionRecord(name), nil)
	if err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "delete").Inc()
		return false, fmt.Errorf("leveldb has: %w", err)
	}
	if !ok {
		return false, nil
	}

	batch := new(leveldb.Batch)
	batch.Delete(partitionRecord(name))

	it := s.db.NewIterator(util.BytesPrefix(entryPrefix(name)), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "delete").Inc()
		return false, fmt.Errorf("leveldb iterate: %w", err)
	}

	if err := s.db.Write(batch, nil); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "delete").Inc()
		return false, fmt.Errorf("leveldb write: %w", err)
	}
	PartitionsDeleted.WithLabelValues(BackendLevelDB).Inc()
	return true, nil
}

// Match returns the first entry for key across all partitions.
func (s *LevelStore) Match(ctx context.Context, key Key) (*Entry, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		p := &levelPartition{store: s, name: name}
		entry, err := p.Match(ctx, key)
		if err == nil {
			return entry, nil
		}
		if err != ErrCacheMiss {
			return nil, err
		}
	}
	return nil, ErrCacheMiss
}

// Close closes the underlying database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

func (p *levelPartition) Name() string {
	return p.name
}

func (p *levelPartition) Match(_ context.Context, key Key) (*Entry, error) {
	data, err := p.store.db.Get(entryRecord(p.name, key.String()), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			CacheMisses.WithLabelValues(BackendLevelDB).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(BackendLevelDB, "match").Inc()
		return nil, fmt.Errorf("leveldb get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(BackendLevelDB).Inc()
	return &entry, nil
}

func (p *levelPartition) Put(_ context.Context, key Key, entry *Entry) error {
	if err := validatePut(key, entry); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	seq, err := p.store.partitionSeq(p.name)
	if err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "put").Inc()
		return err
	}
	if seq != p.seq {
		return ErrPartitionDeleted
	}

	if err := p.store.db.Put(entryRecord(p.name, key.String()), data, nil); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "put").Inc()
		return fmt.Errorf("leveldb put: %w", err)
	}

	CacheWrittenBytes.WithLabelValues(BackendLevelDB).Add(float64(len(data)))
	return nil
}

func (p *levelPartition) Delete(_ context.Context, key Key) (bool, error) {
	rec := entryRecord(p.name, key.String())
	ok, err := p.store.db.Has(rec, nil)
	if err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "delete").Inc()
		return false, fmt.Errorf("leveldb has: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := p.store.db.Delete(rec, nil); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "delete").Inc()
		return false, fmt.Errorf("leveldb delete: %w", err)
	}
	return true, nil
}

func (p *levelPartition) Keys(_ context.Context) ([]string, error) {
	prefix := entryPrefix(p.name)
	it := p.store.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(bytes.TrimPrefix(it.Key(), prefix)))
	}
	if err := it.Error(); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "keys").Inc()
		return nil, fmt.Errorf("leveldb iterate: %w", err)
	}
	// LevelDB iterates in key order already
	return keys, nil
}
