package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidPartitionName indicates a partition name that cannot be stored
	ErrInvalidPartitionName = errors.New("invalid partition name")

	// ErrPartitionDeleted is returned by Put on a handle whose partition
	// has been deleted from the store
	ErrPartitionDeleted = errors.New("partition deleted")
)

// Store is a set of named partitions. Single operations are atomic; there
// are no multi-key transactions.
type Store interface {
	// Open returns the named partition, creating it when missing.
	Open(ctx context.Context, name string) (Partition, error)

	// Has reports whether the named partition exists.
	Has(ctx context.Context, name string) (bool, error)

	// Names lists partitions in creation order.
	Names(ctx context.Context) ([]string, error)

	// Delete removes the named partition and all of its entries.
	// It reports whether the partition existed.
	Delete(ctx context.Context, name string) (bool, error)

	// Match looks key up in every partition, in creation order, and
	// returns the first hit.
	Match(ctx context.Context, key Key) (*Entry, error)

	// Close releases resources held by the store.
	Close() error
}

// Partition is a named key to entry mapping.
type Partition interface {
	Name() string

	// Match returns the entry stored under key, or ErrCacheMiss.
	Match(ctx context.Context, key Key) (*Entry, error)

	// Put stores entry under key, replacing any previous entry. Once the
	// partition is deleted from its store, Put fails with
	// ErrPartitionDeleted and writes nothing, even if a partition with the
	// same name has been opened again since.
	Put(ctx context.Context, key Key, entry *Entry) error

	// Delete removes the entry stored under key and reports whether it existed.
	Delete(ctx context.Context, key Key) (bool, error)

	// Keys lists the stored key strings in lexical order.
	Keys(ctx context.Context) ([]string, error)
}

func validatePartitionName(name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidPartitionName, name)
	}
	return nil
}

func validatePut(key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if key.String() == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	return nil
}
