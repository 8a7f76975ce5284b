// Package cache provides named cache partitions for the offline gateway.
//
// A Store holds partitions; a Partition maps normalized request URLs to
// captured response snapshots (Entry). Three backends are available:
//
// - MemoryStore: process memory, used in tests and single-process setups
// - RedisStore: one Redis hash per partition plus a sorted-set index
// - LevelStore: LevelDB on local disk
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//
//	static, err := store.Open(ctx, "static-v1.0.0")
//	if err != nil {
//		return err
//	}
//
//	key, err := cache.KeyFromString("/style.css", origin)
//	if err != nil {
//		return err
//	}
//
//	entry, err := static.Match(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from network
//	}
//
// # Capturing Responses
//
//	// Convert HTTP response to cache entry (body is restored for the caller)
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	if err := static.Put(ctx, key, entry); err != nil {
//		return err
//	}
//
//	// Serve the stored bytes later
//	resp = cache.EntryToResponse(entry, req)
//
// # Consistency
//
// Every single operation is atomic from a reader's point of view: a reader
// sees either the previous entry or the complete new one. Entries handed out
// by Match are copies; mutating them does not change what is stored.
//
// # Metrics
//
//   - gateway_cache_hits_total{backend} - Partition hits
//   - gateway_cache_misses_total{backend} - Partition misses
//   - gateway_cache_written_bytes_total{backend} - Bytes written
//   - gateway_partitions_deleted_total{backend} - Deleted partitions
//   - gateway_cache_errors_total{backend,operation} - Store errors
package cache
