// Package store provides the SQLite-backed transform cache and build log.
//
// Two tables:
//   - transforms: loader pipeline output keyed by a content hash of the
//     resource, its source, the build mode and the loader chain
//   - builds: one record per completed run
//
// # Ordering
//
// Rows carry a seq INTEGER assigned on write. Pruning and listing order by
// seq, never by wall-clock time, so results are identical across machines.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Keys are computed by TransformKey using canonical JSON and SHA-256 with
// domain separation.
package store
