// Package store provides persistence for un-flushed analytics counts.
//
// A store holds a map of feature name to evaluation count. The client adds
// every tracked event to it and takes the whole map when it flushes,
// putting the counts back if the flush fails, so counts recorded before a
// restart are reported by the next process.
//
// Three implementations are available:
//
//   - MemoryStore keeps counts for the lifetime of the process.
//   - FileStore keeps counts in a JSON document on local disk, written by
//     a single process.
//   - RedisStore keeps counts in a Redis hash shared by every process that
//     uses the same environment key.
//
// Open selects one of them from a DSN such as "memory",
// "file:/var/lib/app/flagsmith.json" or "redis://localhost:6379/0".
package store
