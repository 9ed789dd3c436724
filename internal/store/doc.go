// Package store provides SQLite-backed durable storage for generation runs.
//
// The store is an append-only log with:
//   - Runs: one row per generation, holding the compressed CBOR plan
//   - Routines: one row per generated routine, keyed by target and name,
//     carrying a content digest of the routine description
//   - Diagnostics: the run's diagnostics in sink order
//
// # Critical Patterns
//
// Logical ordering
//   - Runs are ordered by seq INTEGER (a logical counter), NEVER timestamps
//   - Run IDs are UUIDv7 and only identify; they do not order
//
// Deterministic query results
//   - Every multi-row query carries an ORDER BY ending in a binary collation
//   - Identical plans produce identical routine digests, so two runs can be
//     compared without decoding blobs
//
// Idempotent writes
//   - Writing a run whose ID already exists is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Digests are BLAKE3 with domain separation over Core Deterministic CBOR.
package store
