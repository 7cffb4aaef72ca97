// Package store provides SQLite-backed storage for simulation run history
// and golden signatures.
//
// Every recorded run carries a fingerprint identifying what was simulated
// (design, port widths, policy, cycle count and stimulus digest). A golden
// signature is blessed per fingerprint; later runs with the same fingerprint
// are expected to reproduce it.
//
// # Ordering
//
// Runs are ordered by their insertion seq, never by wall time.
//
// # Signatures
//
// Signatures are unsigned 64-bit values stored in signed INTEGER columns by
// bit reinterpretation; values above math.MaxInt64 round-trip unchanged.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
