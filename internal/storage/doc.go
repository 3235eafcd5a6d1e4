// Package storage provides the persistence layer used by the tracker.
//
// It covers:
//   - The tenant map (tracked wallets + counters), saved after each mutation
//   - Dedup state (already-notified activity keys), so a restart does not
//     replay old activity as novel
//   - Audit log appends (user commands, tenant removals)
package storage
