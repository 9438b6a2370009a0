// Package repositories implements the local persistence layer: JSON snapshots
// for pipeline state and a SQLite mirror for queries.
//
// Key implementations:
//   - [SnapshotStore] : The authoritative JSON snapshots (run history,
//     engineered features, latest playlist), each replaced wholesale on write
//   - [RunRepository] : SQLite mirror of the run history, upserted on sync,
//     used for fast listing without re-reading the snapshot
//   - [AudioFeatureRepository] : Per-track audio attribute cache consulted
//     before the streaming API so repeat generations skip refetching
//
// Snapshots are the source of truth; the database can be cleared and rebuilt
// from them at any time. Reads of a snapshot that was never written return
// [shared.ErrMissingSnapshot] so callers can direct the user to sync first.
package repositories
