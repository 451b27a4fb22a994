// Package state defines a small persistence contract for keyed snapshots and
// two implementations: MemoryStore here and a BadgerDB store in badgerstore.
//
// Responsibilities:
//   - Store[T] loads, saves and deletes a single snapshot for a single Ref.
//   - Mutate performs a read-modify-write with optional ETag checking and runs
//     the snapshot's Validate method, when it has one, before saving.
//   - Stores own Meta: they may assign SnapshotID, ETag and UpdatedAt on save.
//
// The session gate keeps the signed-in identity here so it survives restarts.
//
// Deterministic keys:
//
//	Ref.Identifier() yields "<domain>/<key>", e.g. "session/default".
package state
