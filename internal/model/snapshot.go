package model

import "time"

// SnapshotStatus is the lifecycle of a single snapshot-layer ordinal.
type SnapshotStatus string

const (
	SnapshotPending   SnapshotStatus = "PENDING"
	SnapshotConfirmed SnapshotStatus = "CONFIRMED"
	SnapshotOrphaned  SnapshotStatus = "ORPHANED"
)

// Snapshot is a globally ordered unit at the snapshot layer. At most one
// snapshot may be CONFIRMED for a given ordinal; older PENDING snapshots
// preceding a newer CONFIRMED one become ORPHANED (spec.md §3.1).
type Snapshot struct {
	Ordinal     uint64         `json:"ordinal"`
	Hash        string         `json:"hash"`
	Status      SnapshotStatus `json:"status"`
	GL0Ordinal  *uint64        `json:"gl0Ordinal,omitempty"`
	ConfirmedAt *time.Time     `json:"confirmedAt,omitempty"`
}
