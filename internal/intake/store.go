// Package intake is the rejection/confirmation webhook intake surface
// (C5): HTTP endpoints accepting events from the metagraph, deduplicating
// by updateHash, persisting, and publishing to a pub/sub channel the
// orchestrator can subscribe to (spec.md §4.5).
package intake

import (
	"context"
	"time"

	"fibermesh/internal/model"
)

// Store persists rejections and tracks snapshot confirmation state. It is
// the correctness backstop the spec requires: a unique constraint on
// updateHash, whether enforced in-memory or by the database (spec.md §4.5
// "Concurrency").
type Store interface {
	// UpsertRejection inserts tx unless updateHash already exists, in which
	// case it is a no-op. Returns alreadyIndexed=true on the duplicate path.
	UpsertRejection(ctx context.Context, tx model.RejectedTransaction) (alreadyIndexed bool, err error)

	// ConfirmSnapshot transitions the snapshot at ordinal from PENDING to
	// CONFIRMED and sweeps older PENDING snapshots to ORPHANED in one
	// operation (spec.md §4.5, §8 "Confirmation sweep").
	ConfirmSnapshot(ctx context.Context, ordinal uint64, hash string, gl0Ordinal *uint64, confirmedAt time.Time) error

	// GetRejectionByHash returns the full record including rawPayload, or
	// model.ErrNotFound.
	GetRejectionByHash(ctx context.Context, updateHash string) (model.RejectedTransaction, error)

	// ListRejections returns a filtered, paged set of rejections plus the
	// total matching count, ordered by ordinal desc, id desc (spec.md §4.6).
	ListRejections(ctx context.Context, f RejectionFilter) (rows []model.RejectedTransaction, total int, err error)
}

// RejectionFilter is the filter set GET /rejections supports (spec.md
// §4.6).
type RejectionFilter struct {
	FiberID     string
	UpdateType  string
	Signer      string
	ErrorCode   string
	FromOrdinal *uint64
	ToOrdinal   *uint64
	Limit       int
	Offset      int
}

func (f RejectionFilter) normalized() RejectionFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
