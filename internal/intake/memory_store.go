package intake

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fibermesh/internal/model"
)

// TransitionRecord is a recent successful transition, recorded by the
// bridge engine via reconciler.Reconciler.OnRecord (spec.md §4.6
// "GET /fibers/:fiberId/transitions").
type TransitionRecord struct {
	FiberID   string
	EventName string
	Hash      string
	At        time.Time
}

// MemoryStore is an in-process Store, suitable for tests and for a
// single-process deployment that doesn't need durability across restarts.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	rejections  []model.RejectedTransaction // append-only, id ascending
	byHash      map[string]int              // updateHash -> index into rejections
	snapshots   map[uint64]*model.Snapshot  // ordinal -> snapshot
	transitions map[string][]TransitionRecord
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash:      make(map[string]int),
		snapshots:   make(map[uint64]*model.Snapshot),
		transitions: make(map[string][]TransitionRecord),
	}
}

func (s *MemoryStore) UpsertRejection(ctx context.Context, tx model.RejectedTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[tx.UpdateHash]; exists {
		return true, nil
	}
	s.nextID++
	tx.ID = s.nextID
	s.byHash[tx.UpdateHash] = len(s.rejections)
	s.rejections = append(s.rejections, tx)
	return false, nil
}

func (s *MemoryStore) ConfirmSnapshot(ctx context.Context, ordinal uint64, hash string, gl0Ordinal *uint64, confirmedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[ordinal]
	if !ok {
		snap = &model.Snapshot{Ordinal: ordinal}
		s.snapshots[ordinal] = snap
	}
	snap.Hash = hash
	snap.Status = model.SnapshotConfirmed
	snap.GL0Ordinal = gl0Ordinal
	t := confirmedAt
	snap.ConfirmedAt = &t

	for o, other := range s.snapshots {
		if other.Status == model.SnapshotPending && o < ordinal {
			other.Status = model.SnapshotOrphaned
		}
	}
	return nil
}

func (s *MemoryStore) GetRejectionByHash(ctx context.Context, updateHash string) (model.RejectedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byHash[updateHash]
	if !ok {
		return model.RejectedTransaction{}, model.ErrNotFound
	}
	return s.rejections[idx], nil
}

func (s *MemoryStore) ListRejections(ctx context.Context, f RejectionFilter) ([]model.RejectedTransaction, int, error) {
	f = f.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.RejectedTransaction, 0, len(s.rejections))
	for _, r := range s.rejections {
		if !matchesFilter(r, f) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Ordinal != matched[j].Ordinal {
			return matched[i].Ordinal > matched[j].Ordinal
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matchesFilter(r model.RejectedTransaction, f RejectionFilter) bool {
	if f.FiberID != "" && r.FiberID != f.FiberID {
		return false
	}
	if f.UpdateType != "" && string(r.UpdateType) != f.UpdateType {
		return false
	}
	if f.Signer != "" && !containsString(r.Signers, f.Signer) {
		return false
	}
	if f.ErrorCode != "" && !anyErrorCode(r.Errors, f.ErrorCode) {
		return false
	}
	if f.FromOrdinal != nil && r.Ordinal < *f.FromOrdinal {
		return false
	}
	if f.ToOrdinal != nil && r.Ordinal > *f.ToOrdinal {
		return false
	}
	return true
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func anyErrorCode(errs []model.RejectionError, want string) bool {
	for _, e := range errs {
		if strings.Contains(e.Code, want) {
			return true
		}
	}
	return false
}

// RecordTransition appends a TransitionRecord for fiberID, trimming to the
// most recent 200 entries.
func (s *MemoryStore) RecordTransition(fiberID, eventName, hash string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.transitions[fiberID], TransitionRecord{FiberID: fiberID, EventName: eventName, Hash: hash, At: at})
	if len(list) > 200 {
		list = list[len(list)-200:]
	}
	s.transitions[fiberID] = list
}

// ListTransitions returns the most recent transitions for fiberID, newest
// first.
func (s *MemoryStore) ListTransitions(fiberID string, limit int) []TransitionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.transitions[fiberID]
	out := make([]TransitionRecord, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
