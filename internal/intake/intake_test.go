package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"fibermesh/internal/model"
)

func newTestHandler() (*Handler, *MemoryStore) {
	store := NewMemoryStore()
	broker := NewBroker()
	return NewHandler(store, broker, nil), store
}

func postJSON(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// TestRejectionDedup exercises spec.md §8 "Rejection dedup": posting the
// same rejection twice yields exactly one stored row, with
// alreadyIndexed:true on the second call.
func TestRejectionDedup(t *testing.T) {
	h, store := newTestHandler()
	r := chi.NewRouter()
	h.Routes(r)

	event := map[string]any{
		"event":     "transaction.rejected",
		"ordinal":   10,
		"timestamp": time.Now().UnixMilli(),
		"rejection": map[string]any{
			"updateType": "TransitionStateMachine",
			"fiberId":    "fiber-1",
			"updateHash": "hash-1",
			"errors":     []map[string]any{{"code": "NotSignedByOwner", "message": "bad signer"}},
			"signers":    []string{"DAGabc"},
		},
	}

	rec1 := postJSON(t, r, "/webhook/rejection", event)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec1.Code, rec1.Body.String())
	}
	var resp1 map[string]any
	_ = json.Unmarshal(rec1.Body.Bytes(), &resp1)
	if resp1["alreadyIndexed"] != false {
		t.Fatalf("expected alreadyIndexed=false on first post, got %v", resp1)
	}

	rec2 := postJSON(t, r, "/webhook/rejection", event)
	var resp2 map[string]any
	_ = json.Unmarshal(rec2.Body.Bytes(), &resp2)
	if resp2["alreadyIndexed"] != true {
		t.Fatalf("expected alreadyIndexed=true on repost, got %v", resp2)
	}

	_, total, err := store.ListRejections(context.Background(), RejectionFilter{FiberID: "fiber-1"})
	if err != nil {
		t.Fatalf("ListRejections: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 stored row, got %d", total)
	}

	rows, _, err := store.ListRejections(context.Background(), RejectionFilter{ErrorCode: "NotSignedByOwner"})
	if err != nil {
		t.Fatalf("ListRejections by errorCode: %v", err)
	}
	if len(rows) != 1 || rows[0].UpdateHash != "hash-1" {
		t.Fatalf("expected errorCode filter to find hash-1, got %+v", rows)
	}

	fetched, err := store.GetRejectionByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("GetRejectionByHash: %v", err)
	}
	if fetched.FiberID != "fiber-1" {
		t.Fatalf("unexpected fetched row: %+v", fetched)
	}
}

// TestConfirmationSweep exercises spec.md §8 "Confirmation sweep": after
// confirming ordinal O, every PENDING snapshot with ordinal < O becomes
// ORPHANED, and no CONFIRMED row is touched.
func TestConfirmationSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.snapshots[5] = &model.Snapshot{Ordinal: 5, Status: model.SnapshotPending}
	store.snapshots[6] = &model.Snapshot{Ordinal: 6, Status: model.SnapshotPending}
	store.snapshots[7] = &model.Snapshot{Ordinal: 7, Status: model.SnapshotConfirmed}

	if err := store.ConfirmSnapshot(ctx, 8, "hash-8", nil, time.Now()); err != nil {
		t.Fatalf("ConfirmSnapshot: %v", err)
	}

	if store.snapshots[5].Status != model.SnapshotOrphaned {
		t.Fatalf("expected ordinal 5 orphaned, got %s", store.snapshots[5].Status)
	}
	if store.snapshots[6].Status != model.SnapshotOrphaned {
		t.Fatalf("expected ordinal 6 orphaned, got %s", store.snapshots[6].Status)
	}
	if store.snapshots[7].Status != model.SnapshotConfirmed {
		t.Fatalf("expected ordinal 7 to remain confirmed, got %s", store.snapshots[7].Status)
	}
	if store.snapshots[8].Status != model.SnapshotConfirmed {
		t.Fatalf("expected ordinal 8 confirmed, got %s", store.snapshots[8].Status)
	}
}

// TestBrokerPublishesOnlyOnFirstIndex ensures a duplicate rejection isn't
// republished to subscribers.
func TestBrokerPublishesOnlyOnFirstIndex(t *testing.T) {
	h, _ := newTestHandler()
	r := chi.NewRouter()
	h.Routes(r)

	ch, unsubscribe := h.Broker.Subscribe(4)
	defer unsubscribe()

	event := map[string]any{
		"rejection": map[string]any{
			"updateType": "CreateStateMachine",
			"fiberId":    "fiber-2",
			"updateHash": "hash-2",
		},
	}
	postJSON(t, r, "/webhook/rejection", event)
	postJSON(t, r, "/webhook/rejection", event)

	select {
	case tx := <-ch:
		if tx.UpdateHash != "hash-2" {
			t.Fatalf("unexpected published tx: %+v", tx)
		}
	default:
		t.Fatalf("expected exactly one published event")
	}
	select {
	case tx := <-ch:
		t.Fatalf("expected no second published event, got %+v", tx)
	default:
	}
}
