package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"fibermesh/internal/intake"
	"fibermesh/internal/model"
)

func seedStore(t *testing.T, n int) *intake.MemoryStore {
	t.Helper()
	store := intake.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := store.UpsertRejection(ctx, model.RejectedTransaction{
			Ordinal:    uint64(i),
			UpdateType: model.UpdateTransitionStateMachine,
			FiberID:    "fiber-x",
			UpdateHash: "hash-" + string(rune('a'+i)),
			Errors:     []model.RejectionError{{Code: "SequenceConflict"}},
			Signers:    []string{"DAGabc"},
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

// TestListRejectionsOrderingAndPagination exercises spec.md §4.6's
// ordering (ordinal desc, id desc) and hasMore rule
// (offset + len(rejections) < total).
func TestListRejectionsOrderingAndPagination(t *testing.T) {
	store := seedStore(t, 5)
	h := NewHandler(store, nil, nil)
	r := chi.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/rejections?limit=2&offset=0", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page1 struct {
		Rejections []model.RejectedTransaction `json:"rejections"`
		Total      int                         `json:"total"`
		HasMore    bool                        `json:"hasMore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page1); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page1.Total != 5 {
		t.Fatalf("expected total 5, got %d", page1.Total)
	}
	if !page1.HasMore {
		t.Fatalf("expected hasMore true on page 1")
	}
	if len(page1.Rejections) != 2 || page1.Rejections[0].Ordinal != 4 || page1.Rejections[1].Ordinal != 3 {
		t.Fatalf("expected ordinals [4,3] descending, got %+v", page1.Rejections)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/rejections?limit=2&offset=4", nil)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	var page2 struct {
		Rejections []model.RejectedTransaction `json:"rejections"`
		Total      int                         `json:"total"`
		HasMore    bool                        `json:"hasMore"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &page2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page2.HasMore {
		t.Fatalf("expected hasMore false on last page")
	}
	if len(page2.Rejections) != 1 || page2.Rejections[0].Ordinal != 0 {
		t.Fatalf("expected final page to contain ordinal 0, got %+v", page2.Rejections)
	}
}

// TestGetRejectionByHashNotFound exercises the 404 path.
func TestGetRejectionByHashNotFound(t *testing.T) {
	store := intake.NewMemoryStore()
	h := NewHandler(store, nil, nil)
	r := chi.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/rejections/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
