// Package indexer is the query surface (C6) over the rejection store and
// the data client's fiber lookups, exposed as filtered HTTP queries
// (spec.md §4.6).
package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fibermesh/internal/dataclient"
	"fibermesh/internal/intake"
	"fibermesh/internal/model"
)

// Handler serves the read-side query API over a rejection Store and the
// metagraph data client.
type Handler struct {
	Store intake.Store
	Data  *dataclient.Client
	// Transitions, if set, backs GET /fibers/:fiberId/transitions (spec.md
	// §4.6); nil means the endpoint always returns an empty list.
	Transitions TransitionLister
}

// TransitionLister is the narrow read interface onto intake's recent
// in-memory transition log.
type TransitionLister interface {
	ListTransitions(fiberID string, limit int) []intake.TransitionRecord
}

// NewHandler builds a query Handler.
func NewHandler(store intake.Store, data *dataclient.Client, transitions TransitionLister) *Handler {
	return &Handler{Store: store, Data: data, Transitions: transitions}
}

// Routes mounts C6's query endpoints onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/rejections", h.listRejections)
	r.Get("/rejections/{updateHash}", h.getRejection)
	r.Get("/fibers/{fiberId}/rejections", h.listFiberRejections)
	r.Get("/fibers/{fiberId}", h.getFiber)
	r.Get("/fibers/{fiberId}/transitions", h.listFiberTransitions)
}

func (h *Handler) listRejections(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	h.respondRejections(w, r.Context(), f)
}

func (h *Handler) listFiberRejections(w http.ResponseWriter, r *http.Request) {
	f := parseFilter(r)
	f.FiberID = chi.URLParam(r, "fiberId")
	h.respondRejections(w, r.Context(), f)
}

func (h *Handler) respondRejections(w http.ResponseWriter, ctx context.Context, f intake.RejectionFilter) {
	rows, total, err := h.Store.ListRejections(ctx, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hasMore := f.Offset+len(rows) < total
	writeJSON(w, http.StatusOK, map[string]any{
		"rejections": rows,
		"total":      total,
		"hasMore":    hasMore,
	})
}

func (h *Handler) getRejection(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "updateHash")
	tx, err := h.Store.GetRejectionByHash(r.Context(), hash)
	if err == model.ErrNotFound {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) getFiber(w http.ResponseWriter, r *http.Request) {
	fiberID := chi.URLParam(r, "fiberId")
	fiber, err := h.Data.GetStateMachine(r.Context(), fiberID)
	if err == model.ErrNotFound {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fiber)
}

func (h *Handler) listFiberTransitions(w http.ResponseWriter, r *http.Request) {
	fiberID := chi.URLParam(r, "fiberId")
	rows := []intake.TransitionRecord{}
	if h.Transitions != nil {
		rows = h.Transitions.ListTransitions(fiberID, 100)
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": rows})
}

func parseFilter(r *http.Request) intake.RejectionFilter {
	q := r.URL.Query()
	f := intake.RejectionFilter{
		FiberID:     q.Get("fiberId"),
		UpdateType:  q.Get("updateType"),
		Signer:      q.Get("signer"),
		ErrorCode:   q.Get("errorCode"),
		FromOrdinal: parseUintPtr(q.Get("fromOrdinal")),
		ToOrdinal:   parseUintPtr(q.Get("toOrdinal")),
		Limit:       parseIntDefault(q.Get("limit"), 50),
		Offset:      parseIntDefault(q.Get("offset"), 0),
	}
	return f
}

func parseUintPtr(s string) *uint64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
