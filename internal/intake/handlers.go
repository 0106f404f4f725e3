package intake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"fibermesh/internal/metrics"
	"fibermesh/internal/model"
)

// Handler is the HTTP surface for C5 (webhook intake), grounded on the
// teacher's controller shape (walletserver/controllers/wallet_controller.go):
// a thin struct wrapping the dependencies, one method per route.
type Handler struct {
	Store  Store
	Broker *Broker
	Log    *logrus.Logger
}

// NewHandler builds a Handler; log may be nil, in which case a default
// logrus.Logger is used.
func NewHandler(store Store, broker *Broker, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Store: store, Broker: broker, Log: log}
}

// Routes mounts C5's webhook endpoints onto r (spec.md §6.3).
func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhook/rejection", h.handleRejection)
	r.Post("/webhook/snapshot", h.handleSnapshot)
}

type rejectionEvent struct {
	Event       string `json:"event"`
	Ordinal     uint64 `json:"ordinal"`
	Timestamp   int64  `json:"timestamp"`
	MetagraphID string `json:"metagraphId"`
	Rejection   struct {
		UpdateType           string                 `json:"updateType"`
		FiberID              string                 `json:"fiberId"`
		TargetSequenceNumber *uint64                `json:"targetSequenceNumber,omitempty"`
		Errors               []model.RejectionError `json:"errors"`
		Signers              []string               `json:"signers"`
		UpdateHash           string                 `json:"updateHash"`
		RawPayload           map[string]any          `json:"rawPayload"`
	} `json:"rejection"`
}

func (h *Handler) handleRejection(w http.ResponseWriter, r *http.Request) {
	var evt rejectionEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if evt.Rejection.UpdateHash == "" {
		writeError(w, http.StatusBadRequest, model.ErrValidation)
		return
	}

	tx := model.RejectedTransaction{
		Ordinal:    evt.Ordinal,
		Timestamp:  time.UnixMilli(evt.Timestamp),
		UpdateType: model.UpdateType(evt.Rejection.UpdateType),
		FiberID:    evt.Rejection.FiberID,
		UpdateHash: evt.Rejection.UpdateHash,
		Errors:     evt.Rejection.Errors,
		Signers:    evt.Rejection.Signers,
		RawPayload: evt.Rejection.RawPayload,
	}

	alreadyIndexed, err := h.Store.UpsertRejection(r.Context(), tx)
	if err != nil {
		h.Log.WithError(err).WithField("updateHash", tx.UpdateHash).Error("rejection upsert failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !alreadyIndexed {
		metrics.Rejections.Inc()
		if h.Broker != nil {
			h.Broker.Publish(tx)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "alreadyIndexed": alreadyIndexed})
}

type snapshotEvent struct {
	Event      string  `json:"event"`
	Ordinal    uint64  `json:"ordinal"`
	Hash       string  `json:"hash"`
	GL0Ordinal *uint64 `json:"gl0Ordinal,omitempty"`
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var evt snapshotEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Store.ConfirmSnapshot(r.Context(), evt.Ordinal, evt.Hash, evt.GL0Ordinal, time.Now()); err != nil {
		h.Log.WithError(err).WithField("ordinal", evt.Ordinal).Error("snapshot confirmation failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	metrics.Confirmations.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
