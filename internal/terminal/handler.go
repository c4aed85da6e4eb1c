// internal/terminal/handler.go
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"posnexus/internal/catalog"
	"posnexus/internal/checkout"
	"posnexus/internal/offline"
	"posnexus/internal/scanner"
)

// PendingLister exposes the offline queue to the API.
type PendingLister interface {
	Pending(ctx context.Context, limit int) ([]offline.Record, error)
}

type Handler struct {
	terminal *Terminal
	pending  PendingLister
}

func NewHandler(terminal *Terminal, pending PendingLister) *Handler {
	return &Handler{terminal: terminal, pending: pending}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.terminal.Cart())
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.terminal.Products())
}

type addResponse struct {
	AddResult
	MatchKind string   `json:"match"`
	Cart      CartView `json:"cart"`
}

func (h *Handler) addResponse(res AddResult) addResponse {
	return addResponse{AddResult: res, MatchKind: res.Match.String(), Cart: h.terminal.Cart()}
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID uuid.UUID `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == uuid.Nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.terminal.SelectProduct(req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.addResponse(res))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := h.terminal.UpdateQuantity(id, *req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.terminal.Cart())
}

func (h *Handler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productParam(w, r)
	if !ok {
		return
	}
	res, err := h.terminal.IncreaseQuantity(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.addResponse(res))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productParam(w, r)
	if !ok {
		return
	}
	if err := h.terminal.RemoveItem(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.terminal.ClearCart(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.terminal.Scan(req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.addResponse(res))
}

type keyRequest struct {
	Key    string         `json:"key"`
	Ctrl   bool           `json:"ctrl"`
	Alt    bool           `json:"alt"`
	Meta   bool           `json:"meta"`
	Target scanner.Target `json:"target"`
	// Milliseconds since the Unix epoch as reported by the client.
	Timestamp int64 `json:"timestamp"`
}

// Keys accepts a batch of key events in arrival order.
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Events []keyRequest `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	scans := 0
	for _, k := range req.Events {
		ev := scanner.KeyEvent{Key: k.Key, Ctrl: k.Ctrl, Alt: k.Alt, Meta: k.Meta, Target: k.Target}
		if k.Timestamp > 0 {
			ev.At = time.UnixMilli(k.Timestamp)
		}
		emitted, err := h.terminal.HandleKey(ev)
		if err != nil {
			writeError(w, err)
			return
		}
		if emitted {
			scans++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(req.Events), "scans": scans})
}

func (h *Handler) OpenCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.terminal.OpenCamera(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"open": true})
}

func (h *Handler) CloseCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.terminal.CloseCamera(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"open": false})
}

func (h *Handler) CameraDecoded(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.terminal.PushCameraCode(req.Code); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	outcome, err := h.terminal.Checkout(r.Context(), req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.State == checkout.StateQueuedOffline {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{
		"state":    outcome.State.String(),
		"sale":     outcome.Sale,
		"degraded": outcome.Degraded,
		"message":  outcome.Message,
	})
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.terminal.Notifications())
}

func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !h.terminal.DismissNotification(id) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	n, err := h.terminal.ReloadCatalog(r.Context())
	if err != nil {
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": n})
}

func (h *Handler) PendingSales(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.pending.Pending(r.Context(), limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []offline.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func productParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := catalog.ParseID(chi.URLParam(r, "productID"))
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrNotInCart):
		status = http.StatusNotFound
	case errors.Is(err, ErrStockExhausted),
		errors.Is(err, ErrCheckoutInProgress),
		errors.Is(err, scanner.ErrListenerBusy),
		errors.Is(err, scanner.ErrNoListener):
		status = http.StatusConflict
	case errors.Is(err, checkout.ErrEmptyCart):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, scanner.ErrCameraUnavailable),
		errors.Is(err, scanner.ErrCameraClosed),
		errors.Is(err, scanner.ErrDecodeBacklog):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
