package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/forestplant/backend/internal/orders/app"
	"github.com/forestplant/backend/internal/orders/app/commands"
	"github.com/forestplant/backend/internal/orders/domain"
	"github.com/forestplant/backend/internal/orders/ports"
)

var validate = validator.New()

// Handler exposes HTTP endpoints for order operations. Authentication,
// role gating and request-shape validation happen here; lifecycle rules
// live in the service.
type Handler struct {
	service *app.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register binds the order handlers to the provided ServeMux. Every
// route requires an authenticated actor; auth is applied by the caller
// wrapping the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.createOrder)
	mux.HandleFunc("GET /v1/orders", h.listMyOrders)
	mux.HandleFunc("GET /v1/orders/all", h.adminOnly(h.listAllOrders))
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /v1/orders/{id}/receipt", h.getReceipt)
	mux.HandleFunc("PUT /v1/orders/{id}", h.updateOrder)
	mux.HandleFunc("DELETE /v1/orders/{id}", h.removeOrder)
	mux.HandleFunc("DELETE /v1/orders/{id}/permanent", h.adminOnly(h.removeOrderPermanent))
	mux.HandleFunc("PATCH /v1/orders/{id}/status", h.adminOnly(h.updateOrderStatus))
}

func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || !actor.Admin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

type socialMediaPayload struct {
	Type  string `json:"type"`
	Link  string `json:"link"`
	Image string `json:"image"`
}

type orderItemPayload struct {
	PlantID  string `json:"plantId" validate:"required"`
	Quantity int    `json:"quantity"`
}

type orderPayload struct {
	Items       []orderItemPayload   `json:"items" validate:"required,min=1,dive"`
	Phone       string               `json:"phone" validate:"required"`
	SocialMedia []socialMediaPayload `json:"socialMedia" validate:"required,min=1"`
}

func (p orderPayload) toInput() app.OrderInput {
	input := app.OrderInput{Phone: p.Phone}
	for _, item := range p.Items {
		input.Items = append(input.Items, domain.RequestedItem{
			PlantID:  item.PlantID,
			Quantity: item.Quantity,
		})
	}
	for _, s := range p.SocialMedia {
		input.SocialMedia = append(input.SocialMedia, commands.SocialMediaInput{
			Type:  s.Type,
			Link:  s.Link,
			Image: s.Image,
		})
	}
	return input
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := ActorFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" {
		stored, err := h.service.GetIdempotentResponse(ctx, idemKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	payload, ok := decodePayload[orderPayload](w, r)
	if !ok {
		return
	}

	order, err := h.service.CreateOrder(ctx, actor, payload.toInput())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	body, err := json.Marshal(map[string]any{"order": order})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if idemKey != "" {
		stored := ports.StoredResponse{
			StatusCode: http.StatusCreated,
			Body:       body,
			OrderID:    order.ID,
		}
		if err := h.service.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.service.ListMyOrders(r.Context(), actor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.service.GetOrder(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	payload, ok := decodePayload[orderPayload](w, r)
	if !ok {
		return
	}

	order, err := h.service.UpdateOrder(r.Context(), actor, r.PathValue("id"), payload.toInput())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

type statusPayload struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload[statusPayload](w, r)
	if !ok {
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), r.PathValue("id"), payload.Status)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) removeOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.service.RemoveOrder(r.Context(), actor, r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) removeOrderPermanent(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveOrderPermanent(r.Context(), r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	receipt, err := h.service.GetReceipt(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(receipt.HTML)
}

func decodePayload[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var payload T
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return payload, false
	}
	if err := validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return payload, false
	}
	return payload, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, app.ErrNotEditable), errors.Is(err, app.ErrNotRemovable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoValidItems),
		errors.Is(err, domain.ErrPhoneRequired),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, app.ErrStatusRegression),
		errors.Is(err, app.ErrReceiptNotReady):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
