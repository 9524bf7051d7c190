package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/cache"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/events"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/validation"
)

const (
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	// IdempotencyPending marks a key whose first request is still being processed.
	IdempotencyPending = "pending"
)

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderHandler struct {
	service        order.Service
	validate       *validator.Validate
	publisher      events.Publisher
	idempotency    cache.Cache
	idempotencyTTL time.Duration
}

type OrderHandlerOption func(*OrderHandler)

func WithPublisher(p events.Publisher) OrderHandlerOption {
	return func(h *OrderHandler) {
		h.publisher = p
	}
}

// WithIdempotencyCache enables replay of POST /orders responses by Idempotency-Key.
func WithIdempotencyCache(c cache.Cache, ttl time.Duration) OrderHandlerOption {
	return func(h *OrderHandler) {
		h.idempotency = c
		h.idempotencyTTL = ttl
	}
}

func NewOrderHandler(service order.Service, opts ...OrderHandlerOption) *OrderHandler {
	h := &OrderHandler{
		service:   service,
		validate:  validation.New(),
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrderByID)
	router.Get("/orders/customer/{customerID}", h.handleGetOrdersByCustomerID)
	router.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
	router.Delete("/orders/{id}", h.handleDeleteOrder)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idempotencyKey := r.Header.Get(HeaderIdempotencyKey)
	var cacheKey string
	if idempotencyKey != "" && h.idempotency != nil {
		cacheKey = h.idempotency.GenerateKey("create", idempotencyKey)
		reserved, handled := h.reserveIdempotencyKey(w, r, cacheKey, idempotencyKey)
		if handled {
			return
		}
		if !reserved {
			cacheKey = ""
		}
	}

	stored := false
	if cacheKey != "" {
		defer func() {
			if stored {
				return
			}
			// Free the key so the client can retry a request that produced no order.
			if err := h.idempotency.Delete(context.WithoutCancel(ctx), cacheKey); err != nil {
				log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("Failed to release idempotency key")
			}
		}()
	}

	var requestPayload order.CreateOrderRequest
	if err := decodeJSONBody(r, &requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	createdOrder, err := h.service.CreateOrder(ctx, requestPayload)
	if err != nil {
		var validationErr *order.ValidationError
		if errors.As(err, &validationErr) {
			respondWithValidationErrors(w, validationErr.Fields)
			return
		}

		log.Error().Err(err).Msg("Failed to create order via service")

		clientMessage := "Failed to create order"
		if errors.Is(err, order.ErrDependencyFailure) {
			clientMessage = "Failed to create order: dependency unavailable"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	// The order is durable at this point; a lost event must not fail the request.
	if err := h.publisher.PublishOrderCreated(ctx, *createdOrder); err != nil {
		log.Error().Err(err).Stringer("order_id", createdOrder.ID).Msg("Failed to publish order created event")
	}

	body, err := json.Marshal(createdOrder)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", createdOrder.ID).Msg("Failed to marshal created order")
		respondWithError(w, http.StatusInternalServerError, "Failed to encode order")
		return
	}

	if cacheKey != "" {
		if err := h.idempotency.Set(ctx, cacheKey, string(body), h.idempotencyTTL); err != nil {
			log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("Failed to store idempotent response")
		} else {
			stored = true
		}
	}

	writeRawJSON(w, http.StatusCreated, body)
}

// reserveIdempotencyKey claims cacheKey for this request. handled is true when the
// response was already written: a replay of the stored order, or a conflict while
// the first request with the same key is still running. A cache outage lets the
// request through unreserved.
func (h *OrderHandler) reserveIdempotencyKey(w http.ResponseWriter, r *http.Request, cacheKey, idempotencyKey string) (reserved, handled bool) {
	ctx := r.Context()

	reserved, err := h.idempotency.SetNX(ctx, cacheKey, IdempotencyPending, h.idempotencyTTL)
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("Failed to reserve idempotency key, processing request")
		return false, false
	}
	if reserved {
		return true, false
	}

	cached, err := h.idempotency.Get(ctx, cacheKey)
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("Failed to read idempotency cache")
		respondWithError(w, http.StatusServiceUnavailable, "Idempotency cache unavailable, retry later")
		return false, true
	}
	if cached == "" || cached == IdempotencyPending {
		respondWithError(w, http.StatusConflict, "A request with this Idempotency-Key is already in progress")
		return false, true
	}

	log.Info().Str("idempotency_key", idempotencyKey).Msg("Replaying stored order response")
	w.Header().Set(HeaderIdempotentReplayed, "true")
	writeRawJSON(w, http.StatusOK, []byte(cached))
	return false, true
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	foundOrder, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to get order by id via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get order by id")
		return
	}

	respondWithJSON(w, http.StatusOK, foundOrder)
}

func (h *OrderHandler) handleGetOrdersByCustomerID(w http.ResponseWriter, r *http.Request) {
	customerID, ok := parseUUIDParam(w, r, "customerID")
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByCustomerID(r.Context(), customerID)
	if err != nil {
		log.Error().Err(err).Stringer("customer_id", customerID).Msg("Failed to get customer orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get customer orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateOrderStatusRequest
	if err := decodeJSONBody(r, &requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithStructErrors(w, err)
		return
	}

	newStatus, err := order.ParseStatus(requestPayload.Status)
	if err != nil {
		var validationErr *order.ValidationError
		if errors.As(err, &validationErr) {
			respondWithValidationErrors(w, validationErr.Fields)
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	err = h.service.UpdateOrderStatus(r.Context(), orderID, newStatus)
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			clientMessage = "Order not found"
		case errors.Is(err, order.ErrInvalidStatusTransition):
			clientMessage = "Invalid status transition"
		default:
			log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to update order status via service")
			clientMessage = "Failed to update order status"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	err := h.service.DeleteOrder(r.Context(), orderID)
	if err != nil {
		clientMessage := "Failed to delete order"
		if errors.Is(err, order.ErrOrderNotFound) {
			clientMessage = "Order not found"
		} else {
			log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to delete order via service")
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}
