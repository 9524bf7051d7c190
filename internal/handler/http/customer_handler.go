package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/validation"
)

type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=64"`
	Address string `json:"address" validate:"omitempty,max=1024"`
}

type UpdateCustomerRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=64"`
	Address string `json:"address" validate:"omitempty,max=1024"`
}

type CustomerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type CustomerHandler struct {
	service  customer.Service
	validate *validator.Validate
}

func NewCustomerHandler(service customer.Service) *CustomerHandler {
	return &CustomerHandler{
		service:  service,
		validate: validation.New(),
	}
}

func (h *CustomerHandler) RegisterRoutes(router chi.Router) {
	router.Post("/customers", h.handleCreateCustomer)
	router.Get("/customers", h.handleListCustomers)
	router.Get("/customers/{id}", h.handleGetCustomerByID)
	router.Get("/customers/email/{email}", h.handleGetCustomerByEmail)
	router.Put("/customers/{id}", h.handleUpdateCustomer)
	router.Delete("/customers/{id}", h.handleDeleteCustomer)
}

func (h *CustomerHandler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateCustomerRequest
	if err := decodeJSONBody(r, &requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithStructErrors(w, err)
		return
	}

	created, err := h.service.CreateCustomer(r.Context(), customer.Draft{
		Name:    requestPayload.Name,
		Email:   requestPayload.Email,
		Phone:   requestPayload.Phone,
		Address: requestPayload.Address,
	})
	if err != nil {
		clientMessage := "Failed to create customer"
		if errors.Is(err, customer.ErrEmailExists) {
			clientMessage = "Email already exists"
		} else {
			log.Error().Err(err).Msg("Failed to create customer via service")
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusCreated, toCustomerResponse(created))
}

func (h *CustomerHandler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list customers via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list customers")
		return
	}

	responsePayload := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		responsePayload = append(responsePayload, toCustomerResponse(&customers[i]))
	}

	respondWithJSON(w, http.StatusOK, responsePayload)
}

func (h *CustomerHandler) handleGetCustomerByID(w http.ResponseWriter, r *http.Request) {
	customerID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetCustomerByID(r.Context(), customerID)
	if err != nil {
		h.respondLookupError(w, err, "Failed to get customer by id")
		return
	}

	respondWithJSON(w, http.StatusOK, toCustomerResponse(found))
}

func (h *CustomerHandler) handleGetCustomerByEmail(w http.ResponseWriter, r *http.Request) {
	emailParam, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || emailParam == "" {
		log.Warn().Err(err).Msg("Failed to parse email from param")
		respondWithError(w, http.StatusBadRequest, "Email parameter cannot be empty")
		return
	}

	found, err := h.service.GetCustomerByEmail(r.Context(), emailParam)
	if err != nil {
		h.respondLookupError(w, err, "Failed to get customer by email")
		return
	}

	respondWithJSON(w, http.StatusOK, toCustomerResponse(found))
}

func (h *CustomerHandler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateCustomerRequest
	if err := decodeJSONBody(r, &requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode customer")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithStructErrors(w, err)
		return
	}

	err := h.service.UpdateCustomer(r.Context(), &customer.Customer{
		ID:      customerID,
		Name:    requestPayload.Name,
		Email:   requestPayload.Email,
		Phone:   requestPayload.Phone,
		Address: requestPayload.Address,
	})
	if err != nil {
		var clientMessage string
		switch {
		case errors.Is(err, customer.ErrNotFound):
			clientMessage = "Customer not found"
		case errors.Is(err, customer.ErrEmailExists):
			clientMessage = "Email already exists"
		default:
			log.Error().Err(err).Msg("Failed to update customer via service")
			clientMessage = "Failed to update customer"
		}
		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandler) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	err := h.service.DeleteCustomer(r.Context(), customerID)
	if err != nil {
		h.respondLookupError(w, err, "Failed to delete customer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandler) respondLookupError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, customer.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Customer not found")
		return
	}
	log.Error().Err(err).Msg(fallback)
	respondWithError(w, mapErrorToStatusCode(err), fallback)
}
