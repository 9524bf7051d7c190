package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/validation"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CustomerDirectory resolves and creates customers by email.
// FindByEmail returns customer.ErrNotFound on a clean miss; any other error is a communication failure.
type CustomerDirectory interface {
	FindByEmail(ctx context.Context, email string) (*customer.Customer, error)
	Create(ctx context.Context, draft customer.Draft) (*customer.Customer, error)
}

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrdersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type Option func(*service)

// WithClock overrides the time source used for defaulting the order date.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithForcedTotalRecompute always derives the total from items, ignoring caller totals.
func WithForcedTotalRecompute(force bool) Option {
	return func(s *service) {
		s.forceRecompute = force
	}
}

type service struct {
	orderRepo      Repository
	directory      CustomerDirectory
	validate       *validator.Validate
	now            func() time.Time
	forceRecompute bool
}

func NewService(orderRepo Repository, directory CustomerDirectory, opts ...Option) Service {
	s := &service{
		orderRepo: orderRepo,
		directory: directory,
		validate:  validation.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := req.Validate(s.validate); err != nil {
		log.Warn().Err(err).Msg("service: order request rejected")
		return nil, err
	}

	cust, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	order := reconcile(req, cust, s.now(), s.forceRecompute)

	saved, err := s.orderRepo.Save(ctx, order)
	if err != nil {
		// A customer created above is not rolled back.
		log.Error().Err(err).Stringer("customer_id", cust.ID).Msg("service: failed to save order")
		return nil, &DependencyError{Op: "save order", Err: err}
	}

	log.Info().
		Stringer("order_id", saved.ID).
		Stringer("customer_id", saved.CustomerID).
		Str("total", saved.Total.String()).
		Msg("service: order created")

	return saved, nil
}

// resolveCustomer looks the customer up by email and creates one when the lookup misses.
// A failed lookup is treated as a miss so that directory flakiness does not block orders.
func (s *service) resolveCustomer(ctx context.Context, req CreateOrderRequest) (*customer.Customer, error) {
	email := customer.NormalizeEmail(req.CustomerEmail)

	existing, err := s.directory.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil && existing.ID != uuid.Nil:
		log.Debug().Stringer("customer_id", existing.ID).Msg("service: reusing existing customer")
		return existing, nil
	case err == nil, errors.Is(err, customer.ErrNotFound):
		log.Debug().Str("email", email).Msg("service: customer not found, creating")
	default:
		log.Warn().Err(err).Str("email", email).Msg("service: customer lookup failed, falling back to create")
	}

	created, err := s.directory.Create(ctx, customer.Draft{
		Name:    strings.TrimSpace(req.CustomerName),
		Email:   email,
		Phone:   strings.TrimSpace(req.CustomerPhone),
		Address: strings.TrimSpace(req.ShippingAddress),
	})
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("service: failed to create customer")
		return nil, &DependencyError{Op: "create customer", Err: err}
	}
	if created == nil || created.ID == uuid.Nil {
		return nil, &DependencyError{Op: "create customer", Err: errors.New("directory returned no customer identity")}
	}

	return created, nil
}

// reconcile builds the order to persist from the request, the resolved customer and the current time.
func reconcile(req CreateOrderRequest, cust *customer.Customer, now time.Time, forceRecompute bool) Order {
	items := make([]OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, OrderItem{
			ProductID: it.ProductID,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	order := Order{
		CustomerID:      cust.ID,
		Customer:        cust,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		OrderDate:       now,
		Status:          StatusPending,
	}

	if req.OrderDate != nil && !req.OrderDate.IsZero() {
		order.OrderDate = *req.OrderDate
	}

	if forceRecompute || req.Total == nil || req.Total.IsZero() {
		order.Total = ComputeTotal(items)
	} else {
		order.Total = *req.Total
	}

	if status, err := ParseStatus(req.Status); err == nil {
		order.Status = status
	}

	return order
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return order, nil
}

func (s *service) ListOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders in repository")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *service) GetOrdersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.FindByCustomerID(ctx, customerID)
	if err != nil {
		log.Error().Err(err).Stringer("customer_id", customerID).Msg("service: failed to fetch customer orders in repository")
		return nil, fmt.Errorf("service: failed to fetch customer orders: %w", err)
	}

	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	currentOrder, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for status update")
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if currentOrder.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return nil
	}

	if !allowedTransitions[currentOrder.Status][newStatus] {
		log.Warn().
			Stringer("order_id", currentOrder.ID).
			Stringer("current_status", currentOrder.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("service: %w from %s to %s", ErrInvalidStatusTransition, currentOrder.Status, newStatus)
	}

	err = s.orderRepo.UpdateStatus(ctx, orderID, newStatus)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", orderID).Msg("service: order disappeared before status update")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", currentOrder.Status).Stringer("new_status", newStatus).Msg("service: order status updated successfully")
	return nil
}

func (s *service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	err := s.orderRepo.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to delete order")
		return fmt.Errorf("service: failed to delete order '%s': %w", id, err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order deleted")
	return nil
}
