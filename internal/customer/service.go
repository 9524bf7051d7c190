package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	CreateCustomer(ctx context.Context, draft Draft) (*Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateCustomer(ctx context.Context, draft Draft) (*Customer, error) {
	c := &Customer{
		Name:    strings.TrimSpace(draft.Name),
		Email:   NormalizeEmail(draft.Email),
		Phone:   strings.TrimSpace(draft.Phone),
		Address: strings.TrimSpace(draft.Address),
	}

	createdID, err := s.repo.Create(ctx, c)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Warn().Str("email", c.Email).Msg("service: customer email already exists")
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create customer in repository")
		return nil, fmt.Errorf("service: failed to save customer: %w", err)
	}

	c.ID = createdID
	log.Info().Stringer("customer_id", c.ID).Msg("service: customer created")

	return c, nil
}

func (s *service) GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", id).Msg("service: failed to get customer by id in repository")
		return nil, fmt.Errorf("service: failed to get customer by id '%s': %w", id, err)
	}

	return c, nil
}

func (s *service) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	c, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Msg("service: failed to get customer by email in repository")
		return nil, fmt.Errorf("service: failed to get customer by email '%s': %w", email, err)
	}

	return c, nil
}

func (s *service) ListCustomers(ctx context.Context) ([]Customer, error) {
	customers, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list customers in repository")
		return nil, fmt.Errorf("service: failed to list customers: %w", err)
	}

	return customers, nil
}

func (s *service) UpdateCustomer(ctx context.Context, c *Customer) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = NormalizeEmail(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)

	err := s.repo.Update(ctx, c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, ErrEmailExists) {
			return ErrEmailExists
		}
		log.Error().Err(err).Stringer("customer_id", c.ID).Msg("service: failed to update customer")
		return fmt.Errorf("service: failed to update customer by id '%s': %w", c.ID, err)
	}

	log.Info().Stringer("customer_id", c.ID).Msg("service: customer updated")
	return nil
}

func (s *service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", id).Msg("service: failed to delete customer")
		return fmt.Errorf("service: failed to delete customer by id '%s': %w", id, err)
	}

	return nil
}
