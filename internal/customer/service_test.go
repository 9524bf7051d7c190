package customer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Create(ctx context.Context, c *customer.Customer) (uuid.UUID, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestCustomerService_CreateCustomer_Success(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	expectedID := uuid.Must(uuid.NewV4())
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *customer.Customer) bool {
		return c.Email == "jane@example.com" && c.Name == "Jane Doe"
	})).Return(expectedID, nil).Once()

	created, err := svc.CreateCustomer(context.Background(), customer.Draft{
		Name:    "  Jane Doe ",
		Email:   " Jane@Example.COM",
		Phone:   "555-0100",
		Address: "1 Main St",
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, expectedID, created.ID)
	require.Equal(t, "jane@example.com", created.Email)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_CreateCustomer_EmailExists(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*customer.Customer")).
		Return(uuid.Nil, customer.ErrEmailExists).
		Once()

	created, err := svc.CreateCustomer(context.Background(), customer.Draft{Name: "Jane", Email: "jane@example.com"})

	require.ErrorIs(t, err, customer.ErrEmailExists)
	require.Nil(t, created)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_CreateCustomer_RepositoryError(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	dbErr := errors.New("connection reset")
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*customer.Customer")).
		Return(uuid.Nil, dbErr).
		Once()

	created, err := svc.CreateCustomer(context.Background(), customer.Draft{Name: "Jane", Email: "jane@example.com"})

	require.ErrorIs(t, err, dbErr)
	require.Nil(t, created)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomerByID_Success(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	id := uuid.Must(uuid.NewV4())
	expected := customer.Customer{
		ID:        id,
		Name:      "Jane Doe",
		Email:     "jane@example.com",
		Phone:     "555-0100",
		Address:   "1 Main St",
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now(),
	}
	mockRepo.On("GetByID", mock.Anything, id).Return(&expected, nil).Once()

	found, err := svc.GetCustomerByID(context.Background(), id)

	require.NoError(t, err)
	require.Empty(t, cmp.Diff(expected, *found))
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomerByID_NotFound(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	id := uuid.Must(uuid.NewV4())
	mockRepo.On("GetByID", mock.Anything, id).Return(nil, customer.ErrNotFound).Once()

	found, err := svc.GetCustomerByID(context.Background(), id)

	require.ErrorIs(t, err, customer.ErrNotFound)
	require.Nil(t, found)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomerByEmail_NormalizesKey(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	expected := &customer.Customer{ID: uuid.Must(uuid.NewV4()), Email: "jane@example.com"}
	mockRepo.On("GetByEmail", mock.Anything, "jane@example.com").Return(expected, nil).Once()

	found, err := svc.GetCustomerByEmail(context.Background(), "  JANE@example.com ")

	require.NoError(t, err)
	require.Equal(t, expected.ID, found.ID)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_GetCustomerByEmail_NotFound(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	mockRepo.On("GetByEmail", mock.Anything, "missing@example.com").Return(nil, customer.ErrNotFound).Once()

	found, err := svc.GetCustomerByEmail(context.Background(), "missing@example.com")

	require.ErrorIs(t, err, customer.ErrNotFound)
	require.Nil(t, found)
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_ListCustomers(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	expected := []customer.Customer{
		{ID: uuid.Must(uuid.NewV4()), Email: "a@example.com"},
		{ID: uuid.Must(uuid.NewV4()), Email: "b@example.com"},
	}
	mockRepo.On("List", mock.Anything).Return(expected, nil).Once()

	got, err := svc.ListCustomers(context.Background())

	require.NoError(t, err)
	require.Empty(t, cmp.Diff(expected, got))
	mockRepo.AssertExpectations(t)
}

func TestCustomerService_UpdateCustomer(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{name: "success"},
		{name: "not found", repoErr: customer.ErrNotFound, wantErr: customer.ErrNotFound},
		{name: "email exists", repoErr: customer.ErrEmailExists, wantErr: customer.ErrEmailExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockCustomerRepository)
			svc := customer.NewService(mockRepo)

			c := &customer.Customer{ID: uuid.Must(uuid.NewV4()), Name: "Jane", Email: "Jane@Example.com"}
			mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(u *customer.Customer) bool {
				return u.Email == "jane@example.com"
			})).Return(tt.repoErr).Once()

			err := svc.UpdateCustomer(context.Background(), c)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestCustomerService_DeleteCustomer_NotFound(t *testing.T) {
	mockRepo := new(MockCustomerRepository)
	svc := customer.NewService(mockRepo)

	id := uuid.Must(uuid.NewV4())
	mockRepo.On("Delete", mock.Anything, id).Return(customer.ErrNotFound).Once()

	err := svc.DeleteCustomer(context.Background(), id)

	require.ErrorIs(t, err, customer.ErrNotFound)
	mockRepo.AssertExpectations(t)
}
