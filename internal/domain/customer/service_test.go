package customer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"credit-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx context.Context, cust *Customer) error {
	args := m.Called(ctx, cust)
	if args.Error(0) == nil {
		cust.CustomerID = 1
	}
	return args.Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*Customer, error) {
	args := m.Called(ctx, customerID)
	if cust, ok := args.Get(0).(*Customer); ok {
		return cust, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) FindByLoanID(ctx context.Context, loanID int64) (*Customer, error) {
	args := m.Called(ctx, loanID)
	if cust, ok := args.Get(0).(*Customer); ok {
		return cust, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerRepository) Delete(ctx context.Context, customerID int64) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCreateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("should trim names and persist the customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		repo.On("Save", ctx, mock.MatchedBy(func(c *Customer) bool {
			return c.Name == "Ada" && c.Surname == "Lovelace"
		})).Return(nil)

		cust, err := svc.CreateCustomer(ctx, "  Ada ", " Lovelace ", d("10000"), d("0"))

		require.NoError(t, err)
		assert.Equal(t, int64(1), cust.CustomerID)
		repo.AssertExpectations(t)
	})

	t.Run("should reject an invalid request without saving", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		_, err := svc.CreateCustomer(ctx, "", "Lovelace", d("-5"), d("0"))

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("should wrap repository failures", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		repo.On("Save", ctx, mock.Anything).Return(errors.New("insert failed"))

		_, err := svc.CreateCustomer(ctx, "Ada", "Lovelace", d("10000"), d("0"))

		assert.Error(t, err)
	})
}

func TestGetCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the stored customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		stored := &Customer{CustomerID: 3, Name: "Ada", Surname: "Lovelace", CreditLimit: d("10000")}
		repo.On("FindByID", ctx, int64(3)).Return(stored, nil)

		cust, err := svc.GetCustomer(ctx, 3)

		require.NoError(t, err)
		assert.Equal(t, stored, cust)
	})

	t.Run("should wrap not found with the customer id", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		repo.On("FindByID", ctx, int64(99)).Return(nil, apperrors.ErrNotFound)

		_, err := svc.GetCustomer(ctx, 99)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Contains(t, err.Error(), "99")
	})
}

func TestDeleteCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("should delete an existing customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		repo.On("Delete", ctx, int64(3)).Return(nil)

		assert.NoError(t, svc.DeleteCustomer(ctx, 3))
		repo.AssertExpectations(t)
	})

	t.Run("should surface not found", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo, testLogger)

		repo.On("Delete", ctx, int64(99)).Return(apperrors.ErrNotFound)

		err := svc.DeleteCustomer(ctx, 99)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestFindCustomerByLoan(t *testing.T) {
	ctx := context.Background()

	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo, testLogger)

	stored := &Customer{CustomerID: 3}
	repo.On("FindByLoanID", ctx, int64(42)).Return(stored, nil)

	cust, err := svc.FindCustomerByLoan(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, stored, cust)
}
