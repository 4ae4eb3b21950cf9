package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type CustomerService interface {
	// CreateCustomer registers a customer with a credit ceiling and an
	// (optionally non-zero) already-used amount.
	CreateCustomer(ctx context.Context, name, surname string, creditLimit, usedCreditLimit decimal.Decimal) (*Customer, error)

	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)

	// DeleteCustomer removes the customer together with all of its loans.
	DeleteCustomer(ctx context.Context, customerID int64) error

	FindCustomerByLoan(ctx context.Context, loanID int64) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("No logger provided to NewCustomerService, using default stderr handler")
	}
	return &customerService{
		repo:   repo,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) CreateCustomer(ctx context.Context, name, surname string, creditLimit, usedCreditLimit decimal.Decimal) (*Customer, error) {
	s.logger.InfoContext(ctx, "Creating new customer")

	name = strings.TrimSpace(name)
	surname = strings.TrimSpace(surname)
	if errs := ValidateNew(name, surname, creditLimit, usedCreditLimit); len(errs) > 0 {
		s.logger.WarnContext(ctx, "Customer request failed validation", "failures", len(errs))
		return nil, errs
	}

	cust := &Customer{
		Name:            name,
		Surname:         surname,
		CreditLimit:     creditLimit,
		UsedCreditLimit: usedCreditLimit,
	}
	if err := s.repo.Save(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	s.logger.InfoContext(ctx, "Customer created", slog.Int64("customerID", cust.CustomerID))
	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found", slog.Int64("customerID", customerID))
			return nil, fmt.Errorf("%w: customer with ID %d not found", apperrors.ErrNotFound, customerID)
		}
		s.logger.ErrorContext(ctx, "Failed to get customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}
	return cust, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	s.logger.InfoContext(ctx, "Deleting customer", slog.Int64("customerID", customerID))

	if err := s.repo.Delete(ctx, customerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: customer with ID %d not found", apperrors.ErrNotFound, customerID)
		}
		s.logger.ErrorContext(ctx, "Failed to delete customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		return fmt.Errorf("failed to delete customer %d: %w", customerID, err)
	}
	return nil
}

func (s *customerService) FindCustomerByLoan(ctx context.Context, loanID int64) (*Customer, error) {
	cust, err := s.repo.FindByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no customer owns loan %d", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("failed to find customer by loan %d: %w", loanID, err)
	}
	return cust, nil
}
